//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"mintgate/internal/executor"
	"mintgate/internal/node"
	"mintgate/internal/state"
	"mintgate/internal/state/postgres"
	"mintgate/pkg/domain"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/audit/publisher"
	auditpostgres "mintgate/pkg/platform/audit/store/postgres"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/testutil"
	"mintgate/pkg/testutil/containers"
)

// =============================================================================
// Postgres State Store Integration Suite
// =============================================================================
// Justification: transaction isolation, the advisory lock and JSONB event
// queries only exist in a real database.

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.pg.DB))
	// Migrations are idempotent.
	s.Require().NoError(postgres.Migrate(context.Background(), s.pg.DB))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(context.Background(), `
		TRUNCATE ledger_meta, role_members, role_admins, banned_accounts, balances,
			allowances, bridge_config, bridge_peers, bridge_received, bridge_outbox,
			ledger_events
	`)
	s.Require().NoError(err)
	s.store = postgres.New(s.pg.DB, postgres.WithTimeout(5*time.Second))
}

func (s *PostgresStoreSuite) newNode() (*node.Node, *publisher.Publisher) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := publisher.NewPublisher(auditpostgres.New(s.pg.DB))
	exec, err := executor.New(s.store,
		executor.WithLogger(logger),
		executor.WithMetrics(executor.NewMetrics(prometheus.NewRegistry())),
		executor.WithPublisher(pub),
	)
	s.Require().NoError(err)
	n, err := node.New(exec, node.WithLogger(logger))
	s.Require().NoError(err)
	return n, pub
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWritesAndEvents() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(tx state.Tx) error {
		s.Require().NoError(tx.SetBalance(ctx, testutil.Alice, domain.NewAmount(10)))
		tx.Emit(ctx, audit.Event{Name: audit.EventTransfer, Counterparty: testutil.Alice})
		return boom
	})
	s.ErrorIs(err, boom)

	s.Require().NoError(s.store.View(ctx, func(tx state.Tx) error {
		bal, err := tx.Balance(ctx, testutil.Alice)
		s.Require().NoError(err)
		s.True(bal.IsZero())
		return nil
	}))
	var count int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx, `SELECT count(*) FROM ledger_events`).Scan(&count))
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestMarkReceivedDedupes() {
	ctx := context.Background()
	guid := uuid.New()

	s.Require().NoError(s.store.RunInTx(ctx, func(tx state.Tx) error { return tx.MarkReceived(ctx, guid, 30102) }))
	err := s.store.RunInTx(ctx, func(tx state.Tx) error { return tx.MarkReceived(ctx, guid, 30102) })
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestOutbox() {
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	s.Require().NoError(s.store.RunInTx(ctx, func(tx state.Tx) error {
		if err := tx.EnqueueOutbound(ctx, state.OutboxEntry{ID: first, GUID: uuid.New(), Dst: 30102, Envelope: []byte{1}}); err != nil {
			return err
		}
		return tx.EnqueueOutbound(ctx, state.OutboxEntry{ID: second, GUID: uuid.New(), Dst: 30103, Envelope: []byte{2}})
	}))

	pending, err := s.store.PendingOutbound(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first, pending[0].ID)

	s.Require().NoError(s.store.MarkAttempted(ctx, first))
	s.Require().NoError(s.store.MarkDelivered(ctx, first, time.Now()))

	pending, err = s.store.PendingOutbound(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second, pending[0].ID)

	pending, err = s.store.PendingOutbound(ctx, 10, 30103)
	s.Require().NoError(err)
	s.Empty(pending)

	next, err := s.store.NextOutbound(ctx, 30103)
	s.Require().NoError(err)
	s.Equal(second, next.ID)
	_, err = s.store.NextOutbound(ctx, 30102)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.MarkDelivered(ctx, uuid.New(), time.Now()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentMintsAreSerialized() {
	ctx := context.Background()
	n, _ := s.newNode()
	s.Require().NoError(n.Initialize(ctx, node.Genesis{
		Supervisor: testutil.Supervisor,
		Self:       testutil.LedgerSelf,
		Name:       "Mint Gate USD",
		Symbol:     "MGUSD",
		Decimals:   6,
	}))
	s.Require().NoError(n.GrantRole(ctx, testutil.Supervisor, domain.MinterRole, testutil.Minter))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- n.Mint(ctx, testutil.Minter, testutil.Alice, domain.NewAmount(5))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	bal, err := n.BalanceOf(ctx, testutil.Alice)
	s.Require().NoError(err)
	s.Equal(uint64(workers*5), bal.Uint64())
	s.Require().NoError(n.CheckConservation(ctx))
}

func (s *PostgresStoreSuite) TestEventsAreQueryable() {
	ctx := context.Background()
	n, pub := s.newNode()
	s.Require().NoError(n.Initialize(ctx, node.Genesis{
		Supervisor: testutil.Supervisor,
		Self:       testutil.LedgerSelf,
		Name:       "Mint Gate USD",
		Symbol:     "MGUSD",
		Decimals:   6,
	}))
	s.Require().NoError(n.GrantRole(ctx, testutil.Supervisor, domain.MinterRole, testutil.Minter))
	s.Require().NoError(n.Mint(ctx, testutil.Minter, testutil.Alice, domain.NewAmount(9)))
	s.Require().NoError(n.Transfer(ctx, testutil.Alice, testutil.Bob, domain.NewAmount(4)))

	events, err := pub.List(ctx, testutil.Bob)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.EventTransfer, events[0].Name)
	s.Equal(testutil.Alice, events[0].Account)
	s.Equal(uint64(4), events[0].Amount.Uint64())

	// The publisher re-appends events the transaction already wrote; each is
	// stored once.
	var count int
	s.Require().NoError(s.pg.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM ledger_events WHERE name = 'transfer'`).Scan(&count))
	s.Equal(2, count)

	recent, err := pub.Recent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(testutil.Bob, recent[0].Counterparty)

	roleEvents, err := pub.List(ctx, testutil.Minter)
	s.Require().NoError(err)
	s.Require().NotEmpty(roleEvents)
	s.Equal(audit.EventRoleGranted, roleEvents[0].Name)
	s.Equal(domain.MinterRole, roleEvents[0].Role)
}
