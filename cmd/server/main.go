package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"mintgate/internal/bridge"
	"mintgate/internal/endpoint"
	"mintgate/internal/executor"
	"mintgate/internal/jwttoken"
	"mintgate/internal/node"
	"mintgate/internal/platform/config"
	"mintgate/internal/platform/httpserver"
	"mintgate/internal/platform/kafka"
	"mintgate/internal/platform/logger"
	"mintgate/internal/platform/metrics"
	"mintgate/internal/platform/postgres"
	"mintgate/internal/platform/redis"
	"mintgate/internal/platform/tracing"
	"mintgate/internal/state"
	"mintgate/internal/state/memory"
	pgstate "mintgate/internal/state/postgres"
	httptransport "mintgate/internal/transport/http"
	"mintgate/pkg/domain"
	"mintgate/pkg/platform/audit"
	"mintgate/pkg/platform/audit/publisher"
	auditmemory "mintgate/pkg/platform/audit/store/memory"
	auditpostgres "mintgate/pkg/platform/audit/store/postgres"
	"mintgate/pkg/platform/circuit"
)

// main wires the ledger node to its store, bridge endpoint and HTTP surface,
// then runs every background loop until a signal arrives.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("mintgate stopped", "error", err)
		os.Exit(1)
	}
}

// runtime is the set of resources run owns; close releases them in reverse
// order of acquisition.
type runtime struct {
	closers []func()
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

type storage interface {
	state.Runner
	state.Outbox
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	rt := &runtime{}
	defer rt.close()

	reg := metrics.New()
	g, ctx := errgroup.WithContext(ctx)

	// Store and event history.
	var (
		store  storage
		events audit.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		rt.onClose(func() { _ = db.Close() })
		if err := pgstate.Migrate(ctx, db); err != nil {
			return err
		}
		store = pgstate.New(db,
			pgstate.WithTimeout(cfg.TxTimeout),
			pgstate.WithLockKey(cfg.Postgres.LockKey),
		)
		events = auditpostgres.New(db)
		log.Info("using postgres state store")
	} else {
		store = memory.New(memory.WithTimeout(cfg.TxTimeout), memory.WithEventLog(0))
		events = auditmemory.NewInMemoryStore()
		log.Warn("POSTGRES_URL not set, ledger state is in memory only")
	}
	pub := publisher.NewPublisher(events, publisher.WithAsyncBuffer(1024), publisher.WithLogger(log))
	rt.onClose(pub.Close)

	exec, err := executor.New(store,
		executor.WithLogger(log),
		executor.WithMetrics(executor.NewMetrics(reg)),
		executor.WithPublisher(pub),
		executor.WithTracer(tracing.Tracer("mintgate/executor")),
	)
	if err != nil {
		return err
	}

	genesis, haveGenesis, err := loadGenesis(cfg.GenesisPath)
	if err != nil {
		return err
	}
	local := localChain(genesis, haveGenesis)

	// Bridge endpoint. The node receives from it, so it is built first and
	// attached once the node exists.
	var (
		ep       bridge.Endpoint
		attach   func(*node.Node)
		consumer *endpoint.Kafka
	)
	switch cfg.Endpoint {
	case config.EndpointKafka:
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		rt.onClose(func() { _ = rc.Close() })
		kc, err := kafka.NewClient(ctx, cfg.Kafka, endpoint.Topic(local))
		if err != nil {
			return err
		}
		rt.onClose(kc.Close)
		k, err := endpoint.NewKafka(kc, local, endpoint.NewRedisDelegates(rc.Client, endpoint.WithDelegateMetrics(endpoint.NewDelegateMetrics(reg))),
			endpoint.WithKafkaLogger(log),
			endpoint.WithRetryBackoff(cfg.Kafka.RetryBackoff),
		)
		if err != nil {
			return err
		}
		if err := k.EnsureTopics(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication, chains(genesis, local)...); err != nil {
			return fmt.Errorf("ensure kafka topics: %w", err)
		}
		ep, consumer = k, k
		attach = func(*node.Node) {}
	default:
		network := endpoint.NewNetwork()
		ep = network.Endpoint(local)
		attach = func(n *node.Node) { network.Attach(local, n) }
	}

	n, err := node.New(exec, node.WithLogger(log), node.WithEndpoint(ep))
	if err != nil {
		return err
	}
	attach(n)

	if haveGenesis {
		if err := bootstrap(ctx, n, genesis, log); err != nil {
			return err
		}
	}

	// Relay: polls the outbox, and with postgres also wakes on NOTIFY.
	relayOpts := []bridge.RelayOption{
		bridge.WithRelayLogger(log),
		bridge.WithRelayMetrics(bridge.NewRelayMetrics(reg)),
		bridge.WithBreakerOptions(circuit.WithFailureThreshold(cfg.Relay.FailureThreshold)),
		bridge.WithPollInterval(cfg.Relay.PollInterval, cfg.Relay.OpenBackoff),
		bridge.WithBatchSize(cfg.Relay.BatchSize),
	}
	if cfg.Postgres.URL != "" {
		listener := postgres.NewListener(cfg.Postgres.URL, pgstate.OutboxChannel, log)
		relayOpts = append(relayOpts, bridge.WithWake(listener.Wake()))
		g.Go(func() error { return listener.Run(ctx) })
	}
	relay, err := bridge.NewRelay(store, ep, relayOpts...)
	if err != nil {
		return err
	}
	g.Go(func() error { return ignoreCanceled(relay.Run(ctx)) })

	if consumer != nil {
		g.Go(func() error { return ignoreCanceled(consumer.Consume(ctx, n)) })
	}

	// HTTP surface.
	jwt := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	handler := httptransport.NewHandler(n, jwttoken.NewValidator(jwt), log, httptransport.WithEvents(pub))
	router := httptransport.NewRouter(handler, map[string]http.Handler{
		"/metrics": reg.Handler(),
		"/healthz": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := n.Initialized(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}),
	})
	srv := httpserver.New(cfg.Addr, tracing.Middleware(cfg.Tracing)(router))

	g.Go(func() error {
		log.Info("starting mintgate", "addr", cfg.Addr, "endpoint", cfg.Endpoint, "chain", local.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func loadGenesis(path string) (config.Genesis, bool, error) {
	if path == "" {
		return config.Genesis{}, false, nil
	}
	g, err := config.LoadGenesis(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Genesis{}, false, nil
	}
	if err != nil {
		return config.Genesis{}, false, err
	}
	return g, true, nil
}

func localChain(g config.Genesis, ok bool) domain.ChainID {
	if ok && g.Bridge != nil {
		return g.Bridge.LocalChain
	}
	return defaultChain
}

// chains lists the local chain and every configured peer.
func chains(g config.Genesis, local domain.ChainID) []domain.ChainID {
	out := []domain.ChainID{local}
	if g.Bridge == nil {
		return out
	}
	for c := range g.Bridge.Peers {
		if c != local {
			out = append(out, c)
		}
	}
	return out
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
