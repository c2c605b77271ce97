package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/testutil"
)

// =============================================================================
// Ledger Test Suite
// =============================================================================
// Justification: value movement is where supply conservation can break.
// Every test ends with a conservation check, and failure cases assert that
// neither balances nor the event log moved.

type LedgerSuite struct {
	suite.Suite
	ls     *testutil.LedgerState
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ls = testutil.NewLedgerState(s.T(), 6)
	s.ls.Grant(s.T(), domain.MinterRole, testutil.Minter)
	s.ls.Grant(s.T(), domain.BurnerRole, testutil.Burner)
	s.ls.Grant(s.T(), domain.BlacklisterRole, testutil.Blacklister)
	s.ledger = New()
}

func (s *LedgerSuite) TearDownTest() {
	s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
		return s.ledger.CheckConservation(ctx, tx)
	})
}

func (s *LedgerSuite) run(fn func(ctx context.Context, tx state.Tx) error) error {
	return s.ls.Run(fn)
}

func (s *LedgerSuite) balance(a domain.Account) uint64 {
	return s.ls.BalanceOf(s.T(), a).Uint64()
}

func (s *LedgerSuite) lastEvent() audit.Event {
	events := s.ls.CommittedEvents()
	s.Require().NotEmpty(events)
	return events[len(events)-1]
}

func amt(v uint64) *domain.Amount {
	return domain.NewAmount(v)
}

func (s *LedgerSuite) TestMint() {
	s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
		return s.ledger.Mint(ctx, tx, testutil.Minter, testutil.Alice, amt(250))
	}))
	s.Equal(uint64(250), s.balance(testutil.Alice))
	s.Equal(uint64(250), s.ls.TotalSupply(s.T()).Uint64())

	event := s.lastEvent()
	s.Equal(audit.EventTransfer, event.Name)
	s.True(domain.IsNull(event.Account))
	s.Equal(testutil.Alice, event.Counterparty)
	s.Equal(uint64(250), event.Amount.Uint64())
}

func (s *LedgerSuite) TestMintFailures() {
	s.ls.Ban(s.T(), testutil.Carol)

	tests := []struct {
		name   string
		setup  func()
		caller domain.Account
		to     domain.Account
		amount *domain.Amount
		code   dErrors.Code
	}{
		{"caller without role", nil, testutil.Alice, testutil.Bob, amt(1), dErrors.CodeUnauthorized},
		{"zero amount", nil, testutil.Minter, testutil.Bob, amt(0), dErrors.CodeZeroValue},
		{"nil amount", nil, testutil.Minter, testutil.Bob, nil, dErrors.CodeZeroValue},
		{"null recipient", nil, testutil.Minter, domain.NullAccount, amt(1), dErrors.CodeZeroAddress},
		{"banned recipient", nil, testutil.Minter, testutil.Carol, amt(1), dErrors.CodeAlreadyBanned},
		{"supply overflow", func() {
			s.ls.Seed(s.T(), func(ctx context.Context, tx state.Tx) error {
				top := domain.Unlimited()
				if err := tx.SetBalance(ctx, testutil.Alice, top); err != nil {
					return err
				}
				return tx.SetTotalSupply(ctx, top)
			})
		}, testutil.Minter, testutil.Bob, amt(1), dErrors.CodeInvalidInput},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			if tt.setup != nil {
				tt.setup()
			}
			before := s.ls.EventCount()
			supply := s.ls.TotalSupply(s.T())
			err := s.run(func(ctx context.Context, tx state.Tx) error {
				return s.ledger.Mint(ctx, tx, tt.caller, tt.to, tt.amount)
			})
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
			s.Equal(before, s.ls.EventCount())
			s.True(supply.Eq(s.ls.TotalSupply(s.T())))
		})
	}
}

func (s *LedgerSuite) TestMintWhilePaused() {
	s.ls.Pause(s.T())
	err := s.run(func(ctx context.Context, tx state.Tx) error {
		return s.ledger.Mint(ctx, tx, testutil.Minter, testutil.Alice, amt(1))
	})
	s.True(dErrors.HasCode(err, dErrors.CodeEnforcedPause))
}

func (s *LedgerSuite) TestBurn() {
	s.ls.Fund(s.T(), testutil.Burner, 40)

	s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
		return s.ledger.Burn(ctx, tx, testutil.Burner, amt(15))
	}))
	s.Equal(uint64(25), s.balance(testutil.Burner))
	s.Equal(uint64(25), s.ls.TotalSupply(s.T()).Uint64())
	event := s.lastEvent()
	s.Equal(testutil.Burner, event.Account)
	s.True(domain.IsNull(event.Counterparty))

	err := s.run(func(ctx context.Context, tx state.Tx) error {
		return s.ledger.Burn(ctx, tx, testutil.Burner, amt(26))
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

	err = s.run(func(ctx context.Context, tx state.Tx) error {
		return s.ledger.Burn(ctx, tx, testutil.Alice, amt(1))
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *LedgerSuite) TestBurnBlackFunds() {
	s.ls.Fund(s.T(), testutil.Alice, 70)
	s.ls.Fund(s.T(), testutil.Bob, 30)

	s.Run("account must be banned", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.BurnBlackFunds(ctx, tx, testutil.Blacklister, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotBanned))
	})

	s.Run("zeroes the balance even while paused", func() {
		s.ls.Ban(s.T(), testutil.Alice)
		s.ls.Pause(s.T())
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.BurnBlackFunds(ctx, tx, testutil.Blacklister, testutil.Alice)
		}))
		s.Equal(uint64(0), s.balance(testutil.Alice))
		s.Equal(uint64(30), s.ls.TotalSupply(s.T()).Uint64())

		event := s.lastEvent()
		s.Equal(audit.EventBlackFundsBurned, event.Name)
		s.Equal(uint64(70), event.Amount.Uint64())
	})

	s.Run("requires the blacklist role", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.BurnBlackFunds(ctx, tx, testutil.Supervisor, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *LedgerSuite) TestTransfer() {
	s.ls.Fund(s.T(), testutil.Alice, 100)

	s.Run("moves value", func() {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Alice, testutil.Bob, amt(60))
		}))
		s.Equal(uint64(40), s.balance(testutil.Alice))
		s.Equal(uint64(60), s.balance(testutil.Bob))
	})

	s.Run("self transfer keeps the balance", func() {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Alice, testutil.Alice, amt(40))
		}))
		s.Equal(uint64(40), s.balance(testutil.Alice))
	})

	s.Run("zero transfer emits", func() {
		before := s.ls.EventCount()
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Carol, testutil.Bob, domain.ZeroAmount())
		}))
		s.Equal(before+1, s.ls.EventCount())
	})

	s.Run("insufficient balance", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Alice, testutil.Bob, amt(41))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	})

	s.Run("banned sender or recipient", func() {
		s.ls.Ban(s.T(), testutil.Carol)
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Alice, testutil.Carol, amt(1))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyBanned))
		err = s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Carol, testutil.Alice, amt(0))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyBanned))
	})

	s.Run("banned sender to null account", func() {
		dave := domain.MustParseAccount("0xd000000000000000000000000000000000000da7")
		s.ls.Fund(s.T(), dave, 5)
		s.ls.Ban(s.T(), dave)
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, dave, domain.NullAccount, amt(1))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyBanned), "got %v", err)
	})

	s.Run("null recipient", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Transfer(ctx, tx, testutil.Alice, domain.NullAccount, amt(1))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})
}

func (s *LedgerSuite) TestTransferFrom() {
	s.ls.Fund(s.T(), testutil.Alice, 100)
	approve := func(amount *domain.Amount) {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Approve(ctx, tx, testutil.Alice, testutil.Bob, amount)
		}))
	}
	allowance := func() *domain.Amount {
		var out *domain.Amount
		s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
			a, err := s.ledger.Allowance(ctx, tx, testutil.Alice, testutil.Bob)
			out = a
			return err
		})
		return out
	}
	spend := func(amount uint64) error {
		return s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.TransferFrom(ctx, tx, testutil.Bob, testutil.Alice, testutil.Carol, amt(amount))
		})
	}

	approve(amt(30))
	s.Require().NoError(spend(25))
	s.Equal(uint64(5), allowance().Uint64())
	s.True(dErrors.HasCode(spend(6), dErrors.CodeInsufficientAllowance))

	approve(domain.Unlimited())
	s.Require().NoError(spend(50))
	s.True(domain.IsUnlimited(allowance()), "the unlimited sentinel is never consumed")
	s.Equal(uint64(75), s.balance(testutil.Carol))

	s.Run("approve rejects null spender", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.ledger.Approve(ctx, tx, testutil.Alice, domain.NullAccount, amt(1))
		})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})
}

func (s *LedgerSuite) TestCheckConservationDetectsDrift() {
	s.ls.Fund(s.T(), testutil.Alice, 10)
	s.ls.Seed(s.T(), func(ctx context.Context, tx state.Tx) error {
		return tx.SetBalance(ctx, testutil.Bob, amt(1))
	})
	var err error
	s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
		err = s.ledger.CheckConservation(ctx, tx)
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// restore so TearDownTest passes
	s.ls.Seed(s.T(), func(ctx context.Context, tx state.Tx) error {
		return tx.SetBalance(ctx, testutil.Bob, domain.ZeroAmount())
	})
}
