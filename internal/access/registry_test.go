package access

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
// Registry Test Suite
// =============================================================================
// Justification: the registry owns the only path to the supervisor role.
// Tests cover admin checks, idempotent grant/revoke, admin-graph acyclicity
// and the two-phase handover.

type RegistrySuite struct {
	suite.Suite
	ls       *testutil.LedgerState
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ls = testutil.NewLedgerState(s.T(), 6)
	s.registry = New()
}

func (s *RegistrySuite) run(fn func(ctx context.Context, tx state.Tx) error) error {
	return s.ls.Run(fn)
}

func (s *RegistrySuite) hasRole(role domain.Role, account domain.Account) bool {
	var held bool
	s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
		h, err := s.registry.HasRole(ctx, tx, role, account)
		held = h
		return err
	})
	return held
}

func (s *RegistrySuite) lastEvent() audit.Event {
	events := s.ls.CommittedEvents()
	s.Require().NotEmpty(events)
	return events[len(events)-1]
}

func (s *RegistrySuite) TestBootstrap() {
	s.Run("null supervisor is rejected", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.Bootstrap(ctx, tx, domain.NullAccount)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})
}

func (s *RegistrySuite) TestGrantRole() {
	s.Run("supervisor grants and the event is emitted once", func() {
		grant := func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Supervisor, domain.MinterRole, testutil.Minter)
		}
		s.Require().NoError(s.run(grant))
		s.True(s.hasRole(domain.MinterRole, testutil.Minter))

		event := s.lastEvent()
		s.Equal(audit.EventRoleGranted, event.Name)
		s.Equal(domain.MinterRole, event.Role)
		s.Equal(testutil.Minter, event.Account)

		before := s.ls.EventCount()
		s.Require().NoError(s.run(grant))
		s.Equal(before, s.ls.EventCount(), "granting a held role emits nothing")
	})

	s.Run("non-admin caller is unauthorized", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Alice, domain.MinterRole, testutil.Bob)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.False(s.hasRole(domain.MinterRole, testutil.Bob))
	})

	s.Run("null account is rejected", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Supervisor, domain.MinterRole, domain.NullAccount)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeZeroAddress))
	})

	s.Run("supervisor role cannot be granted", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Supervisor, domain.SupervisorRole, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistrySuite) TestRevokeAndRenounce() {
	s.ls.Grant(s.T(), domain.PauserRole, testutil.Pauser)

	s.Run("renounce requires matching confirmation", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.RenounceRole(ctx, tx, testutil.Pauser, domain.PauserRole, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadConfirmation))
		s.True(s.hasRole(domain.PauserRole, testutil.Pauser))
	})

	s.Run("renounce drops own role", func() {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.RenounceRole(ctx, tx, testutil.Pauser, domain.PauserRole, testutil.Pauser)
		}))
		s.False(s.hasRole(domain.PauserRole, testutil.Pauser))
		s.Equal(audit.EventRoleRevoked, s.lastEvent().Name)
	})

	s.Run("revoking an unheld role is a silent no-op", func() {
		before := s.ls.EventCount()
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.RevokeRole(ctx, tx, testutil.Supervisor, domain.PauserRole, testutil.Pauser)
		}))
		s.Equal(before, s.ls.EventCount())
	})

	s.Run("supervisor cannot renounce", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.RenounceRole(ctx, tx, testutil.Supervisor, domain.SupervisorRole, testutil.Supervisor)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("confirmation is checked first", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.RenounceRole(ctx, tx, testutil.Supervisor, domain.SupervisorRole, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadConfirmation), "got %v", err)
	})
}

func (s *RegistrySuite) TestSetRoleAdmin() {
	s.Run("delegated admin can grant", func() {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.SetRoleAdmin(ctx, tx, testutil.Supervisor, domain.MinterRole, domain.BurnerRole)
		}))
		event := s.lastEvent()
		s.Equal(audit.EventRoleAdminChanged, event.Name)
		s.Equal(domain.BurnerRole, event.AdminRole)
		s.Equal(domain.SupervisorRole, event.PreviousAdminRole)

		s.ls.Grant(s.T(), domain.BurnerRole, testutil.Burner)
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Burner, domain.MinterRole, testutil.Alice)
		}))
		s.True(s.hasRole(domain.MinterRole, testutil.Alice))

		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.GrantRole(ctx, tx, testutil.Supervisor, domain.MinterRole, testutil.Bob)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "supervisor is no longer the admin of the minter role")
	})

	s.Run("cycles are rejected", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.SetRoleAdmin(ctx, tx, testutil.Supervisor, domain.BurnerRole, domain.MinterRole)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("self-administration is rejected", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.SetRoleAdmin(ctx, tx, testutil.Supervisor, domain.PauserRole, domain.PauserRole)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("supervisor role admin is fixed", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.SetRoleAdmin(ctx, tx, testutil.Supervisor, domain.SupervisorRole, domain.PauserRole)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistrySuite) TestSupervisorHandover() {
	candidate := testutil.Carol

	s.Run("only the supervisor may nominate", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.BeginSupervisorTransfer(ctx, tx, testutil.Alice, candidate)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("banned candidate is refused", func() {
		s.ls.Ban(s.T(), testutil.Bob)
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.BeginSupervisorTransfer(ctx, tx, testutil.Supervisor, testutil.Bob)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotAllowed))
	})

	s.Run("accept moves the role", func() {
		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.BeginSupervisorTransfer(ctx, tx, testutil.Supervisor, candidate)
		}))
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.AcceptSupervisorTransfer(ctx, tx, testutil.Alice)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCandidate))

		s.Require().NoError(s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.AcceptSupervisorTransfer(ctx, tx, candidate)
		}))
		s.True(s.hasRole(domain.SupervisorRole, candidate))
		s.False(s.hasRole(domain.SupervisorRole, testutil.Supervisor))

		event := s.lastEvent()
		s.Equal(audit.EventRoleGranted, event.Name)
		s.Equal(candidate, event.Account)
		s.Equal(candidate, event.Caller)

		s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
			members, err := s.registry.RoleMembers(ctx, tx, domain.SupervisorRole)
			s.Require().NoError(err)
			s.Equal([]domain.Account{candidate}, members)
			pending, err := s.registry.PendingSupervisor(ctx, tx)
			s.Require().NoError(err)
			s.True(domain.IsNull(pending))
			return nil
		})
	})

	s.Run("accept without a pending nominee fails", func() {
		err := s.run(func(ctx context.Context, tx state.Tx) error {
			return s.registry.AcceptSupervisorTransfer(ctx, tx, candidate)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCandidate))
	})
}

func (s *RegistrySuite) TestIsSupervisor() {
	s.ls.Read(s.T(), func(ctx context.Context, tx state.Tx) error {
		ok, err := s.registry.IsSupervisor(ctx, tx, testutil.Supervisor)
		s.Require().NoError(err)
		s.True(ok)
		ok, err = s.registry.IsSupervisor(ctx, tx, domain.NullAccount)
		s.Require().NoError(err)
		s.False(ok)
		admin, err := s.registry.GetRoleAdmin(ctx, tx, domain.PauserRole)
		s.Require().NoError(err)
		s.Equal(domain.SupervisorRole, admin)
		return nil
	})
}
