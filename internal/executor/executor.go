// Package executor runs each public ledger operation as one serialized
// transaction and publishes the committed events.
//
// Events emitted inside the transaction are only observed after a successful
// commit; a failed operation produces no audit line, no published event and
// no event metric. Publishing is best effort: the committed state is the
// source of truth and a publisher failure is logged, never returned.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	audit "mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

// Publisher receives committed events.
type Publisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Executor wraps a state.Runner with logging, metrics and tracing.
type Executor struct {
	runner    state.Runner
	logger    *slog.Logger
	metrics   *Metrics
	publisher Publisher
	tracer    trace.Tracer
}

type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Executor) {
		e.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

func New(runner state.Runner, opts ...Option) (*Executor, error) {
	if runner == nil {
		return nil, errors.New("state runner is required")
	}
	e := &Executor{
		runner: runner,
		logger: slog.Default(),
		tracer: otel.Tracer("mintgate/executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs fn as the state-changing operation op.
func (e *Executor) Execute(ctx context.Context, op string, fn func(tx state.Tx) error) error {
	ctx, span := e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.op", op),
		attribute.String("ledger.caller", requestcontext.Caller(ctx).Hex()),
		attribute.String("ledger.source", requestcontext.Source(ctx)),
	))
	defer span.End()

	start := time.Now()
	var (
		committed []audit.Event
		supply    *domain.Amount
	)
	err := e.runner.RunInTx(ctx, func(tx state.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		committed = tx.Events()
		s, err := tx.TotalSupply(ctx)
		if err != nil {
			return err
		}
		supply = s
		return nil
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		code := dErrors.CodeOf(err)
		e.metrics.observe(op, string(code), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		level := slog.LevelWarn
		if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
			level = slog.LevelError
		}
		e.logger.Log(ctx, level, "ledger operation failed",
			"op", op,
			"code", string(code),
			"error", err,
			"caller", requestcontext.Caller(ctx).Hex(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return err
	}

	e.metrics.observe(op, "ok", elapsed)
	e.metrics.setSupply(supply)
	span.SetAttributes(attribute.Int("ledger.events", len(committed)))
	for _, event := range committed {
		if event.RequestID == "" {
			event.RequestID = requestcontext.RequestID(ctx)
		}
		e.publish(ctx, event)
	}
	return nil
}

// Query runs fn against a read-only view of the state.
func (e *Executor) Query(ctx context.Context, op string, fn func(tx state.Tx) error) error {
	ctx, span := e.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attribute.String("ledger.op", op)))
	defer span.End()

	if err := e.runner.View(ctx, fn); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

func (e *Executor) publish(ctx context.Context, event audit.Event) {
	e.metrics.incEvent(string(event.Name))
	LogAudit(ctx, e.logger, event)
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Emit(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish ledger event",
			"event", string(event.Name),
			"event_id", event.ID.String(),
			"error", err,
		)
	}
}

// LogAudit writes the structured audit line for one committed event.
func LogAudit(ctx context.Context, logger *slog.Logger, event audit.Event) {
	if logger == nil {
		return
	}
	args := []any{
		"event", string(event.Name),
		"log_type", "audit",
		"category", string(event.Category()),
		"event_id", event.ID.String(),
	}
	if !domain.IsNull(event.Caller) {
		args = append(args, "caller", event.Caller.Hex())
	}
	if !domain.IsNull(event.Account) {
		args = append(args, "account", event.Account.Hex())
	}
	if !domain.IsNull(event.Counterparty) {
		args = append(args, "counterparty", event.Counterparty.Hex())
	}
	switch event.Name {
	case audit.EventRoleGranted, audit.EventRoleRevoked:
		args = append(args, "role", event.Role.String())
	case audit.EventRoleAdminChanged:
		args = append(args, "role", event.Role.String(),
			"admin_role", event.AdminRole.String(),
			"previous_admin_role", event.PreviousAdminRole.String())
	}
	if event.Amount != nil {
		args = append(args, "amount", event.Amount.Dec())
	}
	if event.Chain != 0 {
		args = append(args, "chain", uint32(event.Chain))
	}
	if event.GUID != "" {
		args = append(args, "guid", event.GUID)
	}
	if event.Detail != "" {
		args = append(args, "detail", event.Detail)
	}
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	logger.InfoContext(ctx, string(event.Name), args...)
}
