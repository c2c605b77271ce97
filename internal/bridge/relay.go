package bridge

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mintgate/internal/state"
	"mintgate/pkg/domain"
	"mintgate/pkg/platform/circuit"
	"mintgate/pkg/platform/sentinel"
)

// RelayMetrics holds the outbox delivery collectors.
type RelayMetrics struct {
	Delivered   *prometheus.CounterVec
	Failed      *prometheus.CounterVec
	CircuitOpen *prometheus.GaugeVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	f := promauto.With(reg)
	return &RelayMetrics{
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_outbox_delivered_total",
			Help: "Outbound bridge messages handed to the endpoint, by destination chain",
		}, []string{"dst"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mintgate_outbox_failed_total",
			Help: "Failed outbound bridge delivery attempts, by destination chain",
		}, []string{"dst"}),
		CircuitOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mintgate_outbox_circuit_open",
			Help: "1 while the circuit breaker for a destination chain is open",
		}, []string{"dst"}),
	}
}

func (m *RelayMetrics) delivered(dst domain.ChainID) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(dst.String()).Inc()
}

func (m *RelayMetrics) failed(dst domain.ChainID) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(dst.String()).Inc()
}

func (m *RelayMetrics) circuit(dst domain.ChainID, open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.WithLabelValues(dst.String()).Set(1)
		return
	}
	m.CircuitOpen.WithLabelValues(dst.String()).Set(0)
}

// destination is the delivery state of one destination chain.
type destination struct {
	breaker *circuit.Breaker
	retryAt time.Time
}

// Relay delivers committed outbound messages to the Endpoint. Delivery is
// at-least-once: a message is marked delivered only after the Endpoint
// accepted it, and the receiving side drops duplicates by GUID.
//
// Each destination chain has its own circuit breaker. While a destination's
// circuit is open its messages are left out of the batch and only its oldest
// message is retried, once per back-off period, so an unreachable chain does
// not hold up delivery to the others.
type Relay struct {
	outbox      state.Outbox
	endpoint    Endpoint
	breakerOpts []circuit.Option
	logger      *slog.Logger
	metrics     *RelayMetrics
	interval    time.Duration
	backoff     time.Duration
	batch       int
	wake        <-chan struct{}
	now         func() time.Time

	mu           sync.Mutex
	destinations map[domain.ChainID]*destination
}

type RelayOption func(*Relay)

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithRelayMetrics(m *RelayMetrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithBreakerOptions configures the circuit breaker created for each
// destination chain.
func WithBreakerOptions(opts ...circuit.Option) RelayOption {
	return func(r *Relay) {
		r.breakerOpts = append(r.breakerOpts, opts...)
	}
}

// WithPollInterval sets the idle poll interval and how long an open
// destination waits between retries.
func WithPollInterval(interval, openBackoff time.Duration) RelayOption {
	return func(r *Relay) {
		if interval > 0 {
			r.interval = interval
		}
		if openBackoff > 0 {
			r.backoff = openBackoff
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithWake makes the relay flush as soon as a value arrives on ch, in
// addition to polling.
func WithWake(ch <-chan struct{}) RelayOption {
	return func(r *Relay) {
		r.wake = ch
	}
}

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(outbox state.Outbox, endpoint Endpoint, opts ...RelayOption) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if endpoint == nil {
		return nil, errors.New("endpoint is required")
	}
	r := &Relay{
		outbox:       outbox,
		endpoint:     endpoint,
		logger:       slog.Default(),
		interval:     time.Second,
		backoff:      10 * time.Second,
		batch:        50,
		now:          time.Now,
		destinations: make(map[domain.ChainID]*destination),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run flushes until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// CircuitOpen reports whether the circuit for dst is open.
func (r *Relay) CircuitOpen(dst domain.ChainID) bool {
	return r.destination(dst).breaker.IsOpen()
}

// Flush retries the oldest message of every open destination that is due,
// then delivers one batch of pending messages to the remaining destinations.
// It returns how many messages the Endpoint accepted. A destination that
// fails is skipped for the rest of the batch so later messages to it are not
// delivered ahead of the failed one.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	delivered := 0
	_, due := r.openDestinations()
	for _, dst := range due {
		entry, err := r.outbox.NextOutbound(ctx, dst)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return delivered, err
		}
		ok, err := r.deliver(ctx, entry)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}

	// A successful retry may have closed a circuit, so the skip list is taken
	// after the retries.
	open, _ := r.openDestinations()
	pending, err := r.outbox.PendingOutbound(ctx, r.batch, open...)
	if err != nil {
		return delivered, err
	}
	blocked := make(map[domain.ChainID]bool)
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if blocked[entry.Dst] || r.CircuitOpen(entry.Dst) {
			continue
		}
		ok, err := r.deliver(ctx, entry)
		if err != nil {
			return delivered, err
		}
		if !ok {
			blocked[entry.Dst] = true
			continue
		}
		delivered++
	}
	return delivered, nil
}

// deliver sends one entry and reports whether the Endpoint accepted it.
func (r *Relay) deliver(ctx context.Context, entry state.OutboxEntry) (bool, error) {
	d := r.destination(entry.Dst)
	if err := r.endpoint.Send(ctx, entry.Dst, entry.Envelope); err != nil {
		r.recordFailure(ctx, d, entry, err)
		return false, nil
	}
	if err := r.outbox.MarkDelivered(ctx, entry.ID, r.now()); err != nil {
		// The endpoint has the message; the next flush resends it and the
		// receiver drops the duplicate.
		return false, err
	}
	r.metrics.delivered(entry.Dst)
	if _, change := d.breaker.RecordSuccess(); change.Closed {
		r.metrics.circuit(entry.Dst, false)
		r.logger.InfoContext(ctx, "endpoint circuit closed", "breaker", d.breaker.Name())
	}
	return true, nil
}

func (r *Relay) destination(dst domain.ChainID) *destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.destinations[dst]
	if !ok {
		d = &destination{breaker: circuit.New("bridge-endpoint-"+dst.String(), r.breakerOpts...)}
		r.destinations[dst] = d
	}
	return d
}

// openDestinations lists the destinations whose circuit is open, and the
// subset whose retry is due.
func (r *Relay) openDestinations() (open, due []domain.ChainID) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for dst, d := range r.destinations {
		if !d.breaker.IsOpen() {
			continue
		}
		open = append(open, dst)
		if !now.Before(d.retryAt) {
			due = append(due, dst)
		}
	}
	slices.Sort(open)
	slices.Sort(due)
	return open, due
}

func (r *Relay) recordFailure(ctx context.Context, d *destination, entry state.OutboxEntry, cause error) {
	r.metrics.failed(entry.Dst)
	if err := r.outbox.MarkAttempted(ctx, entry.ID); err != nil {
		r.logger.ErrorContext(ctx, "failed to record delivery attempt",
			"outbox_id", entry.ID.String(),
			"error", err,
		)
	}
	open, change := d.breaker.RecordFailure()
	if open {
		r.mu.Lock()
		d.retryAt = r.now().Add(r.backoff)
		r.mu.Unlock()
	}
	r.logger.WarnContext(ctx, "outbound bridge delivery failed",
		"guid", entry.GUID.String(),
		"dst", entry.Dst.String(),
		"attempts", entry.Attempts+1,
		"error", cause,
	)
	if change.Opened {
		r.metrics.circuit(entry.Dst, true)
		r.logger.ErrorContext(ctx, "endpoint circuit opened",
			"breaker", d.breaker.Name(),
			"retry_in", r.backoff.String(),
		)
	}
}
