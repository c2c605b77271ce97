// Package endpoint provides the transports that carry bridge envelopes
// between ledger instances, and the registries that record each chain's
// endpoint delegate.
package endpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"mintgate/pkg/domain"
)

// DelegateRegistry records the account allowed to reconfigure bridging on
// the endpoint for a chain.
type DelegateRegistry interface {
	SetDelegate(ctx context.Context, chain domain.ChainID, delegate domain.Account) error
	Delegate(ctx context.Context, chain domain.ChainID) (domain.Account, error)
}

// MemoryDelegates is a process-local registry.
type MemoryDelegates struct {
	mu        sync.RWMutex
	delegates map[domain.ChainID]domain.Account
}

func NewMemoryDelegates() *MemoryDelegates {
	return &MemoryDelegates{delegates: make(map[domain.ChainID]domain.Account)}
}

func (m *MemoryDelegates) SetDelegate(_ context.Context, chain domain.ChainID, delegate domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegates[chain] = delegate
	return nil
}

// Delegate returns the null account when none is registered.
func (m *MemoryDelegates) Delegate(_ context.Context, chain domain.ChainID) (domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegates[chain], nil
}

// DelegateMetrics holds the delegate registry collectors.
type DelegateMetrics struct {
	LookupDurationMs prometheus.Histogram
}

func NewDelegateMetrics(reg prometheus.Registerer) *DelegateMetrics {
	return &DelegateMetrics{
		LookupDurationMs: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "mintgate_endpoint_delegate_lookup_duration_ms",
			Help:    "Latency of endpoint delegate lookups in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

func (m *DelegateMetrics) observeLookup(start time.Time) {
	if m == nil {
		return
	}
	m.LookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

const delegateKeyPrefix = "mintgate:endpoint:delegate:"

// RedisDelegates shares delegate registrations between every process that
// serves the same endpoint.
type RedisDelegates struct {
	client  *redis.Client
	metrics *DelegateMetrics
}

type RedisDelegatesOption func(*RedisDelegates)

func WithDelegateMetrics(m *DelegateMetrics) RedisDelegatesOption {
	return func(r *RedisDelegates) {
		r.metrics = m
	}
}

func NewRedisDelegates(client *redis.Client, opts ...RedisDelegatesOption) *RedisDelegates {
	r := &RedisDelegates{client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisDelegates) SetDelegate(ctx context.Context, chain domain.ChainID, delegate domain.Account) error {
	key := delegateKeyPrefix + chain.String()
	if domain.IsNull(delegate) {
		return r.client.Del(ctx, key).Err()
	}
	return r.client.Set(ctx, key, delegate.Hex(), 0).Err()
}

// Delegate returns the null account when none is registered.
func (r *RedisDelegates) Delegate(ctx context.Context, chain domain.ChainID) (domain.Account, error) {
	defer r.metrics.observeLookup(time.Now())

	raw, err := r.client.Get(ctx, delegateKeyPrefix+chain.String()).Result()
	if errors.Is(err, redis.Nil) {
		return domain.NullAccount, nil
	}
	if err != nil {
		return domain.NullAccount, err
	}
	return domain.ParseAccount(raw)
}
