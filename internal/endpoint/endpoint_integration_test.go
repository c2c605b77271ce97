//go:build integration

package endpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/testutil/containers"
)

var delegate = domain.MustParseAccount("0xd000000000000000000000000000000000000d0d")

func TestRedisDelegates_Integration(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	metrics := NewDelegateMetrics(prometheus.NewRegistry())
	reg := NewRedisDelegates(rc.Client, WithDelegateMetrics(metrics))

	none, err := reg.Delegate(ctx, 30101)
	require.NoError(t, err)
	assert.True(t, domain.IsNull(none))

	require.NoError(t, reg.SetDelegate(ctx, 30101, delegate))
	got, err := reg.Delegate(ctx, 30101)
	require.NoError(t, err)
	assert.Equal(t, delegate, got)

	require.NoError(t, reg.SetDelegate(ctx, 30101, domain.NullAccount))
	got, err = reg.Delegate(ctx, 30101)
	require.NoError(t, err)
	assert.True(t, domain.IsNull(got))

	var m dto.Metric
	require.NoError(t, metrics.LookupDurationMs.Write(&m))
	assert.Equal(t, uint64(3), m.GetHistogram().GetSampleCount())
}

type recordingReceiver struct {
	mu    sync.Mutex
	calls int
	got   chan []byte
	fail  error
}

func (r *recordingReceiver) Receive(_ context.Context, src domain.ChainID, envelope []byte) error {
	r.mu.Lock()
	r.calls++
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	r.got <- envelope
	return nil
}

func newKafka(t *testing.T, broker string, local domain.ChainID, group string) *Kafka {
	t.Helper()
	client, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(Topic(local)),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	k, err := NewKafka(client, local, NewMemoryDelegates(), WithRetryBackoff(50*time.Millisecond))
	require.NoError(t, err)
	return k
}

func TestKafka_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sender := newKafka(t, rp.Broker, 30101, "mintgate-30101")
	receiver := newKafka(t, rp.Broker, 30102, "mintgate-30102")
	require.NoError(t, sender.EnsureTopics(ctx, 1, 1, 30101, 30102))
	// a second call must tolerate existing topics
	require.NoError(t, sender.EnsureTopics(ctx, 1, 1, 30101, 30102))

	rec := &recordingReceiver{got: make(chan []byte, 1)}
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = receiver.Consume(consumeCtx, rec) }()

	require.NoError(t, sender.Send(ctx, 30102, []byte(`{"hello":"bridge"}`)))

	select {
	case body := <-rec.got:
		assert.JSONEq(t, `{"hello":"bridge"}`, string(body))
	case <-ctx.Done():
		t.Fatal("envelope was not delivered")
	}
}

func TestKafka_DeadLettersPermanentFailures(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	k := newKafka(t, rp.Broker, 30102, "mintgate-30102")
	require.NoError(t, k.EnsureTopics(ctx, 1, 1, 30102))

	rec := &recordingReceiver{got: make(chan []byte, 1), fail: dErrors.New(dErrors.CodeAlreadyBanned, "banned")}
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = k.Consume(consumeCtx, rec) }()

	require.NoError(t, k.Send(ctx, 30102, []byte(`{}`)))

	dlq, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(DeadLetterTopic(30102)),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer dlq.Close()

	fetches := dlq.PollRecords(ctx, 1)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []byte(`{}`), records[0].Value)
}
