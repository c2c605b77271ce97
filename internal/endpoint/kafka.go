package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"mintgate/internal/bridge"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/requestcontext"
)

const (
	topicPrefix  = "mintgate.bridge."
	headerSource = "mintgate-src"
)

// Topic is the inbound topic of chain.
func Topic(chain domain.ChainID) string {
	return topicPrefix + chain.String()
}

// DeadLetterTopic receives inbound envelopes the local ledger rejected for a
// reason retrying cannot fix.
func DeadLetterTopic(chain domain.ChainID) string {
	return Topic(chain) + ".dlq"
}

// Kafka carries envelopes over one topic per destination chain. The record
// key is the envelope's destination so ordering per source/destination pair
// follows partition order.
type Kafka struct {
	client    *kgo.Client
	local     domain.ChainID
	delegates DelegateRegistry
	logger    *slog.Logger
	retry     time.Duration
}

type KafkaOption func(*Kafka)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		k.logger = logger
	}
}

// WithRetryBackoff sets the pause before retrying an inbound message that
// failed with a transient error.
func WithRetryBackoff(d time.Duration) KafkaOption {
	return func(k *Kafka) {
		if d > 0 {
			k.retry = d
		}
	}
}

// NewKafka wraps a client that consumes Topic(local) in a consumer group with
// auto-commit disabled.
func NewKafka(client *kgo.Client, local domain.ChainID, delegates DelegateRegistry, opts ...KafkaOption) (*Kafka, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if local == 0 {
		return nil, errors.New("local chain id is required")
	}
	if delegates == nil {
		return nil, errors.New("delegate registry is required")
	}
	k := &Kafka{
		client:    client,
		local:     local,
		delegates: delegates,
		logger:    slog.Default(),
		retry:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// EnsureTopics creates the inbound and dead-letter topics for the given
// chains, ignoring topics that already exist.
func (k *Kafka) EnsureTopics(ctx context.Context, partitions int32, replication int16, chains ...domain.ChainID) error {
	topics := make([]string, 0, 2*len(chains))
	for _, c := range chains {
		topics = append(topics, Topic(c), DeadLetterTopic(c))
	}
	resp, err := kadm.NewClient(k.client).CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return err
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return r.Err
		}
	}
	return nil
}

func (k *Kafka) Send(ctx context.Context, dst domain.ChainID, envelope []byte) error {
	rec := &kgo.Record{
		Topic:   Topic(dst),
		Key:     []byte(k.local.String()),
		Value:   envelope,
		Headers: []kgo.RecordHeader{{Key: headerSource, Value: []byte(k.local.String())}},
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to produce bridge envelope")
	}
	return nil
}

func (k *Kafka) SetDelegate(ctx context.Context, chain domain.ChainID, delegate domain.Account) error {
	return k.delegates.SetDelegate(ctx, chain, delegate)
}

func (k *Kafka) Delegate(ctx context.Context, chain domain.ChainID) (domain.Account, error) {
	return k.delegates.Delegate(ctx, chain)
}

// Consume hands every inbound record to r until ctx is done. Offsets are
// committed only after a record was applied, dropped as a duplicate, or
// dead-lettered, so a crash mid-batch redelivers and the receiver dedupes.
func (k *Kafka) Consume(ctx context.Context, r bridge.Receiver) error {
	for {
		fetches := k.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, fe := range fetches.Errors() {
			k.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		var done []*kgo.Record
		var stop error
		fetches.EachRecord(func(rec *kgo.Record) {
			if stop != nil {
				return
			}
			if err := k.handle(ctx, r, rec); err != nil {
				stop = err
				return
			}
			done = append(done, rec)
		})
		if len(done) > 0 {
			if err := k.client.CommitRecords(ctx, done...); err != nil {
				k.logger.ErrorContext(ctx, "kafka commit failed", "error", err)
			}
		}
		if stop != nil {
			return stop
		}
	}
}

// handle retries transient failures until ctx ends and dead-letters the rest.
func (k *Kafka) handle(ctx context.Context, r bridge.Receiver, rec *kgo.Record) error {
	src, err := sourceOf(rec)
	if err != nil {
		return k.deadLetter(ctx, rec, err)
	}
	ctx = requestcontext.WithSource(ctx, "kafka")
	for {
		err := r.Receive(ctx, src, rec.Value)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return k.deadLetter(ctx, rec, err)
		}
		k.logger.WarnContext(ctx, "inbound bridge message will be retried",
			"topic", rec.Topic,
			"offset", rec.Offset,
			"code", string(dErrors.CodeOf(err)),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(k.retry):
		}
	}
}

func (k *Kafka) deadLetter(ctx context.Context, rec *kgo.Record, cause error) error {
	k.logger.ErrorContext(ctx, "inbound bridge message rejected",
		"topic", rec.Topic,
		"offset", rec.Offset,
		"code", string(dErrors.CodeOf(cause)),
		"error", cause,
	)
	dlq := &kgo.Record{
		Topic: DeadLetterTopic(k.local),
		Key:   rec.Key,
		Value: rec.Value,
		Headers: append(append([]kgo.RecordHeader(nil), rec.Headers...),
			kgo.RecordHeader{Key: "mintgate-error", Value: []byte(cause.Error())}),
	}
	return k.client.ProduceSync(ctx, dlq).FirstErr()
}

func sourceOf(rec *kgo.Record) (domain.ChainID, error) {
	for _, h := range rec.Headers {
		if h.Key == headerSource {
			v, err := strconv.ParseUint(string(h.Value), 10, 32)
			if err != nil || v == 0 {
				return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid source chain header")
			}
			return domain.ChainID(v), nil
		}
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "missing source chain header")
}

// transient reports whether retrying the same message can succeed without
// operator action on the message itself.
func transient(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeEnforcedPause, dErrors.CodeTimeout, dErrors.CodeUnavailable,
		dErrors.CodeInternal, dErrors.CodeNoPeer, dErrors.CodeInvalidInitialization:
		return true
	}
	return false
}
