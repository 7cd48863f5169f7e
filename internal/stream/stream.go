// Package stream consumes transaction records from Kafka and scores each one
// as a single-record batch.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/davidahmann/txnscore/internal/audit"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/schema"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxInFlight bounds concurrent single-record runs. Zero means 1.
	MaxInFlight int64
}

// Runner drives the consume loop. Each message is one nested transaction
// record in JSON; malformed messages are logged and skipped, never retried.
type Runner struct {
	group  sarama.ConsumerGroup
	topic  string
	runner *pipeline.Runner
	store  audit.Store
	sem    *semaphore.Weighted
	log    zerolog.Logger
}

func New(cfg Config, runner *pipeline.Runner, store audit.Store, log zerolog.Logger) (*Runner, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("stream: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("stream: topic is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("stream: group id is required")
	}

	sc := sarama.NewConfig()
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("stream: create consumer group: %w", err)
	}

	inFlight := cfg.MaxInFlight
	if inFlight <= 0 {
		inFlight = 1
	}

	return &Runner{
		group:  group,
		topic:  cfg.Topic,
		runner: runner,
		store:  store,
		sem:    semaphore.NewWeighted(inFlight),
		log:    log,
	}, nil
}

// Run blocks until ctx is cancelled or the consumer group fails.
func (r *Runner) Run(ctx context.Context) error {
	go func() {
		for err := range r.group.Errors() {
			r.log.Error().Err(err).Msg("consumer group error")
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.group.Consume(ctx, []string{r.topic}, &groupHandler{runner: r}); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.log.Error().Err(err).Msg("consume session ended")
		}
	}
}

func (r *Runner) Close() error {
	return r.group.Close()
}

// process scores one record as a single-record batch and persists the result.
func (r *Runner) process(ctx context.Context, value []byte) {
	var rec schema.TransactionRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		r.log.Warn().Err(err).Msg("skipping malformed record")
		return
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer r.sem.Release(1)

	result := r.runner.Run([]schema.TransactionRecord{rec}, "")

	for _, d := range result.Decisions {
		r.log.Info().
			Str("batch_id", result.BatchID).
			Str("record_id", d.RecordID).
			Str("action", string(d.Action)).
			Float64("dqs_final", float64(d.DQSFinal)).
			Str("confidence_band", string(d.ConfidenceBand)).
			Msg("record scored")
	}

	if r.store == nil {
		return
	}
	batch, decisions, err := audit.BuildRecords(result)
	if err != nil {
		r.log.Error().Err(err).Str("batch_id", result.BatchID).Msg("build audit records")
		return
	}
	if err := r.store.PutRun(batch, decisions); err != nil {
		r.log.Error().Err(err).Str("batch_id", result.BatchID).Msg("persist batch")
	}
}

type groupHandler struct {
	runner *Runner
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.runner.process(session.Context(), msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}
