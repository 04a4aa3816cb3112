package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
	"github.com/praxisdesk/go-praxis/internal/infrastructure/redpanda"
)

// OutboxEntry is an event awaiting publication.
type OutboxEntry struct {
	ID          int64
	VONumber    string
	EventType   string
	Payload     json.RawMessage
	Topic       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	RetryCount  int
	LastError   *string
}

// OutboxSink records domain events in the outbox table. It satisfies
// both the status engine's and the composer's event sink interfaces.
type OutboxSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewOutboxSink creates a sink over the given pool.
func NewOutboxSink(pool *pgxpool.Pool, logger *zap.Logger) *OutboxSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxSink{pool: pool, logger: logger}
}

// Record writes the events of one logical update in a single
// transaction, so a compound status write is relayed all-or-nothing.
func (s *OutboxSink) Record(ctx context.Context, events []*vo.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO outbox (vo_number, event_type, payload, topic)
		VALUES ($1, $2, $3, $4)
	`
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		if _, err := tx.Exec(ctx, query, ev.VONumber, string(ev.EventType), payload, topicFor(ev.EventType)); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}
	return nil
}

func topicFor(eventType vo.EventType) string {
	switch eventType {
	case vo.EventStatusChanged:
		return redpanda.TopicTransitions
	case vo.EventDocumentGenerated, vo.EventRefundGenerated:
		return redpanda.TopicRefunds
	default:
		return redpanda.TopicAuditTrail
	}
}

// OutboxConfig holds configuration for the outbox processor.
type OutboxConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
}

// DefaultOutboxConfig returns sensible defaults
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:    100,
		PollInterval: 250 * time.Millisecond,
		MaxRetries:   5,
	}
}

// OutboxPublisher publishes relayed entries.
type OutboxPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Outbox polls the outbox table and relays entries to the event stream.
type Outbox struct {
	pool      *pgxpool.Pool
	config    OutboxConfig
	publisher OutboxPublisher
	logger    *zap.Logger
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutbox creates an outbox processor.
func NewOutbox(pool *pgxpool.Pool, publisher OutboxPublisher, cfg OutboxConfig, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Outbox{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox"),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins polling for entries.
func (o *Outbox) Start() {
	go o.processLoop()
	o.logger.Info("outbox processor started",
		zap.Int("batch_size", o.config.BatchSize),
		zap.Duration("poll_interval", o.config.PollInterval))
}

// Stop gracefully stops the processor.
func (o *Outbox) Stop() {
	o.cancel()
	<-o.done
	o.logger.Info("outbox processor stopped")
}

func (o *Outbox) processLoop() {
	defer close(o.done)

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.processBatch()
		}
	}
}

// outboxLockID is the advisory lock shared by relay instances; only one
// processes the table at a time.
const outboxLockID = int64(720914)

func (o *Outbox) processBatch() {
	ctx, span := o.tracer.Start(o.ctx, "outbox_process_batch")
	defer span.End()

	var acquired bool
	err := o.pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", outboxLockID).Scan(&acquired)
	if err != nil || !acquired {
		return
	}
	defer o.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", outboxLockID)

	entries, err := o.fetchUnprocessed(ctx)
	if err != nil {
		o.logger.Error("failed to fetch outbox entries", zap.Error(err))
		span.RecordError(err)
		return
	}
	if len(entries) == 0 {
		return
	}

	span.SetAttributes(attribute.Int("batch_size", len(entries)))
	for _, entry := range entries {
		if err := o.processEntry(ctx, entry); err != nil {
			o.logger.Error("failed to process outbox entry",
				zap.Int64("id", entry.ID),
				zap.String("event_type", entry.EventType),
				zap.Error(err))
		}
	}
}

func (o *Outbox) fetchUnprocessed(ctx context.Context) ([]*OutboxEntry, error) {
	query := `
		SELECT id, vo_number, event_type, payload, topic, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := o.pool.Query(ctx, query, o.config.MaxRetries, o.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		entry := &OutboxEntry{}
		err := rows.Scan(
			&entry.ID, &entry.VONumber, &entry.EventType, &entry.Payload,
			&entry.Topic, &entry.CreatedAt, &entry.RetryCount, &entry.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (o *Outbox) processEntry(ctx context.Context, entry *OutboxEntry) error {
	ctx, span := o.tracer.Start(ctx, "outbox_process_entry",
		trace.WithAttributes(
			attribute.Int64("entry_id", entry.ID),
			attribute.String("event_type", entry.EventType),
			attribute.String("vo_number", entry.VONumber),
		))
	defer span.End()

	if err := o.publisher.Publish(ctx, entry.Topic, entry.VONumber, entry.Payload); err != nil {
		errStr := err.Error()
		updateQuery := `
			UPDATE outbox
			SET retry_count = retry_count + 1, last_error = $1
			WHERE id = $2
		`
		if _, updateErr := o.pool.Exec(ctx, updateQuery, errStr, entry.ID); updateErr != nil {
			o.logger.Error("failed to update retry count", zap.Error(updateErr))
		}
		span.RecordError(err)
		return fmt.Errorf("publish failed: %w", err)
	}

	if _, err := o.pool.Exec(ctx, "UPDATE outbox SET processed_at = NOW() WHERE id = $1", entry.ID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("mark processed: %w", err)
	}

	o.logger.Debug("outbox entry relayed",
		zap.Int64("id", entry.ID),
		zap.String("topic", entry.Topic))
	return nil
}

// MoveToDeadLetter republishes entries past their retry budget to the
// dead-letter topic and marks them processed.
func (o *Outbox) MoveToDeadLetter(ctx context.Context) (int64, error) {
	query := `
		SELECT id, vo_number, event_type, payload, topic, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		  AND retry_count >= $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := o.pool.Query(ctx, query, o.config.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		entry := &OutboxEntry{}
		err := rows.Scan(
			&entry.ID, &entry.VONumber, &entry.EventType, &entry.Payload,
			&entry.Topic, &entry.CreatedAt, &entry.RetryCount, &entry.LastError,
		)
		if err != nil {
			continue
		}

		dlPayload, _ := json.Marshal(map[string]interface{}{
			"original_topic": entry.Topic,
			"event_type":     entry.EventType,
			"vo_number":      entry.VONumber,
			"payload":        entry.Payload,
			"retry_count":    entry.RetryCount,
			"last_error":     entry.LastError,
			"created_at":     entry.CreatedAt,
		})

		if err := o.publisher.Publish(ctx, redpanda.TopicDeadLetter, entry.VONumber, dlPayload); err != nil {
			o.logger.Error("failed to publish to dead letter", zap.Error(err))
			continue
		}
		if _, err := o.pool.Exec(ctx, "UPDATE outbox SET processed_at = NOW() WHERE id = $1", entry.ID); err != nil {
			o.logger.Error("failed to mark dead-letter entry", zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// CleanupProcessed removes relayed entries older than the given age.
func (o *Outbox) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM outbox
		WHERE processed_at IS NOT NULL
		  AND processed_at < NOW() - $1::interval
	`
	result, err := o.pool.Exec(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return result.RowsAffected(), nil
}

// PendingCount returns the number of entries awaiting relay.
func (o *Outbox) PendingCount(ctx context.Context) (int64, error) {
	var pending int64
	err := o.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL AND retry_count < $1",
		o.config.MaxRetries).Scan(&pending)
	return pending, err
}
