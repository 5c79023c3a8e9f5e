package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tinylink-io/tinylink/internal/infrastructure/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	outboxStatusPending    = "pending"
	outboxStatusProcessing = "processing"
)

var ErrOutboxEventNotOwned = errors.New("outbox event not owned by worker")

// ClickOutboxRepository stores click events in the same database as the
// links themselves, for a worker to drain into Kafka. Trace context is
// captured at enqueue time so the eventual publish can join the
// originating request's trace.
type ClickOutboxRepository struct {
	pool *pgxpool.Pool
}

type OutboxClickEvent struct {
	ID          string
	Code        string
	OccurredAt  time.Time
	TraceParent string
	TraceState  string
	Baggage     string
	Attempts    int
}

func NewClickOutboxRepository(p *db.Postgres) (*ClickOutboxRepository, error) {
	if p == nil || p.Pool == nil {
		return nil, errors.New("postgres pool is nil")
	}
	return &ClickOutboxRepository{pool: p.Pool}, nil
}

const enqueueClickSQL = `
INSERT INTO link_click_outbox
  (event_type, code, occurred_at, traceparent, tracestate, baggage, status, next_attempt_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (r *ClickOutboxRepository) EnqueueClick(ctx context.Context, code string, occurredAt time.Time) error {
	now := time.Now().UTC()
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	_, err := r.pool.Exec(ctx, enqueueClickSQL,
		"click.recorded",
		code,
		toTimestamptz(occurredAt),
		toNullableText(carrier.Get("traceparent")),
		toNullableText(carrier.Get("tracestate")),
		toNullableText(carrier.Get("baggage")),
		outboxStatusPending,
		toTimestamptz(now),
		toTimestamptz(now),
	)
	return err
}

const claimNextEventSQL = `
WITH next AS (
  SELECT id
  FROM link_click_outbox
  WHERE (status = 'pending' AND next_attempt_at <= $1)
     OR (status = 'processing' AND processing_expires_at <= $1)
  ORDER BY next_attempt_at
  FOR UPDATE SKIP LOCKED
  LIMIT 1
)
UPDATE link_click_outbox o
SET status = 'processing',
    processing_owner = $2,
    processing_expires_at = $3,
    updated_at = $1
FROM next
WHERE o.id = next.id
RETURNING o.id, o.code, o.occurred_at, o.traceparent, o.tracestate, o.baggage, o.attempts
`

// ClaimPending leases up to limit due events for workerID. SKIP LOCKED
// keeps concurrent workers from claiming the same row; an expired lease
// makes the event claimable again.
func (r *ClickOutboxRepository) ClaimPending(
	ctx context.Context,
	now time.Time,
	limit int64,
	workerID string,
	lease time.Duration,
) ([]OutboxClickEvent, error) {
	if limit <= 0 {
		limit = 1
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, errors.New("workerID must not be empty")
	}

	now = now.UTC()
	events := make([]OutboxClickEvent, 0, limit)
	for int64(len(events)) < limit {
		row := r.pool.QueryRow(ctx, claimNextEventSQL,
			toTimestamptz(now),
			toNullableText(workerID),
			toTimestamptz(now.Add(lease)),
		)

		var (
			id          pgtype.UUID
			ev          OutboxClickEvent
			occurredAt  pgtype.Timestamptz
			traceparent pgtype.Text
			tracestate  pgtype.Text
			baggage     pgtype.Text
			attempts    int32
		)
		err := row.Scan(&id, &ev.Code, &occurredAt, &traceparent, &tracestate, &baggage, &attempts)
		if errors.Is(err, pgx.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}

		ev.ID, err = uuidStringFromPg(id)
		if err != nil {
			return nil, err
		}
		ev.OccurredAt = occurredAt.Time.UTC()
		ev.TraceParent = nullableTextValue(traceparent)
		ev.TraceState = nullableTextValue(tracestate)
		ev.Baggage = nullableTextValue(baggage)
		ev.Attempts = int(attempts)

		events = append(events, ev)
	}

	return events, nil
}

const markSentSQL = `
UPDATE link_click_outbox
SET status = 'sent',
    sent_at = $3,
    updated_at = $3
WHERE id = $1
  AND processing_owner = $2
  AND status = 'processing'
`

func (r *ClickOutboxRepository) MarkSent(ctx context.Context, id string, workerID string) error {
	pgID, err := parsePgUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, markSentSQL, pgID, toNullableText(workerID), toTimestamptz(time.Now().UTC()))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOutboxEventNotOwned
	}
	return nil
}

const markRetrySQL = `
UPDATE link_click_outbox
SET status = 'pending',
    attempts = attempts + 1,
    last_error = $3,
    next_attempt_at = $4,
    processing_owner = NULL,
    processing_expires_at = NULL,
    updated_at = $5
WHERE id = $1
  AND processing_owner = $2
  AND status = 'processing'
`

func (r *ClickOutboxRepository) MarkRetry(
	ctx context.Context,
	id string,
	workerID string,
	lastError string,
	nextAttemptAt time.Time,
) error {
	pgID, err := parsePgUUID(id)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, markRetrySQL,
		pgID,
		toNullableText(workerID),
		toNullableText(lastError),
		toTimestamptz(nextAttemptAt),
		toTimestamptz(time.Now().UTC()),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOutboxEventNotOwned
	}
	return nil
}

func parsePgUUID(raw string) (pgtype.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{
		Bytes: id,
		Valid: true,
	}, nil
}

func uuidStringFromPg(v pgtype.UUID) (string, error) {
	if !v.Valid {
		return "", errors.New("invalid outbox uuid")
	}
	id := uuid.UUID(v.Bytes)
	return id.String(), nil
}
