package repository

import (
	"context"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const emailColumns = "id, recipient, subject, body, type, priority, status, scheduled_at, sent_at, retry_count, last_error, entity_id, created_at"

type EmailQueueRepository struct {
	db *Postgres
}

func NewEmailQueueRepository(db *Postgres) *EmailQueueRepository {
	return &EmailQueueRepository{db: db}
}

func scanEmailRow(scanner rowScanner) (*entity.EmailQueueRow, error) {
	var row entity.EmailQueueRow
	var sentAt pgtype.Timestamptz
	var lastError pgtype.Text
	var entityID pgtype.UUID

	err := scanner.Scan(
		&row.ID,
		&row.Recipient,
		&row.Subject,
		&row.Body,
		&row.Type,
		&row.Priority,
		&row.Status,
		&row.ScheduledAt,
		&sentAt,
		&row.RetryCount,
		&lastError,
		&entityID,
		&row.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		row.SentAt = &sentAt.Time
	}
	if lastError.Valid {
		row.LastError = lastError.String
	}
	if entityID.Valid {
		id := uuid.UUID(entityID.Bytes)
		row.EntityID = &id
	}

	return &row, nil
}

// Enqueue inserts a pending row. ID and CreatedAt are assigned here; v7 ids
// keep insertion order recoverable even at equal created_at resolution.
func (r *EmailQueueRepository) Enqueue(ctx context.Context, qe QueryExecuter, row entity.EmailQueueRow) (*entity.EmailQueueRow, error) {
	const op = "repository.EmailQueueRepository.Enqueue"

	executor := r.db.exec(qe)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%s: new v7 uuid: %w", op, err)
	}
	row.ID = id
	row.Status = entity.EmailStatusPending
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.ScheduledAt.IsZero() {
		row.ScheduledAt = row.CreatedAt
	}

	sql, args, err := r.db.Builder.Insert("email_queue").
		Columns("id", "recipient", "subject", "body", "type", "priority", "status", "scheduled_at", "entity_id", "created_at").
		Values(row.ID, row.Recipient, row.Subject, row.Body, row.Type, row.Priority, row.Status, row.ScheduledAt, row.EntityID, row.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	if _, err := executor.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("%s: exec: %w", op, err)
	}

	return &row, nil
}

// GetForDrain selects up to limit pending rows due at or before now, highest
// priority first and oldest first within a tier. The SKIP LOCKED claim only
// outlives this statement inside a transaction, so qe must be a tx spanning
// the select and the status updates; otherwise a drain running beside the
// timer loop re-reads the same pending rows.
func (r *EmailQueueRepository) GetForDrain(ctx context.Context, qe QueryExecuter, limit uint64, now time.Time) ([]entity.EmailQueueRow, error) {
	const op = "repository.EmailQueueRepository.GetForDrain"

	executor := r.db.exec(qe)

	if limit == 0 {
		return nil, fmt.Errorf("%s: limit must be > 0: %w", op, entity.ErrInvalidData)
	}

	sql, args, err := r.db.Builder.Select(emailColumns).
		From("email_queue").
		Where(squirrel.Eq{"status": entity.EmailStatusPending}).
		Where(squirrel.LtOrEq{"scheduled_at": now.UTC()}).
		OrderBy("priority DESC", "created_at ASC", "id ASC").
		Limit(limit).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var results []entity.EmailQueueRow
	for rows.Next() {
		row, err := scanEmailRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		results = append(results, *row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return results, nil
}

// MarkSent finalizes a row as delivered.
func (r *EmailQueueRepository) MarkSent(ctx context.Context, qe QueryExecuter, id uuid.UUID, sentAt time.Time) error {
	const op = "repository.EmailQueueRepository.MarkSent"

	return r.updateStatus(ctx, qe, op, id, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("status", entity.EmailStatusSent).
			Set("sent_at", sentAt.UTC()).
			Set("last_error", nil)
	})
}

// MarkFailed finalizes a row as failed with the transport error. Failed rows
// stay failed; there is no automatic transition back to pending.
func (r *EmailQueueRepository) MarkFailed(ctx context.Context, qe QueryExecuter, id uuid.UUID, sendErr string) error {
	const op = "repository.EmailQueueRepository.MarkFailed"

	return r.updateStatus(ctx, qe, op, id, func(b squirrel.UpdateBuilder) squirrel.UpdateBuilder {
		return b.Set("status", entity.EmailStatusFailed).
			Set("last_error", sendErr).
			Set("retry_count", squirrel.Expr("retry_count + 1"))
	})
}

func (r *EmailQueueRepository) updateStatus(ctx context.Context, qe QueryExecuter, op string, id uuid.UUID, mutate func(squirrel.UpdateBuilder) squirrel.UpdateBuilder) error {
	executor := r.db.exec(qe)

	update := mutate(r.db.Builder.Update("email_queue")).
		Where(squirrel.Eq{"id": id, "status": entity.EmailStatusPending})

	sql, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("%s: building query: %w", op, err)
	}

	res, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	if res.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
	}

	return nil
}
