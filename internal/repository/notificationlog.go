package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type NotificationLogRepository struct {
	db *Postgres
}

func NewNotificationLogRepository(db *Postgres) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// WasSent reports whether an entry exists for (entity, type) on the given day.
func (r *NotificationLogRepository) WasSent(ctx context.Context, qe QueryExecuter, entityID uuid.UUID, typ entity.NotificationType, day time.Time) (bool, error) {
	const op = "repository.NotificationLogRepository.WasSent"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select("COUNT(1)").
		From("notification_log").
		Where(squirrel.Eq{
			"entity_id": entityID,
			"type":      typ,
			"sent_on":   entity.Midnight(day),
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: building query: %w", op, err)
	}

	var count int64
	if err := executor.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("%s: scan: %w", op, err)
	}

	return count > 0, nil
}

// Record appends an entry. Entries are append-only: never updated, never
// deleted by this pipeline. A same-day duplicate surfaces as
// entity.ErrConflictingData via the unique index.
func (r *NotificationLogRepository) Record(ctx context.Context, qe QueryExecuter, entityID uuid.UUID, typ entity.NotificationType, day time.Time) error {
	const op = "repository.NotificationLogRepository.Record"

	executor := r.db.exec(qe)

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("%s: new v7 uuid: %w", op, err)
	}

	sql, args, err := r.db.Builder.Insert("notification_log").
		Columns("id", "entity_id", "type", "sent_on", "created_at").
		Values(id, entityID, typ, entity.Midnight(day), time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: building query: %w", op, err)
	}

	if _, err := executor.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, entity.ErrConflictingData)
		}
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}
