package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CalendarRefRepository struct {
	db *Postgres
}

func NewCalendarRefRepository(db *Postgres) *CalendarRefRepository {
	return &CalendarRefRepository{db: db}
}

func (r *CalendarRefRepository) Get(ctx context.Context, qe QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) (*entity.CalendarEventRef, error) {
	const op = "repository.CalendarRefRepository.Get"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select("entity_id, event_type, external_id, calendar_id, updated_at").
		From("calendar_event_refs").
		Where(squirrel.Eq{"entity_id": entityID, "event_type": eventType}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	var ref entity.CalendarEventRef
	var calendarID pgtype.Text
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&ref.EntityID,
		&ref.EventType,
		&ref.ExternalID,
		&calendarID,
		&ref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrDataNotFound)
		}
		return nil, fmt.Errorf("%s: scan row: %w", op, err)
	}

	if calendarID.Valid {
		ref.CalendarID = calendarID.String
	}

	return &ref, nil
}

// Put stores the external event id for (entity, type), overwriting any
// previous mapping.
func (r *CalendarRefRepository) Put(ctx context.Context, qe QueryExecuter, ref entity.CalendarEventRef) error {
	const op = "repository.CalendarRefRepository.Put"

	executor := r.db.exec(qe)
	ref.UpdatedAt = time.Now().UTC()

	sql, args, err := r.db.Builder.Insert("calendar_event_refs").
		Columns("entity_id", "event_type", "external_id", "calendar_id", "updated_at").
		Values(ref.EntityID, ref.EventType, ref.ExternalID, ref.CalendarID, ref.UpdatedAt).
		Suffix(`ON CONFLICT (entity_id, event_type) DO UPDATE SET
external_id = EXCLUDED.external_id,
calendar_id = EXCLUDED.calendar_id,
updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: building query: %w", op, err)
	}

	if _, err := executor.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

func (r *CalendarRefRepository) Delete(ctx context.Context, qe QueryExecuter, entityID uuid.UUID, eventType entity.CalendarEventType) error {
	const op = "repository.CalendarRefRepository.Delete"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Delete("calendar_event_refs").
		Where(squirrel.Eq{"entity_id": entityID, "event_type": eventType}).
		ToSql()
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
