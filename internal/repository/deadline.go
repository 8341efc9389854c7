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

const deadlineColumns = "id, title, due_date, status, priority, responsible_email, note, client_id, grant_id, project_id, created_at, updated_at"

type DeadlineRepository struct {
	db *Postgres
}

func NewDeadlineRepository(db *Postgres) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeadline(scanner rowScanner) (*entity.Deadline, error) {
	var d entity.Deadline
	var note pgtype.Text
	var clientID, grantID, projectID pgtype.UUID

	err := scanner.Scan(
		&d.ID,
		&d.Title,
		&d.DueDate,
		&d.Status,
		&d.Priority,
		&d.ResponsibleEmail,
		&note,
		&clientID,
		&grantID,
		&projectID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if note.Valid {
		d.Note = note.String
	}
	if clientID.Valid {
		id := uuid.UUID(clientID.Bytes)
		d.ClientID = &id
	}
	if grantID.Valid {
		id := uuid.UUID(grantID.Bytes)
		d.GrantID = &id
	}
	if projectID.Valid {
		id := uuid.UUID(projectID.Bytes)
		d.ProjectID = &id
	}

	return &d, nil
}

// ListDueWithin returns alertable deadlines whose due date falls in
// [from, to] inclusive, ordered by due date.
func (r *DeadlineRepository) ListDueWithin(ctx context.Context, qe QueryExecuter, from, to time.Time) ([]entity.Deadline, error) {
	const op = "repository.DeadlineRepository.ListDueWithin"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select(deadlineColumns).
		From("deadlines").
		Where(squirrel.Eq{"status": []entity.DeadlineStatus{entity.DeadlineNotStarted, entity.DeadlineInProgress}}).
		Where(squirrel.GtOrEq{"due_date": entity.Midnight(from)}).
		Where(squirrel.LtOrEq{"due_date": entity.Midnight(to)}).
		OrderBy("due_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	return r.queryDeadlines(ctx, executor, op, sql, args)
}

// ListByProject returns alertable deadlines attached to the given project.
func (r *DeadlineRepository) ListByProject(ctx context.Context, qe QueryExecuter, projectID uuid.UUID) ([]entity.Deadline, error) {
	const op = "repository.DeadlineRepository.ListByProject"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select(deadlineColumns).
		From("deadlines").
		Where(squirrel.Eq{"project_id": projectID}).
		Where(squirrel.Eq{"status": []entity.DeadlineStatus{entity.DeadlineNotStarted, entity.DeadlineInProgress}}).
		OrderBy("due_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	return r.queryDeadlines(ctx, executor, op, sql, args)
}

func (r *DeadlineRepository) queryDeadlines(ctx context.Context, executor QueryExecuter, op, sql string, args []any) ([]entity.Deadline, error) {
	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var results []entity.Deadline
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		results = append(results, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return results, nil
}
