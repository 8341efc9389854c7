package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bandonotifier/internal/entity"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

type RecipientRepository struct {
	db *Postgres
}

func NewRecipientRepository(db *Postgres) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// ListActive returns the addresses that receive every alert and digest.
func (r *RecipientRepository) ListActive(ctx context.Context, qe QueryExecuter) ([]entity.AdditionalRecipient, error) {
	const op = "repository.RecipientRepository.ListActive"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Select("email, active, created_at").
		From("additional_recipients").
		Where(squirrel.Eq{"active": true}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	var results []entity.AdditionalRecipient
	for rows.Next() {
		var rec entity.AdditionalRecipient
		if err := rows.Scan(&rec.Email, &rec.Active, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return results, nil
}

func (r *RecipientRepository) Add(ctx context.Context, qe QueryExecuter, email string) error {
	const op = "repository.RecipientRepository.Add"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Insert("additional_recipients").
		Columns("email", "active", "created_at").
		Values(email, true, time.Now().UTC()).
		Suffix("ON CONFLICT (email) DO UPDATE SET active = TRUE").
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

// Deactivate soft-deletes the address; the row stays for auditing.
func (r *RecipientRepository) Deactivate(ctx context.Context, qe QueryExecuter, email string) error {
	const op = "repository.RecipientRepository.Deactivate"

	executor := r.db.exec(qe)

	sql, args, err := r.db.Builder.Update("additional_recipients").
		Set("active", false).
		Where(squirrel.Eq{"email": email}).
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
