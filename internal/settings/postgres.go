package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per document key in the setting table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Load(ctx context.Context) (*Policy, error) {
	const query = `SELECT key, value::text FROM setting`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		fields[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if len(fields) == 0 {
		return Default(), nil
	}
	doc, err := decodeFields(fields)
	if err != nil {
		return nil, err
	}
	return doc.Policy(), nil
}

func (s *PostgresStore) Save(ctx context.Context, p *Policy) error {
	const upsert = `
	INSERT INTO setting (key, value, updated_at)
	VALUES ($1, $2::jsonb, now())
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at
	WHERE setting.value IS DISTINCT FROM EXCLUDED.value
	`

	fields, err := encodeFields(NewDocument(p))
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.Warn("failed to rollback transaction", "error", err)
		}
	}()

	for key, value := range fields {
		if _, err := tx.Exec(ctx, upsert, key, value); err != nil {
			return fmt.Errorf("failed to save setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
