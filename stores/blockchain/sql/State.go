package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/tracing"
)

func (s *SQL) GetState(ctx context.Context, key string) ([]byte, error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:GetState")
	defer deferFn()

	q := `
		SELECT data
		FROM state
		WHERE key = $1
	`

	var data []byte

	if err := s.db.QueryRowContext(ctx, q, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("state %s not found", key)
		}

		return nil, errors.NewStorageError("failed to read state %s", key, err)
	}

	return data, nil
}

func (s *SQL) SetState(ctx context.Context, key string, data []byte) error {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:SetState")
	defer deferFn()

	q := `
		INSERT INTO state (key, data)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = $2, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, q, key, data); err != nil {
		return errors.NewStorageError("failed to store state %s", key, err)
	}

	return nil
}
