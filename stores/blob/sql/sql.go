// Package sql keeps blobs in a single table of a sqlite or postgres database.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util"
	"github.com/bsv-blockchain/marabu/util/usql"
)

type SQL struct {
	url    *url.URL
	db     *usql.DB
	engine util.SQLEngine
	logger ulogger.Logger
}

func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*SQL, error) {
	db, engine, err := util.InitSQLDB(logger, storeURL, dataFolder)
	if err != nil {
		return nil, err
	}

	return NewFromDB(logger, storeURL, db, engine)
}

// NewFromDB creates the schema on an open database.
func NewFromDB(logger ulogger.Logger, storeURL *url.URL, db *usql.DB, engine util.SQLEngine) (*SQL, error) {
	valueType := "BLOB"
	if engine == util.Postgres {
		valueType = "BYTEA"
	}

	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS objects (
		 key VARCHAR(64) PRIMARY KEY
		,value %s NOT NULL
	);`, valueType)

	if _, err := db.ExecContext(context.Background(), q); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("failed to create objects table", err)
	}

	return &SQL{
		url:    storeURL,
		db:     db,
		engine: engine,
		logger: logger,
	}, nil
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s Store: ping failed", s.url.Scheme), errors.NewStorageUnavailableError("ping failed", err)
	}

	return http.StatusOK, fmt.Sprintf("%s Store", s.url.Scheme), nil
}

func (s *SQL) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQL) Set(ctx context.Context, key []byte, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO objects (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $2",
		string(key), value)
	if err != nil {
		return errors.NewStorageError("failed to store blob %s", key, err)
	}

	return nil
}

func (s *SQL) Get(ctx context.Context, key []byte) ([]byte, error) {
	var b []byte

	err := s.db.QueryRowContext(ctx, "SELECT value FROM objects WHERE key = $1", string(key)).Scan(&b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("blob %s not found", key)
		}

		return nil, errors.NewStorageError("failed to read blob %s", key, err)
	}

	return b, nil
}

func (s *SQL) Exists(ctx context.Context, key []byte) (bool, error) {
	var v int

	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM objects WHERE key = $1", string(key)).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, errors.NewStorageError("failed to check blob %s", key, err)
	}

	return true, nil
}

func (s *SQL) Del(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE key = $1", string(key)); err != nil {
		return errors.NewStorageError("failed to delete blob %s", key, err)
	}

	return nil
}
