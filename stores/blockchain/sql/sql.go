// Package sql keeps chain metadata in a sqlite or postgres database.
package sql

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util"
	"github.com/bsv-blockchain/marabu/util/usql"
)

const metaCacheTTL = 10 * time.Minute

type SQL struct {
	url       *url.URL
	db        *usql.DB
	engine    util.SQLEngine
	logger    ulogger.Logger
	metaCache *util.ExpiringConcurrentCache[model.ObjectID, *meta.BlockMeta]
}

func New(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (*SQL, error) {
	logger = logger.New("bcsql")

	db, engine, err := util.InitSQLDB(logger, storeURL, dataFolder)
	if err != nil {
		return nil, errors.NewStorageError("failed to init sql db", err)
	}

	return NewFromDB(logger, storeURL, db, engine)
}

// NewFromDB creates the schema on an already open database.
func NewFromDB(logger ulogger.Logger, storeURL *url.URL, db *usql.DB, engine util.SQLEngine) (*SQL, error) {
	var err error

	switch engine {
	case util.Postgres:
		err = createPostgresSchema(db)
	case util.Sqlite, util.SqliteMemory:
		err = createSqliteSchema(db)
	default:
		err = errors.NewConfigurationError("unknown database engine: %s", engine)
	}

	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQL{
		url:       storeURL,
		db:        db,
		engine:    engine,
		logger:    logger,
		metaCache: util.NewExpiringConcurrentCache[model.ObjectID, *meta.BlockMeta](metaCacheTTL),
	}, nil
}

func (s *SQL) GetDB() *usql.DB {
	return s.db
}

func (s *SQL) GetDBEngine() util.SQLEngine {
	return s.engine
}

func (s *SQL) Health(ctx context.Context, _ bool) (int, string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s Store: ping failed", s.engine), errors.NewStorageUnavailableError("ping failed", err)
	}

	return http.StatusOK, fmt.Sprintf("%s Store", s.engine), nil
}

func (s *SQL) Close(_ context.Context) error {
	return s.db.Close()
}

func createPostgresSchema(db *usql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
      CREATE TABLE IF NOT EXISTS state (
	    key            VARCHAR(32) PRIMARY KEY
	    ,data          BYTEA NOT NULL
        ,inserted_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        ,updated_at    TIMESTAMPTZ NULL
	  );
	`); err != nil {
		return errors.NewStorageError("could not create state table", err)
	}

	if _, err := db.ExecContext(ctx, `
      CREATE TABLE IF NOT EXISTS blocks (
	    id              BIGSERIAL PRIMARY KEY
	    ,hash           VARCHAR(64) NOT NULL
	    ,parent_id      BIGINT NULL REFERENCES blocks(id)
	    ,height         BIGINT NOT NULL
	    ,created        BIGINT NOT NULL
	    ,outpoints      TEXT NOT NULL
	    ,inserted_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		return errors.NewStorageError("could not create blocks table", err)
	}

	return createIndexes(db)
}

func createSqliteSchema(db *usql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `
      CREATE TABLE IF NOT EXISTS state (
	    key            VARCHAR(32) PRIMARY KEY
	    ,data          BLOB NOT NULL
        ,inserted_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
        ,updated_at    TEXT NULL
	  );
	`); err != nil {
		return errors.NewStorageError("could not create state table", err)
	}

	if _, err := db.ExecContext(ctx, `
      CREATE TABLE IF NOT EXISTS blocks (
	    id              INTEGER PRIMARY KEY AUTOINCREMENT
	    ,hash           VARCHAR(64) NOT NULL
	    ,parent_id      INTEGER NULL REFERENCES blocks(id)
	    ,height         BIGINT NOT NULL
	    ,created        BIGINT NOT NULL
	    ,outpoints      TEXT NOT NULL
	    ,inserted_at    TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	  );
	`); err != nil {
		return errors.NewStorageError("could not create blocks table", err)
	}

	return createIndexes(db)
}

func createIndexes(db *usql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS ux_blocks_hash ON blocks (hash);`); err != nil {
		return errors.NewStorageError("could not create ux_blocks_hash index", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_blocks_parent_id ON blocks (parent_id);`); err != nil {
		return errors.NewStorageError("could not create idx_blocks_parent_id index", err)
	}

	return nil
}
