package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/tracing"
	jsoniter "github.com/json-iterator/go"
)

func (s *SQL) StoreBlockMeta(ctx context.Context, blockMeta *meta.BlockMeta) error {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:StoreBlockMeta")
	defer deferFn()

	var parentHash sql.NullString

	if blockMeta.ParentID != nil {
		exists, err := s.BlockMetaExists(ctx, *blockMeta.ParentID)
		if err != nil {
			return err
		}

		if !exists {
			return errors.NewStorageError("parent %s of block %s has no metadata", *blockMeta.ParentID, blockMeta.ID)
		}

		parentHash = sql.NullString{String: string(*blockMeta.ParentID), Valid: true}
	}

	outpoints, err := jsoniter.ConfigFastest.Marshal(blockMeta.UTXO.Outpoints())
	if err != nil {
		return errors.NewStorageError("failed to encode utxo set of block %s", blockMeta.ID, err)
	}

	q := `
		INSERT INTO blocks (hash, parent_id, height, created, outpoints)
		VALUES ($1, (SELECT id FROM blocks WHERE hash = $2), $3, $4, $5)
		ON CONFLICT (hash) DO NOTHING
	`

	if _, err = s.db.ExecContext(ctx, q,
		string(blockMeta.ID),
		parentHash,
		int64(blockMeta.Height), // nolint:gosec
		blockMeta.Created,
		string(outpoints),
	); err != nil {
		return errors.NewStorageError("failed to store metadata of block %s", blockMeta.ID, err)
	}

	s.metaCache.Set(blockMeta.ID, blockMeta)

	return nil
}
