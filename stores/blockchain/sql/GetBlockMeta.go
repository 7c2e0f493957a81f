package sql

import (
	"context"
	"database/sql"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/model"
	"github.com/bsv-blockchain/marabu/stores/blockchain/meta"
	"github.com/bsv-blockchain/marabu/stores/utxo"
	"github.com/bsv-blockchain/marabu/tracing"
	jsoniter "github.com/json-iterator/go"
)

func (s *SQL) GetBlockMeta(ctx context.Context, id model.ObjectID) (*meta.BlockMeta, error) {
	return s.metaCache.GetOrSet(id, func() (*meta.BlockMeta, error) {
		return s.getBlockMeta(ctx, id)
	})
}

func (s *SQL) getBlockMeta(ctx context.Context, id model.ObjectID) (*meta.BlockMeta, error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:GetBlockMeta")
	defer deferFn()

	q := `
		SELECT
		 b.height
		,b.created
		,p.hash
		,b.outpoints
		FROM blocks b
		LEFT JOIN blocks p ON p.id = b.parent_id
		WHERE b.hash = $1
	`

	var (
		height     int64
		created    int64
		parentHash sql.NullString
		outpoints  string
	)

	if err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&height, &created, &parentHash, &outpoints); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("block %s not found", id)
		}

		return nil, errors.NewStorageError("failed to read metadata of block %s", id, err)
	}

	var keys []string
	if err := jsoniter.ConfigFastest.UnmarshalFromString(outpoints, &keys); err != nil {
		return nil, errors.NewStorageError("failed to decode utxo set of block %s", id, err)
	}

	return &meta.BlockMeta{
		BlockInfo: blockInfo(id, height, created, parentHash),
		UTXO:      utxo.NewSetFromOutpoints(keys),
	}, nil
}

func (s *SQL) GetBlockInfo(ctx context.Context, id model.ObjectID) (*meta.BlockInfo, error) {
	if cached, ok := s.metaCache.Get(id); ok {
		info := cached.BlockInfo
		return &info, nil
	}

	ctx, _, deferFn := tracing.StartTracing(ctx, "sql:GetBlockInfo")
	defer deferFn()

	q := `
		SELECT
		 b.height
		,b.created
		,p.hash
		FROM blocks b
		LEFT JOIN blocks p ON p.id = b.parent_id
		WHERE b.hash = $1
	`

	var (
		height     int64
		created    int64
		parentHash sql.NullString
	)

	if err := s.db.QueryRowContext(ctx, q, string(id)).Scan(&height, &created, &parentHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("block %s not found", id)
		}

		return nil, errors.NewStorageError("failed to read metadata of block %s", id, err)
	}

	info := blockInfo(id, height, created, parentHash)

	return &info, nil
}

func (s *SQL) BlockMetaExists(ctx context.Context, id model.ObjectID) (bool, error) {
	if _, ok := s.metaCache.Get(id); ok {
		return true, nil
	}

	var exists bool

	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blocks WHERE hash = $1)`, string(id)).Scan(&exists)
	if err != nil {
		return false, errors.NewStorageError("failed to check block %s", id, err)
	}

	return exists, nil
}

func blockInfo(id model.ObjectID, height, created int64, parentHash sql.NullString) meta.BlockInfo {
	info := meta.BlockInfo{
		ID:      id,
		Height:  uint64(height), // nolint:gosec
		Created: created,
	}

	if parentHash.Valid {
		parentID := model.ObjectID(parentHash.String)
		info.ParentID = &parentID
	}

	return info
}
