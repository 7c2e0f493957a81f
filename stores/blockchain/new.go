package blockchain

import (
	"net/url"

	"github.com/bsv-blockchain/marabu/errors"
	"github.com/bsv-blockchain/marabu/stores/blockchain/memory"
	"github.com/bsv-blockchain/marabu/stores/blockchain/sql"
	"github.com/bsv-blockchain/marabu/ulogger"
)

func NewStore(logger ulogger.Logger, storeURL *url.URL, dataFolder string) (Store, error) {
	switch storeURL.Scheme {
	case "memory":
		return memory.New(), nil
	case "postgres", "sqlitememory", "sqlite":
		return sql.New(logger, storeURL, dataFolder)
	}

	return nil, errors.NewConfigurationError("unknown blockchain store scheme: %s", storeURL.Scheme)
}
