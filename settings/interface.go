package settings

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
)

type BlockChainSettings struct {
	// StoreURL selects the chain metadata backend: memory, sqlite, sqlitememory or postgres.
	StoreURL *url.URL
}

type BlockValidationSettings struct {
	// ObjectFetchTimeout bounds how long a missing parent or transaction is waited for.
	ObjectFetchTimeout     time.Duration
	InvalidBlockCacheTTL   time.Duration
	MaxConcurrentTxFetches int
}

type ObjectStoreSettings struct {
	// StoreURL selects the object backend: memory, file, sqlite, sqlitememory or postgres.
	StoreURL *url.URL
}

type TracingSettings struct {
	Enabled      bool
	CollectorURL *url.URL
	SampleRate   float64
}

type Settings struct {
	ClientName         string
	DataFolder         string
	LogLevel           string
	PrettyLogs         bool
	ChainCfgParams     *chaincfg.Params
	PrometheusEndpoint string
	ProfilerAddr       string
	StatsPrefix        string
	// HealthCheckPort is where /health, /health/readiness and /health/liveness are served. 0 disables them.
	HealthCheckPort int

	ObjectStore     ObjectStoreSettings
	BlockChain      BlockChainSettings
	BlockValidation BlockValidationSettings
	Tracing         TracingSettings
}
