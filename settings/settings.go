// Package settings reads the node configuration from settings.conf,
// settings_local.conf and the environment.
package settings

import (
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
)

// NewSettings loads the settings. An unknown network is a configuration error
// the node cannot start with, so it panics.
func NewSettings() *Settings {
	params, err := chaincfg.GetChainParams(getString("network", "mainnet"))
	if err != nil {
		panic(err)
	}

	return &Settings{
		ClientName:         getString("clientName", "marabu"),
		DataFolder:         getString("dataFolder", "data"),
		LogLevel:           getString("logLevel", "INFO"),
		PrettyLogs:         getBool("PRETTY_LOGS", true),
		ChainCfgParams:     params,
		PrometheusEndpoint: getString("prometheusEndpoint", ""),
		ProfilerAddr:       getString("profilerAddr", ""),
		StatsPrefix:        getString("stats_prefix", "gocore"),
		HealthCheckPort:    getInt("health_check_port", 8000),
		ObjectStore: ObjectStoreSettings{
			StoreURL: getURL("objectStore", "memory://"),
		},
		BlockChain: BlockChainSettings{
			StoreURL: getURL("blockchain_store", "sqlitememory:///blockchain"),
		},
		BlockValidation: BlockValidationSettings{
			ObjectFetchTimeout:     getDuration("blockvalidation_objectFetchTimeout", 5*time.Second),
			InvalidBlockCacheTTL:   getDuration("blockvalidation_invalidBlockCacheTTL", 10*time.Minute),
			MaxConcurrentTxFetches: getInt("blockvalidation_maxConcurrentTxFetches", 32),
		},
		Tracing: TracingSettings{
			Enabled:      getBool("tracing_enabled", false),
			CollectorURL: getURL("tracing_collectorUrl", "http://localhost:4318"),
			SampleRate:   getFloat64("tracing_sampleRate", 0.01),
		},
	}
}
