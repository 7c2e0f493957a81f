// Package test holds fixtures shared by package tests: settings, keys,
// signed transactions and regtest blocks.
package test

import (
	"net/url"
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/bsv-blockchain/marabu/settings"
)

// CreateBaseTestSettings returns regtest settings backed by in-memory stores.
func CreateBaseTestSettings() *settings.Settings {
	tSettings := settings.NewSettings()
	tSettings.ChainCfgParams = &chaincfg.RegressionNetParams
	tSettings.ObjectStore.StoreURL, _ = url.Parse("memory://")
	tSettings.BlockChain.StoreURL, _ = url.Parse("memory://")
	tSettings.BlockValidation.ObjectFetchTimeout = 200 * time.Millisecond
	tSettings.Tracing.Enabled = false
	tSettings.HealthCheckPort = 0

	return tSettings
}
