package settings

import (
	"testing"
	"time"

	"github.com/bsv-blockchain/marabu/chaincfg"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	tSettings := NewSettings()

	require.NotNil(t, tSettings.ChainCfgParams)
	require.NotNil(t, tSettings.ObjectStore.StoreURL)
	require.NotNil(t, tSettings.BlockChain.StoreURL)
	require.NotNil(t, tSettings.Tracing.CollectorURL)

	assert.Equal(t, chaincfg.MainNetParams.Name, tSettings.ChainCfgParams.Name)
	assert.Equal(t, 5*time.Second, tSettings.BlockValidation.ObjectFetchTimeout)
	assert.Positive(t, tSettings.BlockValidation.MaxConcurrentTxFetches)
}

func TestGetURLFallsBackToDefault(t *testing.T) {
	u := getURL("settings_test_missing_url", "sqlitememory:///blockchain")
	assert.Equal(t, "sqlitememory", u.Scheme)
	assert.Equal(t, "/blockchain", u.Path)
}

func TestGetHelpersDefaults(t *testing.T) {
	assert.Equal(t, "x", getString("settings_test_missing_string", "x"))
	assert.Equal(t, 7, getInt("settings_test_missing_int", 7))
	assert.Equal(t, 3*time.Second, getDuration("settings_test_missing_duration", 3*time.Second))
	assert.InDelta(t, 0.5, getFloat64("settings_test_missing_float", 0.5), 0.0001)
	assert.True(t, getBool("settings_test_missing_bool", true))
}

func TestNewSettingsReadsStoreURLs(t *testing.T) {
	gocore.Config().Set("objectStore", "file:///tmp/marabu-objects")
	gocore.Config().Set("blockchain_store", "postgres://marabu@localhost:5432/chain")

	t.Cleanup(func() {
		gocore.Config().Set("objectStore", "memory://")
		gocore.Config().Set("blockchain_store", "sqlitememory:///blockchain")
	})

	tSettings := NewSettings()

	assert.Equal(t, "file", tSettings.ObjectStore.StoreURL.Scheme)
	assert.Equal(t, "/tmp/marabu-objects", tSettings.ObjectStore.StoreURL.Path)
	assert.Equal(t, "postgres", tSettings.BlockChain.StoreURL.Scheme)
	assert.Equal(t, "localhost:5432", tSettings.BlockChain.StoreURL.Host)
}
