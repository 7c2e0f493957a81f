package daemon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/bsv-blockchain/marabu/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test server
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestDaemon_Health(t *testing.T) {
	ctx := context.Background()

	d := New(ulogger.TestLogger{}, test.CreateBaseTestSettings())

	server := httptest.NewServer(d.HealthMux())
	defer server.Close()

	status, _ := get(t, server.URL+"/health/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	node, err := d.Start(ctx)
	require.NoError(t, err)

	tip, err := node.GetChainTip(ctx)
	require.NoError(t, err)
	assert.Equal(t, test.CreateBaseTestSettings().ChainCfgParams.GenesisID(), tip)

	for _, path := range []string{"/health", "/health/readiness", "/health/liveness"} {
		status, body := get(t, server.URL+path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Contains(t, body, "Memory Store", path)
	}

	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx))

	status, _ = get(t, server.URL+"/health/liveness")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestDaemon_StartFailsOnBadStore(t *testing.T) {
	tSettings := test.CreateBaseTestSettings()
	tSettings.BlockChain.StoreURL.Scheme = "nosuchstore"

	d := New(ulogger.TestLogger{}, tSettings)

	_, err := d.Start(context.Background())
	require.Error(t, err)

	require.NoError(t, d.Stop(context.Background()))
}
