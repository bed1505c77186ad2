package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/olrunner/pkg/config"
	"github.com/cuemby/olrunner/pkg/health"
	"github.com/cuemby/olrunner/pkg/shutdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Server = config.ServerConfig{
		SourceDir:  filepath.Join(root, "app"),
		InstallDir: filepath.Join(root, "wlp"),
		Name:       "defaultServer",
		OutputDir:  filepath.Join(root, "wlp", "usr", "servers", "defaultServer"),
	}
	cfg.Credentials = config.Credentials{Username: "admin", Password: "secret"}
	cfg.DataDir = filepath.Join(root, "data")
	cfg.Startup.GracePeriod = 3 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestLifecycleConfigFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Probes.TCPAddress = "127.0.0.1:9080"

	comps, err := newComponents(cfg)
	require.NoError(t, err)

	lc := comps.lifecycleConfig()
	assert.Equal(t, "defaultServer", lc.ServerName)
	assert.Equal(t, filepath.Join(cfg.Server.OutputDir, "logs", "state", "com.ibm.ws.jmx.rest.address"), lc.EndpointFile)
	assert.Equal(t, 3*time.Second, lc.GracePeriod)
	assert.Equal(t, "admin", lc.Management.Username)
	assert.Empty(t, lc.Management.Endpoint, "endpoint comes from the endpoint file once ready")
	assert.Equal(t, "server script", lc.PrimaryStop.Name())
	assert.Equal(t, "build tool", lc.FallbackStop.Name())

	require.Len(t, lc.Probes, 2)
	assert.Equal(t, health.CheckTypeScript, lc.Probes[0].Type())
	assert.Equal(t, health.CheckTypeTCP, lc.Probes[1].Type())
}

func TestStandaloneStrategyWithoutEndpointFile(t *testing.T) {
	comps, err := newComponents(testConfig(t))
	require.NoError(t, err)

	_, err = comps.client()
	assert.Error(t, err)

	strategy := comps.standaloneStrategy()
	assert.Equal(t, shutdown.DefaultConfirmTimeout, strategy.ConfirmTimeout)
	assert.NotNil(t, strategy.Fallback)
}

func TestClientFromEndpointFile(t *testing.T) {
	cfg := testConfig(t)
	comps, err := newComponents(cfg)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(comps.endpointFile), 0755))
	require.NoError(t, os.WriteFile(comps.endpointFile,
		[]byte("service:jmx:rest://localhost:9443/IBMJMXConnectorREST\n"), 0644))

	client, err := comps.client()
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:9443", client.BaseURL().String())
}
