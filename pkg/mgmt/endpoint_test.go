package mgmt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConnectorAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{"connector scheme", "service:jmx:rest://localhost:9443/IBMJMXConnectorREST", "https://localhost:9443/IBMJMXConnectorREST", false},
		{"trailing newline", "service:jmx:rest://myhost:9443/IBMJMXConnectorREST\n", "https://myhost:9443/IBMJMXConnectorREST", false},
		{"plain https", "https://localhost:9443", "https://localhost:9443", false},
		{"empty", "  ", "", true},
		{"unknown scheme", "ftp://localhost", "", true},
		{"no host", "service:jmx:rest:///ctx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseConnectorAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestReadEndpointFile(t *testing.T) {
	outputDir := t.TempDir()
	path := EndpointFilePath(outputDir)
	assert.Equal(t, filepath.Join(outputDir, "logs", "state", "com.ibm.ws.jmx.rest.address"), path)

	_, err := ReadEndpointFile(path)
	assert.Error(t, err)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("service:jmx:rest://localhost:9443/IBMJMXConnectorREST"), 0644))

	u, err := ReadEndpointFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:9443", baseURL(u).String())
}
