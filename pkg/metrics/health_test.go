package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth() {
	healthChecker = newHealthChecker()
}

func TestGetHealth(t *testing.T) {
	resetHealth()
	SetVersion("1.0.0")

	UpdateComponent(ComponentServer, true, "")
	UpdateComponent(ComponentManagement, true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)

	UpdateComponent(ComponentManagement, false, "endpoint unreachable")
	health = GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: endpoint unreachable", health.Components[ComponentManagement])
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		expected   string
	}{
		{
			name:       "all critical ready",
			components: map[string]bool{ComponentServer: true, ComponentManagement: true},
			expected:   "ready",
		},
		{
			name:       "management not registered",
			components: map[string]bool{ComponentServer: true},
			expected:   "not_ready",
		},
		{
			name:       "server unhealthy",
			components: map[string]bool{ComponentServer: false, ComponentManagement: true},
			expected:   "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			for name, healthy := range tt.components {
				UpdateComponent(name, healthy, "")
			}

			readiness := GetReadiness()
			assert.Equal(t, tt.expected, readiness.Status)
			if tt.expected != "ready" {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	resetHealth()
	UpdateComponent(ComponentServer, true, "")

	w := httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	UpdateComponent(ComponentManagement, true, "")
	w = httptest.NewRecorder()
	ReadyHandler()(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestServeMux(t *testing.T) {
	resetHealth()
	mux := NewServeMux()

	for _, path := range []string{"/metrics", "/health", "/live"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
}
