package mgmt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/olrunner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser = "admin"
	testPass = "adminpwd"
)

func newTestClient(t *testing.T, endpoint string, maxRetries int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Endpoint:   endpoint,
		Username:   testUser,
		Password:   testPass,
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{
			name:  "missing endpoint",
			cfg:   Config{Username: testUser, Password: testPass},
			field: "endpoint",
		},
		{
			name:  "relative endpoint",
			cfg:   Config{Endpoint: "localhost", Username: testUser, Password: testPass},
			field: "endpoint",
		},
		{
			name:  "empty username",
			cfg:   Config{Endpoint: "https://localhost:9443", Password: testPass},
			field: "username",
		},
		{
			name:  "empty password",
			cfg:   Config{Endpoint: "https://localhost:9443", Username: testUser},
			field: "password",
		},
		{
			name:  "negative retries",
			cfg:   Config{Endpoint: "https://localhost:9443", Username: testUser, Password: testPass, MaxRetries: -1},
			field: "max retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			assert.Nil(t, client)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewClientStripsPath(t *testing.T) {
	client := newTestClient(t, "https://localhost:9443/IBMJMXConnectorREST?x=1", 0)
	assert.Equal(t, "https://localhost:9443", client.BaseURL().String())
	assert.Equal(t, DefaultTimeout, func() time.Duration {
		c, err := NewClient(Config{Endpoint: "https://localhost:9443", Username: testUser, Password: testPass})
		require.NoError(t, err)
		return c.httpClient.Timeout
	}())
}

func TestDiscoverPreservesOrderAndEncodesQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testUser, user)
		assert.Equal(t, testPass, pass)
		assert.Equal(t, DefaultResourcesPath, r.URL.Path)

		gotQuery = r.URL.Query().Get("objectName")
		assert.Empty(t, r.URL.Query().Get("className"))

		writeJSON(t, w, []map[string]string{
			{"objectName": "WebSphere:name=c", "className": "C", "URL": "/IBMJMXConnectorREST/mbeans/c"},
			{"objectName": "WebSphere:name=a", "className": "A", "URL": "/IBMJMXConnectorREST/mbeans/a"},
			{"objectName": "WebSphere:name=b", "className": "B", "URL": "/IBMJMXConnectorREST/mbeans/b"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	query := "WebSphere:service=com.ibm.websphere.application.ApplicationMBean,name=*"

	refs, err := client.Discover(context.Background(), query, "")
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, query, gotQuery)
	assert.Equal(t, "WebSphere:name=c", refs[0].ResourceID)
	assert.Equal(t, "WebSphere:name=a", refs[1].ResourceID)
	assert.Equal(t, "WebSphere:name=b", refs[2].ResourceID)
	assert.Equal(t, "C", refs[0].ResourceType)
	assert.Equal(t, "/IBMJMXConnectorREST/mbeans/c", refs[0].DetailURL)
}

func TestDiscoverNoMatches(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []interface{}{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	refs, err := client.Discover(context.Background(), "WebSphere:name=missing", "")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestDiscoverRejectsEntryWithoutLink(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{{"objectName": "WebSphere:name=a"}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	_, err := client.ListResources(context.Background())

	var shapeErr *ResourceShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, "[0].URL", shapeErr.Field)
}

// newResourceServer serves one resource with a detail document, an
// attribute list and a single "restart" operation.
func newResourceServer(t *testing.T, invoked *int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/IBMJMXConnectorREST/mbeans/app", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"attributes_URL": "/IBMJMXConnectorREST/mbeans/app/attributes",
			"operations": []map[string]interface{}{
				{
					"name":      "restart",
					"URL":       "/IBMJMXConnectorREST/mbeans/app/operations/restart",
					"signature": []interface{}{},
				},
				{
					"name":      "setTimeout",
					"URL":       "/IBMJMXConnectorREST/mbeans/app/operations/setTimeout",
					"signature": []interface{}{map[string]string{"name": "p1", "type": "long"}, "java.lang.String"},
				},
			},
		})
	})
	mux.HandleFunc("/IBMJMXConnectorREST/mbeans/app/attributes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]interface{}{
			{"name": "State", "value": map[string]interface{}{"value": "STARTED", "type": "java.lang.String"}},
			{"name": "Pid", "value": map[string]interface{}{"value": 4242, "type": "int"}},
			{"name": "Empty", "value": nil},
		})
	})
	mux.HandleFunc("/IBMJMXConnectorREST/mbeans/app/operations/restart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"params":[],"signature":[]}`, string(body))
		atomic.AddInt32(invoked, 1)
		writeJSON(t, w, map[string]interface{}{"value": nil})
	})
	return httptest.NewTLSServer(mux)
}

func TestFetchAttributesFollowsLink(t *testing.T) {
	var invoked int32
	server := newResourceServer(t, &invoked)
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	ref := types.ManagedResourceRef{ResourceID: "WebSphere:name=app", DetailURL: "/IBMJMXConnectorREST/mbeans/app"}

	attrs, err := client.FetchAttributes(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, attrs, 3)

	assert.Equal(t, types.TypedAttribute{Name: "State", Value: "STARTED", DeclaredType: "java.lang.String"}, attrs[0])
	assert.Equal(t, "4242", attrs[1].Value)
	assert.Equal(t, "int", attrs[1].DeclaredType)
	assert.Equal(t, "", attrs[2].Value)
}

func TestFetchAttributesMissingLink(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{"operations": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	ref := types.ManagedResourceRef{ResourceID: "WebSphere:name=app", DetailURL: server.URL + "/detail"}

	_, err := client.FetchAttributes(context.Background(), ref)

	var shapeErr *ResourceShapeError
	require.True(t, errors.As(err, &shapeErr), "expected ResourceShapeError, got %v", err)
	assert.Equal(t, "attributes_URL", shapeErr.Field)
}

func TestListOperations(t *testing.T) {
	var invoked int32
	server := newResourceServer(t, &invoked)
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	ref := types.ManagedResourceRef{ResourceID: "WebSphere:name=app", DetailURL: "/IBMJMXConnectorREST/mbeans/app"}

	ops, err := client.ListOperations(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, "restart", ops[0].Name)
	assert.Empty(t, ops[0].Signature)
	assert.Equal(t, []string{"long", "java.lang.String"}, ops[1].Signature)
}

func TestInvoke(t *testing.T) {
	var invoked int32
	server := newResourceServer(t, &invoked)
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	ref := types.ManagedResourceRef{ResourceID: "WebSphere:name=app", DetailURL: "/IBMJMXConnectorREST/mbeans/app"}

	t.Run("found", func(t *testing.T) {
		found, err := client.Invoke(context.Background(), ref, "restart")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int32(1), atomic.LoadInt32(&invoked))
	})

	t.Run("not found", func(t *testing.T) {
		found, err := client.Invoke(context.Background(), ref, "shutdownFramework")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Equal(t, int32(1), atomic.LoadInt32(&invoked))
	})
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls int32
	throwable := "java.lang.IllegalStateException: busy\n\tat Foo.bar(Foo.java:1)"
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"error":"server busy","throwable":%q}`, base64.StdEncoding.EncodeToString([]byte(throwable)))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)
	_, err := client.ListResources(context.Background())

	var reqErr *RequestFailedError
	require.True(t, errors.As(err, &reqErr), "expected RequestFailedError, got %v", err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, 4, reqErr.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	require.NotNil(t, reqErr.Server)
	assert.Equal(t, "server busy", reqErr.Server.Message)
	assert.Equal(t, throwable, reqErr.Server.Throwable)
	assert.Contains(t, err.Error(), "server busy")
}

func TestRetryRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, []interface{}{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	refs, err := client.ListResources(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryDelayFollowsSlowFailure(t *testing.T) {
	const (
		respondAfter = 150 * time.Millisecond
		retryDelay   = 100 * time.Millisecond
	)

	var mu sync.Mutex
	var arrivals []time.Time
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		time.Sleep(respondAfter)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint:   server.URL,
		Username:   testUser,
		Password:   testPass,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: retryDelay,
	})
	require.NoError(t, err)

	_, err = client.ListResources(context.Background())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 3)
	for i := 1; i < len(arrivals); i++ {
		gap := arrivals[i].Sub(arrivals[i-1])
		assert.GreaterOrEqual(t, gap, respondAfter+retryDelay, "gap before attempt %d", i+1)
	}
}

func TestDoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	_, err := client.ListResources(context.Background())

	var reqErr *RequestFailedError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, reqErr.Attempts)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.Nil(t, reqErr.Server)
}

func TestConnectionRefusedIsRetried(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := newTestClient(t, endpoint, 2)
	_, err := client.ListResources(context.Background())

	var reqErr *RequestFailedError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 3, reqErr.Attempts)
	assert.NotNil(t, reqErr.Unwrap())
}

func TestCancelledContextStopsRetries(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Endpoint:   server.URL,
		Username:   testUser,
		Password:   testPass,
		MaxRetries: 10,
		RetryDelay: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = client.ListResources(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIsReachable(t *testing.T) {
	var calls int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(t, w, []interface{}{})
	}))

	client := newTestClient(t, server.URL, 3)
	assert.True(t, client.IsReachable(context.Background()))

	server.Close()
	assert.False(t, client.IsReachable(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"service unavailable", &statusError{StatusCode: 503}, true},
		{"internal error", &statusError{StatusCode: 500}, true},
		{"request timeout", &statusError{StatusCode: 408}, true},
		{"too many requests", &statusError{StatusCode: 429}, true},
		{"not found", &statusError{StatusCode: 404}, false},
		{"forbidden", &statusError{StatusCode: 403}, false},
		{"cancelled", fmt.Errorf("get: %w", context.Canceled), false},
		{"permanent", &permanentError{err: errors.New("bad request")}, false},
		{"transport", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
