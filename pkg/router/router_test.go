package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diging/vogon-web-sub000/internal/logging"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMCPServer() *mcp.Server {
	return mcp.NewServer(&mcp.Implementation{Name: "vogon-test", Version: "v1.2.3"}, nil)
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// TestNewRouter checks that every endpoint is registered according to the
// config and that the info endpoint advertises them.
func TestNewRouter(t *testing.T) {
	testCases := []struct {
		name         string
		config       *RouterConfig
		expectStream bool
		expectSSE    bool
	}{
		{
			name:         "stream only",
			config:       &RouterConfig{EnableStream: true, McpName: "vogon-test", McpVersion: "v1.2.3"},
			expectStream: true,
		},
		{
			name:         "sse and stream",
			config:       &RouterConfig{EnableStream: true, EnableSSE: true, McpName: "vogon-test", McpVersion: "v1.2.3"},
			expectStream: true,
			expectSSE:    true,
		},
		{
			name:   "all mcp disabled",
			config: &RouterConfig{McpName: "vogon-test", McpVersion: "v1.2.3"},
		},
		{
			name: "with base path",
			config: &RouterConfig{
				BasePath:     "/api/v1",
				EnableStream: true,
				EnableSSE:    true,
				McpName:      "vogon-test",
				McpVersion:   "v1.2.3",
			},
			expectStream: true,
			expectSSE:    true,
		},
		{
			name:         "nil config",
			config:       nil,
			expectStream: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(newMCPServer(), discardLogger(), tc.config)

			effective := tc.config
			if effective == nil {
				effective = &RouterConfig{EnableStream: true}
			}
			base := effective.BasePath

			assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, join(base, HEALTH)).Code)
			assert.Equal(t, http.StatusMethodNotAllowed, serve(handler, http.MethodPost, join(base, HEALTH)).Code)
			assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, join(base, READY)).Code)
			assert.Equal(t, http.StatusMethodNotAllowed, serve(handler, http.MethodPost, join(base, READY)).Code)
			assert.Equal(t, http.StatusMethodNotAllowed, serve(handler, http.MethodPost, join(base, "/")).Code)
			assert.Equal(t, http.StatusNotFound, serve(handler, http.MethodGet, join(base, "/unknown")).Code)

			streamPath := join(base, HTTP)
			if tc.expectStream {
				assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodPost, streamPath).Code)
			} else {
				assert.Equal(t, http.StatusNotFound, serve(handler, http.MethodPost, streamPath).Code)
			}

			ssePath := join(base, SSE)
			if tc.expectSSE {
				// The SSE stream stays open until the request context ends.
				ctx, cancel := context.WithCancel(context.Background())
				req := httptest.NewRequest(http.MethodGet, ssePath, nil).WithContext(ctx)
				done := make(chan struct{})
				go func() {
					handler.ServeHTTP(httptest.NewRecorder(), req)
					close(done)
				}()
				time.Sleep(10 * time.Millisecond)
				cancel()
				select {
				case <-done:
				case <-time.After(time.Second):
				}

				assert.Equal(t, http.StatusBadRequest, serve(handler, http.MethodPost, ssePath).Code)
			} else {
				assert.Equal(t, http.StatusNotFound, serve(handler, http.MethodGet, ssePath).Code)
			}

			rr := serve(handler, http.MethodGet, join(base, "/"))
			require.Equal(t, http.StatusOK, rr.Code)
			var got info
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))

			assert.Equal(t, effective.McpName, got.Name)
			assert.Equal(t, effective.McpVersion, got.Version)
			assert.Equal(t, join(base, HEALTH), got.Endpoints.Health)
			assert.Equal(t, join(base, READY), got.Endpoints.Ready)
			if tc.expectStream {
				assert.Equal(t, streamPath, got.Endpoints.Stream)
			} else {
				assert.Empty(t, got.Endpoints.Stream)
			}
			if tc.expectSSE {
				assert.Equal(t, ssePath, got.Endpoints.SSE)
			} else {
				assert.Empty(t, got.Endpoints.SSE)
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	var ready error
	handler := NewRouter(newMCPServer(), discardLogger(), &RouterConfig{
		Ready: func(context.Context) error { return ready },
	})

	rr := serve(handler, http.MethodGet, READY)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	ready = errors.New("database is closed")
	rr = serve(handler, http.MethodGet, READY)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not ready", rr.Body.String())

	assert.Equal(t, http.StatusOK, serve(handler, http.MethodGet, HEALTH).Code, "liveness ignores readiness")
}

func TestRequestID(t *testing.T) {
	var seen string
	h := withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rr := serve(h, http.MethodGet, "/")
		id := rr.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "trace-42")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "trace-42", rr.Header().Get(RequestIDHeader))
		assert.Equal(t, "trace-42", seen)
	})
}

func TestJoin(t *testing.T) {
	tests := []struct{ base, path, want string }{
		{"", "/healthz", "/healthz"},
		{"/api/", "healthz", "/api/healthz"},
		{"/api", "/", "/api/"},
		{"", "/", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.base+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, join(tt.base, tt.path))
		})
	}
}
