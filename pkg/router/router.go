package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/diging/vogon-web-sub000/internal/logging"
)

const (
	HEALTH = "/healthz"
	READY  = "/readyz"
	HTTP   = "/mcp/stream"
	SSE    = "/mcp/sse"

	RequestIDHeader = "X-Request-ID"
)

// RouterConfig configures the HTTP router that wraps MCP handlers.
type RouterConfig struct {
	// BasePath to mount the router under, e.g. "/api" (optional).
	BasePath string
	// StreamOptions passed to the MCP streamable HTTP handler (nil = defaults).
	StreamOptions *mcp.StreamableHTTPOptions
	// EnableSSE registers the SSE endpoint at <BasePath>/mcp/sse.
	EnableSSE bool
	// EnableStream registers the streamable HTTP endpoint at <BasePath>/mcp/stream.
	EnableStream bool
	McpName      string
	McpVersion   string
	// Ready is called by the readiness probe. A nil Ready always reports ready.
	Ready func(ctx context.Context) error
}

// NewRouter returns an http.Handler that mounts health, info, and MCP endpoints.
//
// Endpoints (relative to cfg.BasePath):
//
//	GET  /                 - basic info and available endpoints
//	GET  /healthz          - liveness probe ("ok")
//	GET  /readyz           - readiness probe, 503 while cfg.Ready fails
//	GET  /mcp/sse          - MCP over Server-Sent Events (if EnableSSE)
//	POST /mcp/stream       - MCP streamable HTTP (if EnableStream)
//
// Every request gets a request id, taken from X-Request-ID when the caller
// sends one.
func NewRouter(mcpServer *mcp.Server, logger *slog.Logger, cfg *RouterConfig) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &RouterConfig{EnableStream: true}
	}

	mux := http.NewServeMux()
	handle := func(path string, h http.Handler) {
		mux.Handle(join(cfg.BasePath, path), withRequestID(requestLogger(logger, h)))
	}

	handle(HEALTH, getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	}))
	handle(READY, getOnly(func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logging.LoggerWithContext(r.Context(), logger).Warn("not ready", slog.String("error", err.Error()))
				writeText(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		writeText(w, http.StatusOK, "ok")
	}))

	// Only respond to exact match of the root path, not as a catch-all
	rootPath := join(cfg.BasePath, "/")
	infoHandler := getOnly(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(newInfo(cfg))
	})
	handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != rootPath {
			http.NotFound(w, r)
			return
		}
		infoHandler.ServeHTTP(w, r)
	}))

	if cfg.EnableSSE {
		handle(SSE, mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return mcpServer }))
	}
	if cfg.EnableStream {
		handle(HTTP, mcp.NewStreamableHTTPHandler(
			func(*http.Request) *mcp.Server { return mcpServer },
			cfg.StreamOptions,
		))
	}

	return mux
}

type endpoints struct {
	Health string `json:"health"`
	Ready  string `json:"ready"`
	SSE    string `json:"sse,omitempty"`
	Stream string `json:"stream,omitempty"`
}

type info struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Endpoints endpoints `json:"endpoints"`
}

func newInfo(cfg *RouterConfig) info {
	out := info{
		Name:      cfg.McpName,
		Version:   cfg.McpVersion,
		Timestamp: time.Now().UTC(),
		Endpoints: endpoints{
			Health: join(cfg.BasePath, HEALTH),
			Ready:  join(cfg.BasePath, READY),
		},
	}
	if cfg.EnableSSE {
		out.Endpoints.SSE = join(cfg.BasePath, SSE)
	}
	if cfg.EnableStream {
		out.Endpoints.Stream = join(cfg.BasePath, HTTP)
	}
	return out
}

// join concatenates base and path with exactly one slash between them.
func join(base, path string) string {
	b := strings.TrimRight(base, "/")
	p := strings.TrimLeft(path, "/")
	if b == "" {
		return "/" + p
	}
	return b + "/" + p
}

func getOnly(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// withRequestID stores a request id in the request context and echoes it in
// the response header.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// requestLogger is a lightweight HTTP middleware that logs request/response details.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)
		logging.LoggerWithContext(r.Context(), logger).Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", lw.status),
			slog.Int64("bytes", lw.bytes),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.bytes += int64(n)
	return n, err
}

// Flush lets the SSE handler stream through the logging wrapper.
func (lw *loggingResponseWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
