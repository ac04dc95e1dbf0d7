package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/diging/vogon-web-sub000/internal/config"
	"github.com/diging/vogon-web-sub000/internal/logging"
	"github.com/diging/vogon-web-sub000/pkg/database"
	"github.com/diging/vogon-web-sub000/pkg/relations"
	"github.com/diging/vogon-web-sub000/pkg/router"
	"github.com/diging/vogon-web-sub000/pkg/server"
)

const (
	MCP_NAME = "vogon-relations-server"
	VERSION  = "0.1.0"
)

var (
	httpAddr = flag.String("http", "", "HTTP address to listen on (e.g., :8080). If not set, uses stdio")
	sseMode  = flag.Bool("sse", false, "Also serve MCP over SSE in HTTP mode")
	basePath = flag.String("base-path", "", "Path prefix for all HTTP endpoints")
	portFile = flag.String("portfile", "", "If set with -http, write the actual bound TCP port to this file")
)

func main() {
	flag.Parse()

	logger := logging.NewLogger(MCP_NAME, logging.GetLogLevel())
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("graceful shutdown complete")
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting relation template server",
		slog.String("version", VERSION),
		slog.String("log_level", logging.GetLogLevel().String()),
	)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.String("db_path", cfg.DBPath),
		slog.String("concepts_file", cfg.ConceptsFile),
		slog.Int("concept_cache_size", cfg.ConceptCacheSize),
	)

	db, err := database.NewDBWithLogger(cfg.DBPath,
		logger.With(slog.String("component", "database")),
		database.WithConceptCacheSize(cfg.ConceptCacheSize),
	)
	if err != nil {
		logger.Error("failed to initialize database",
			slog.String("error", err.Error()),
			slog.String("path", cfg.DBPath),
		)
		return err
	}

	engine := relations.NewEngineWithLogger(db, cfg.RelationConcepts(),
		logger.With(slog.String("component", "relations")))
	srv := server.NewServerWithLogger(db, engine,
		logger.With(slog.String("component", "server")))

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    MCP_NAME,
			Version: VERSION,
		},
		nil,
	)
	srv.RegisterTools(mcpServer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan error, 1)
	var httpServer *http.Server

	if *httpAddr != "" {
		routerCfg := &router.RouterConfig{
			BasePath:     *basePath,
			EnableSSE:    *sseMode,
			EnableStream: true,
			McpName:      MCP_NAME,
			McpVersion:   VERSION,
			Ready:        db.Ping,
		}
		httpServer, err = startHTTPServer(logger, router.NewRouter(mcpServer, logger, routerCfg), done)
		if err != nil {
			_ = db.Close()
			return err
		}
	} else {
		startStdioServer(ctx, logger, mcpServer, done)
	}

	select {
	case err := <-done:
		if err != nil {
			shutdown(logger, httpServer, srv)
			return fmt.Errorf("server stopped with error: %w", err)
		}
		logger.Info("server stopped cleanly")
	case sig := <-sigChan:
		logger.Info("received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	}

	shutdown(logger, httpServer, srv)
	return nil
}

func shutdown(logger *slog.Logger, httpServer *http.Server, srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		logger.Info("shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("application server shutdown error", slog.String("error", err.Error()))
	}
}

func startHTTPServer(logger *slog.Logger, handler http.Handler, done chan<- error) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("HTTP listen error: %w", err)
	}

	if *portFile != "" {
		port := ln.Addr().(*net.TCPAddr).Port
		if err := os.WriteFile(*portFile, []byte(strconv.Itoa(port)), 0644); err != nil {
			logger.Warn("failed writing portfile", slog.String("error", err.Error()), slog.String("file", *portFile))
		} else {
			logger.Info("wrote port to file", slog.Int("port", port), slog.String("file", *portFile))
		}
	}

	go func() {
		logger.Info("starting HTTP server", slog.Bool("sse_enabled", *sseMode), slog.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			done <- fmt.Errorf("HTTP server error: %w", err)
		} else {
			done <- nil
		}
	}()
	return httpServer, nil
}

func startStdioServer(ctx context.Context, logger *slog.Logger, mcpServer *mcp.Server, done chan<- error) {
	go func() {
		logger.Info("starting in stdio mode")
		done <- mcpServer.Run(ctx, &mcp.StdioTransport{})
	}()
}
