// Command tokenserver exposes token issuing and verification over HTTP.
//
//	POST /v1/tokens         issue a token for a subject
//	POST /v1/tokens/verify  verify a token and return its claims
//	GET  /v1/me             echo the claims of the bearer token
//	GET  /metrics           prometheus metrics
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", os.Getenv("TOKENSERVER_CONFIG"), "Config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := NewServer(cfg.Token, logger, reg)
	if err != nil {
		log.Fatalf("Failed to configure server: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(reg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting tokenserver",
			slog.String("addr", cfg.Server.Addr),
			slog.String("algorithm", cfg.Token.Algorithm),
			slog.String("issuer", cfg.Token.Issuer),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logger.Info("tokenserver stopped")
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
