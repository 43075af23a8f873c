// Command interviewd runs the MyPitch backend service: interview session
// resources, live-session credential minting, transcript persistence, and
// report scoring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/genai"

	"github.com/sergiialekseev/mypitch-saas-sub000/internal/dotenv"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/gateway"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/gateway/report"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/gateway/store"
	"github.com/sergiialekseev/mypitch-saas-sub000/pkg/observe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "interviewd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (optional)")
		envFile    = flag.String("env-file", ".env", "Dotenv file for local development")
	)
	flag.Parse()

	if err := dotenv.Load(*envFile); err != nil {
		return err
	}

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "interviewd"})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownMetrics(shutdownCtx)
	}()

	st, err := store.NewStore(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create genai client: %w", err)
	}

	server := gateway.NewServer(cfg, st,
		gateway.NewGenaiMinter(genaiClient, cfg.Interview.TokenTTL),
		report.NewScorer(genaiClient, cfg.Gemini.ReportModel),
		gateway.WithServerLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("interviewd listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down", "grace", cfg.Server.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
