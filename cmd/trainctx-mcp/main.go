package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/trainctx/internal/app"
	"github.com/claude/trainctx/internal/config"
	"github.com/claude/trainctx/internal/logging"
	"github.com/claude/trainctx/internal/mcp"
	"github.com/claude/trainctx/internal/metrics"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remote := flag.String("remote", "", "base URL of a trainctx server; when set, no database is opened")
	apiKey := flag.String("api-key", os.Getenv("TRAINCTX_AUTH_API_KEY"), "API key for -remote")
	user := flag.String("user", "", "default user id for tool calls")
	flag.Parse()

	// stdout carries the MCP protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote, *apiKey)
		log.Info("mcp remote mode", "url", *remote)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		w, closeLog := logging.Writer(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, ToStdout: true, MaxSizeMB: cfg.Log.MaxSizeMB}, os.Stderr)
		defer closeLog()
		log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.Log.Level)}))
		m := metrics.NewManager("trainctx", "mcp", prometheus.NewRegistry())
		a, err := app.Open(context.Background(), cfg, m, log)
		if err != nil {
			log.Error("startup failed", "error", err)
			os.Exit(1)
		}
		defer a.Close()
		ds = mcp.NewLocal(a.Contexts, a.Gates, a.DB)
	}

	s := mcp.New(ds, Version, log)
	err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, *user)
	}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp server: %v\n", err)
		os.Exit(1)
	}
}
