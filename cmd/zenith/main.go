package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"zenith/pkg/config"
	"zenith/pkg/model"
	"zenith/pkg/model/gemini"
	zopenai "zenith/pkg/model/openai"
	"zenith/pkg/sandbox"
	"zenith/pkg/sandbox/chrome"
	"zenith/pkg/sandbox/docker"
	"zenith/pkg/server"
	"zenith/pkg/session"
	"zenith/pkg/store/sqlite"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger.
	opts := &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize store.
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Provider factory. Providers are built per turn from the stored
	// settings, so API keys can change without a restart.
	factory := model.NewFactory(model.Constructors{
		Gemini: func(ctx context.Context, apiKey string) (model.Provider, error) {
			return gemini.New(ctx, apiKey)
		},
		OpenAICompatible: func(name, baseURL, apiKey string) model.Provider {
			return zopenai.New(name, baseURL, apiKey)
		},
	})

	// Sandbox backend.
	var sandboxFactory session.RuntimeFactory
	switch cfg.Sandbox.Backend {
	case config.SandboxDocker:
		mgr, err := docker.New()
		if err != nil {
			slog.Error("Failed to initialize renderer manager", "error", err)
			os.Exit(1)
		}
		defer mgr.Close()

		go func() {
			if err := mgr.Run(ctx, store); err != nil && ctx.Err() == nil {
				slog.Error("Renderer manager stopped", "error", err)
			}
		}()

		sandboxFactory = func(sessionID string) sandbox.Runtime {
			return chrome.New(chrome.WithRemote(func(ctx context.Context) (string, error) {
				return mgr.Endpoint(ctx, sessionID)
			}))
		}

	default:
		sandboxFactory = func(sessionID string) sandbox.Runtime {
			return chrome.New()
		}
	}

	manager := session.NewManager(store, store, store, store, factory, sandboxFactory)
	defer manager.Close()

	srv := server.New(manager, store, store, store, factory)
	if err := srv.Start(cfg.Addr); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
