package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tessary/coref/internal/backup"
	"github.com/tessary/coref/internal/config"
	"github.com/tessary/coref/internal/extractor"
	"github.com/tessary/coref/internal/llm"
	"github.com/tessary/coref/internal/notify"
	"github.com/tessary/coref/internal/server"
	"github.com/tessary/coref/internal/session"
	"github.com/tessary/coref/internal/storage"
	"github.com/tessary/coref/internal/storage/postgres"
	"github.com/tessary/coref/internal/storage/sqlite"
	"github.com/tessary/coref/web/handlers"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize session blob storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session manager owns the extractor and the per-session memory
	sessions, err := session.NewManager(store, extractor.New(), session.Config{
		CacheSize:       cfg.Limits.SessionCacheSize,
		SummaryEntities: cfg.Limits.SummaryEntities,
	})
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	// Reply generation is optional; without a provider /api/chat is disabled
	generator, err := newGenerator(cfg)
	if err != nil {
		log.Printf("Warning: LLM provider unavailable, /api/chat disabled: %v", err)
	}

	addr, hub, err := server.Start(ctx, cfg, sessions, generator)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Coref API listening at http://%s", addr)

	// Bridge turn events written by sibling processes (importers, other
	// instances sharing the data dir) into the dashboard hub.
	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, func(e notify.Event) {
		hub.Broadcast(handlers.TurnEvent{Type: e.Type, SessionID: e.SessionID, Turn: e.Turn})
	})
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: turn event watcher disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	if cfg.Backup.Enabled && cfg.Storage.Engine == "sqlite" {
		backupDir := cfg.Backup.Dir
		if backupDir == "" {
			backupDir = cfg.Storage.DataPath + "/backups"
		}
		svc, err := backup.NewService(backup.Config{
			DBPath:   cfg.Storage.DataPath + "/coref.db",
			Dir:      backupDir,
			Interval: time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			Keep:     cfg.Backup.Keep,
		})
		if err != nil {
			log.Fatalf("Failed to initialize backup service: %v", err)
		}
		go svc.Run(ctx)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured session blob store.
func openStore(cfg *config.Config) (storage.SessionStore, error) {
	switch cfg.Storage.Engine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.NewSessionStore(cfg.Storage.DataPath + "/coref.db")
	case "postgres":
		return postgres.NewSessionStore(cfg.Storage.PostgresDSN)
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

// newGenerator builds the configured TextGenerator.
func newGenerator(cfg *config.Config) (llm.TextGenerator, error) {
	pc := llm.ProviderConfig{Provider: cfg.LLM.Provider}
	switch cfg.LLM.Provider {
	case "openai":
		pc.APIKey = cfg.LLM.OpenAIAPIKey
		pc.Model = cfg.LLM.OpenAIModel
	default:
		pc.BaseURL = cfg.LLM.OllamaURL
		pc.Model = cfg.LLM.OllamaModel
	}
	return llm.NewTextGenerator(pc)
}
