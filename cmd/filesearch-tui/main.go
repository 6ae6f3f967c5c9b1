package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/rzg777/filesearch"
	"github.com/rzg777/filesearch/config"
	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/internal/backend"
	"github.com/rzg777/filesearch/internal/tui"
	"github.com/rzg777/filesearch/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/filesearch/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	factory, err := backend.Factory(cfg, logging.NoOpLogger{})
	if err != nil {
		log.Fatalf("backend init failed: %v", err)
	}
	key := os.Getenv(cfg.Remote.APIKeyEnv)
	if key == "" && cfg.Remote.Backend == "mock" {
		key = "mock"
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "Credential not set: export %s\n", cfg.Remote.APIKeyEnv)
		os.Exit(1)
	}

	studio := filesearch.New(func(o *filesearch.Options) {
		o.RemoteFactory = factory
		o.DefaultModel = cfg.Chat.Model
		o.DefaultChunking = core.ChunkingConfig{
			MaxTokensPerChunk: cfg.Chunking.MaxTokensPerChunk,
			OverlapTokens:     cfg.Chunking.OverlapTokens,
		}
	})

	ctx := context.Background()
	sid, err := studio.OpenSession(ctx, []byte(key))
	if err != nil {
		log.Fatalf("session open failed: %v", err)
	}
	defer studio.CloseSession(sid)

	m := tui.New(studio, sid)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
