package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mdifflin/paperflow/internal/llm"
	"github.com/mdifflin/paperflow/internal/normalize"
	"github.com/mdifflin/paperflow/internal/storage"
)

// openLedger opens the SQLite ledger at the configured path.
func openLedger() (*storage.SQLiteLedger, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "paperflow", "paperflow.db")
	}

	ledger, err := storage.NewSQLiteLedger(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return ledger, nil
}

// newNormalizer builds the order normalizer, wiring the LLM fallback
// extractor when an API key is configured. Without a key the structural
// parser is the only path.
func newNormalizer() *normalize.Normalizer {
	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		slog.Debug("No LLM API key configured, extraction fallback disabled")
		return normalize.New(nil)
	}

	extractor, err := llm.NewExtractor(llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      apiKey,
		Model:       viper.GetString("llm.model"),
		BaseURL:     viper.GetString("llm.base_url"),
		MaxRetries:  viper.GetInt("llm.max_retries"),
		RetryDelay:  viper.GetDuration("llm.retry_delay"),
		Temperature: viper.GetFloat64("llm.temperature"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
	}, slog.Default())
	if err != nil {
		slog.Warn("Failed to configure LLM extractor, falling back to structural parsing only",
			"error", err)
		return normalize.New(nil)
	}

	return normalize.New(extractor)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
