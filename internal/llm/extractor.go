package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
	"github.com/mdifflin/paperflow/internal/service"
)

// Config holds configuration for the LLM extractor.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	Temperature float64
	MaxTokens   int
}

// Extractor implements normalize.Extractor using an LLM provider. It is the
// fallback path when structural order parsing finds nothing.
type Extractor struct {
	client    Client
	logger    *slog.Logger
	retryOpts service.RetryOptions
}

// NewExtractor creates a new LLM-based order extractor.
func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: llm.api_key", common.ErrMissingConfig)
	}

	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		client, err = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		client:    client,
		logger:    logger,
		retryOpts: retryOpts,
	}, nil
}

// NewExtractorWithClient wires a prebuilt client; used by tests.
func NewExtractorWithClient(client Client, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client:    client,
		logger:    logger,
		retryOpts: service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Second},
	}
}

// ExtractOrder recovers line items and a requested-by date from free-form
// request text.
func (e *Extractor) ExtractOrder(ctx context.Context, rawRequest string) ([]model.LineItem, time.Time, error) {
	prompt := buildExtractionPrompt(rawRequest)

	var response ExtractionResponse
	retryErr := common.WithRetry(ctx, func() error {
		var extractErr error
		response, extractErr = e.client.Extract(ctx, prompt)
		if extractErr != nil {
			return &common.RetryableError{Err: extractErr, Retryable: true}
		}
		return nil
	}, e.retryOpts)
	if retryErr != nil {
		return nil, time.Time{}, fmt.Errorf("order extraction failed: %w", retryErr)
	}

	items := make([]model.LineItem, 0, len(response.Items))
	for _, item := range response.Items {
		itemType := item.Type
		if itemType != "paper" && itemType != "product" {
			itemType = "product"
		}
		items = append(items, model.LineItem{
			Name:     strings.TrimSpace(item.Name),
			Quantity: item.Quantity,
			Type:     itemType,
		})
	}

	var requestDate time.Time
	if response.RequestDate != "" {
		parsed, err := time.Parse("2006-01-02", response.RequestDate)
		if err != nil {
			e.logger.Warn("extractor returned unparseable date",
				"date", response.RequestDate)
		} else {
			requestDate = parsed
		}
	}

	e.logger.Info("order extracted",
		"items", len(items),
		"request_date", response.RequestDate)

	return items, requestDate, nil
}

// buildExtractionPrompt renders the fixed extraction instruction around the
// customer's text.
func buildExtractionPrompt(rawRequest string) string {
	var b strings.Builder
	b.WriteString("Parse this paper supply order request and identify each item name and quantity.\n\n")
	b.WriteString("REQUEST:\n")
	b.WriteString(rawRequest)
	b.WriteString("\n\n")
	b.WriteString("Respond with a JSON object in this exact format:\n")
	b.WriteString(`{"items": [{"name": "<item>", "quantity": <number>, "type": "<paper or product>"}], "request_date": "<YYYY-MM-DD or empty>"}`)
	b.WriteString("\n\nUse type \"paper\" for paper stock (sheets, reams, cardstock) and \"product\" for other paper goods. ")
	b.WriteString("Include only items with an explicit positive quantity.")
	return b.String()
}
