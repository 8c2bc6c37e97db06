// Package llm provides the reasoning-component boundary for order extraction.
package llm

import (
	"context"
)

// Client defines the interface for LLM providers.
type Client interface {
	Extract(ctx context.Context, prompt string) (ExtractionResponse, error)
}

// ExtractedItem is a single line item recovered from free-form text.
type ExtractedItem struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// ExtractionResponse contains the LLM's order extraction result.
type ExtractionResponse struct {
	RequestDate string          `json:"request_date"`
	Items       []ExtractedItem `json:"items"`
}
