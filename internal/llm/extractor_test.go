package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mdifflin/paperflow/internal/common"
)

// fakeClient returns a canned extraction and records the prompt it was given.
type fakeClient struct {
	response ExtractionResponse
	prompt   string
	calls    int
}

func (f *fakeClient) Extract(_ context.Context, prompt string) (ExtractionResponse, error) {
	f.calls++
	f.prompt = prompt
	return f.response, nil
}

func TestExtractOrder(t *testing.T) {
	client := &fakeClient{
		response: ExtractionResponse{
			RequestDate: "2025-04-01",
			Items: []ExtractedItem{
				{Name: " A4 paper ", Quantity: 200, Type: "paper"},
				{Name: "Envelopes", Quantity: 5, Type: "stationery"},
			},
		},
	}
	extractor := NewExtractorWithClient(client, nil)

	items, date, err := extractor.ExtractOrder(context.Background(),
		"we need paper and envelopes")
	if err != nil {
		t.Fatalf("ExtractOrder() error = %v", err)
	}

	if client.calls != 1 {
		t.Errorf("client called %d times, want 1", client.calls)
	}
	if !strings.Contains(client.prompt, "we need paper and envelopes") {
		t.Error("prompt does not contain the raw request")
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Name != "A4 paper" {
		t.Errorf("item name = %q, want trimmed %q", items[0].Name, "A4 paper")
	}
	if items[0].Type != "paper" {
		t.Errorf("item type = %q, want paper", items[0].Type)
	}
	// Unknown types collapse to product.
	if items[1].Type != "product" {
		t.Errorf("item type = %q, want product", items[1].Type)
	}

	want := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !date.Equal(want) {
		t.Errorf("date = %v, want %v", date, want)
	}
}

func TestExtractOrder_BadDate(t *testing.T) {
	client := &fakeClient{
		response: ExtractionResponse{
			RequestDate: "April 1st",
			Items:       []ExtractedItem{{Name: "Cardstock", Quantity: 10, Type: "paper"}},
		},
	}
	extractor := NewExtractorWithClient(client, nil)

	items, date, err := extractor.ExtractOrder(context.Background(), "cardstock please")
	if err != nil {
		t.Fatalf("ExtractOrder() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if !date.IsZero() {
		t.Errorf("date = %v, want zero for unparseable date", date)
	}
}

func TestNewExtractor_MissingAPIKey(t *testing.T) {
	_, err := NewExtractor(Config{}, nil)
	if !errors.Is(err, common.ErrMissingConfig) {
		t.Fatalf("NewExtractor() error = %v, want ErrMissingConfig", err)
	}
}

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := buildExtractionPrompt("- 5 boxes of Envelopes")
	if !strings.Contains(prompt, "- 5 boxes of Envelopes") {
		t.Error("prompt missing request text")
	}
	if !strings.Contains(prompt, `"quantity"`) {
		t.Error("prompt missing the JSON response format")
	}
}
