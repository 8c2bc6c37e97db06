package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// stubExtractor returns canned items so the fallback path is deterministic.
type stubExtractor struct {
	items []model.LineItem
	date  time.Time
	err   error
	calls int
}

func (s *stubExtractor) ExtractOrder(_ context.Context, _ string) ([]model.LineItem, time.Time, error) {
	s.calls++
	return s.items, s.date, s.err
}

func TestNormalize_StructuralParse(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		dateStr      string
		wantItems    []model.LineItem
		wantDate     string
		wantZeroDate bool
		wantErr      error
	}{
		{
			name: "bulleted items with date trailer",
			raw: "- 200 sheets of A4 paper\n" +
				"- 5 boxes of Envelopes\n" +
				"(Date of request: 2025-04-01)",
			wantItems: []model.LineItem{
				{Name: "A4 paper", Quantity: 200, Type: "paper"},
				{Name: "Envelopes", Quantity: 5, Type: "product"},
			},
			wantDate: "2025-04-01",
		},
		{
			name:    "explicit date wins over trailer",
			raw:     "- 10 reams of Cardstock\n(Date of request: 2025-04-01)",
			dateStr: "2025-06-15",
			wantItems: []model.LineItem{
				{Name: "Cardstock", Quantity: 10, Type: "paper"},
			},
			wantDate: "2025-06-15",
		},
		{
			name: "indented bullets and mixed units",
			raw:  "  - 3 rolls of Paper rolls\n  - 40 packs of Index cards",
			wantItems: []model.LineItem{
				{Name: "Paper rolls", Quantity: 3, Type: "paper"},
				{Name: "Index cards", Quantity: 40, Type: "product"},
			},
		},
		{
			name: "zero quantity line is skipped",
			raw:  "- 0 boxes of Envelopes\n- 2 boxes of Envelopes",
			wantItems: []model.LineItem{
				{Name: "Envelopes", Quantity: 2, Type: "product"},
			},
		},
		{
			name:    "empty request",
			raw:     "   ",
			wantErr: common.ErrUnparseableOrder,
		},
		{
			name:    "prose with no bullets and no extractor",
			raw:     "please send the usual office restock",
			wantErr: common.ErrUnparseableOrder,
		},
		{
			name:    "malformed date does not fail a parseable order",
			raw:     "- 5 boxes of Envelopes\n(Date of request: 04/01/2025)",
			dateStr: "04/01/2025",
			wantItems: []model.LineItem{
				{Name: "Envelopes", Quantity: 5, Type: "product"},
			},
			wantZeroDate: true,
		},
	}

	normalizer := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := normalizer.Normalize(context.Background(), tt.raw, tt.dateStr)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}

			if len(order.Items) != len(tt.wantItems) {
				t.Fatalf("got %d items, want %d: %+v", len(order.Items), len(tt.wantItems), order.Items)
			}
			for i, want := range tt.wantItems {
				if order.Items[i] != want {
					t.Errorf("item %d = %+v, want %+v", i, order.Items[i], want)
				}
			}

			if tt.wantDate != "" {
				if got := order.RequestedBy.Format("2006-01-02"); got != tt.wantDate {
					t.Errorf("RequestedBy = %s, want %s", got, tt.wantDate)
				}
			}
			if tt.wantZeroDate && !order.RequestedBy.IsZero() {
				t.Errorf("RequestedBy = %v, want zero for unparseable date", order.RequestedBy)
			}
			if order.RequestID == "" {
				t.Error("RequestID is empty")
			}
		})
	}
}

func TestNormalize_ExtractorFallback(t *testing.T) {
	extractor := &stubExtractor{
		items: []model.LineItem{
			{Name: "A4 paper", Quantity: 20, Type: "paper"},
		},
		date: time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC),
	}
	normalizer := New(extractor)

	order, err := normalizer.Normalize(context.Background(),
		"hi, we urgently need twenty reams of A4", "")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", extractor.calls)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "A4 paper" {
		t.Errorf("items = %+v, want the extracted A4 paper line", order.Items)
	}
	if !order.RequestedBy.Equal(extractor.date) {
		t.Errorf("RequestedBy = %v, want extractor date %v", order.RequestedBy, extractor.date)
	}
}

func TestNormalize_ExtractorNotCalledForStructuredInput(t *testing.T) {
	extractor := &stubExtractor{}
	normalizer := New(extractor)

	_, err := normalizer.Normalize(context.Background(),
		"- 5 boxes of Envelopes\n(Date of request: 2025-04-01)", "")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor called %d times, want 0", extractor.calls)
	}
}

func TestNormalize_ExtractorFailure(t *testing.T) {
	normalizer := New(&stubExtractor{err: errors.New("provider timeout")})

	_, err := normalizer.Normalize(context.Background(), "no structure here", "")
	if !errors.Is(err, common.ErrUnparseableOrder) {
		t.Fatalf("Normalize() error = %v, want ErrUnparseableOrder", err)
	}
}

func TestNormalize_RequestIDStability(t *testing.T) {
	normalizer := New(nil)
	raw := "- 5 boxes of Envelopes\n(Date of request: 2025-04-01)"

	first, err := normalizer.Normalize(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	second, err := normalizer.Normalize(context.Background(), raw, "")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if first.RequestID != second.RequestID {
		t.Error("identical requests produced different request IDs")
	}

	other, err := normalizer.Normalize(context.Background(), raw, "2025-04-02")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if other.RequestID == first.RequestID {
		t.Error("different dates produced the same request ID")
	}
}

func TestClassifyItemType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"A4 paper", "paper"},
		{"Heavy Cardstock", "paper"},
		{"Envelopes", "product"},
		{"Table napkins", "product"},
	}
	for _, tt := range tests {
		if got := classifyItemType(tt.name); got != tt.want {
			t.Errorf("classifyItemType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
