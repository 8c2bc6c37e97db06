package llm

import (
	"testing"
)

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain JSON untouched",
			content: `{"items": []}`,
			want:    `{"items": []}`,
		},
		{
			name:    "json fence stripped",
			content: "```json\n{\"items\": []}\n```",
			want:    `{"items": []}`,
		},
		{
			name:    "bare fence stripped",
			content: "```\n{\"items\": []}\n```",
			want:    `{"items": []}`,
		},
		{
			name:    "surrounding whitespace trimmed",
			content: "  \n{\"items\": []}\n  ",
			want:    `{"items": []}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanMarkdownWrapper(tt.content); got != tt.want {
				t.Errorf("cleanMarkdownWrapper() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantItems int
		wantDate  string
		wantErr   bool
	}{
		{
			name: "valid payload",
			content: `{"items": [{"name": "A4 paper", "quantity": 200, "type": "paper"}],
				"request_date": "2025-04-01"}`,
			wantItems: 1,
			wantDate:  "2025-04-01",
		},
		{
			name:      "fenced payload",
			content:   "```json\n{\"items\": [{\"name\": \"Envelopes\", \"quantity\": 5, \"type\": \"product\"}], \"request_date\": \"\"}\n```",
			wantItems: 1,
		},
		{
			name: "invalid entries are filtered",
			content: `{"items": [
				{"name": "A4 paper", "quantity": 200, "type": "paper"},
				{"name": "", "quantity": 10, "type": "paper"},
				{"name": "Envelopes", "quantity": 0, "type": "product"},
				{"name": "Cardstock", "quantity": -3, "type": "paper"}
			], "request_date": ""}`,
			wantItems: 1,
		},
		{
			name:    "not JSON at all",
			content: "Sure! Here is your order summary.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, err := parseExtraction(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseExtraction() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseExtraction() error = %v", err)
			}
			if len(response.Items) != tt.wantItems {
				t.Errorf("got %d items, want %d: %+v", len(response.Items), tt.wantItems, response.Items)
			}
			if response.RequestDate != tt.wantDate {
				t.Errorf("RequestDate = %q, want %q", response.RequestDate, tt.wantDate)
			}
		})
	}
}
