package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mdifflin/paperflow/internal/model"
)

// MockExtractor is a deterministic test implementation of
// normalize.Extractor. It recognizes "<qty> <name>" fragments separated by
// commas, the shape the structural parser rejects.
type MockExtractor struct {
	Err   error
	Date  time.Time
	calls int
	mu    sync.Mutex
}

var mockFragmentRe = regexp.MustCompile(`(\d+)\s+(?:reams|boxes|sheets|packs|packets|rolls|cards|units)?\s*(?:of\s+)?([A-Za-z][A-Za-z0-9 ]*)`)

// ExtractOrder parses comma-separated order fragments deterministically.
func (m *MockExtractor) ExtractOrder(_ context.Context, rawRequest string) ([]model.LineItem, time.Time, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, time.Time{}, m.Err
	}

	var items []model.LineItem
	for _, fragment := range strings.Split(rawRequest, ",") {
		match := mockFragmentRe.FindStringSubmatch(fragment)
		if match == nil {
			continue
		}
		quantity, err := strconv.Atoi(match[1])
		if err != nil || quantity <= 0 {
			continue
		}
		name := strings.TrimSpace(match[2])
		itemType := "product"
		if strings.Contains(strings.ToLower(name), "paper") {
			itemType = "paper"
		}
		items = append(items, model.LineItem{
			Name:     name,
			Quantity: quantity,
			Type:     itemType,
		})
	}

	return items, m.Date, nil
}

// Calls returns how many times the extractor was invoked.
func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
