package engine

import (
	"regexp"
	"sort"
	"strings"
)

// stopwords and unit words carry no signal for matching historical quotes.
var searchStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "by": true, "for": true, "from": true,
	"i": true, "in": true, "is": true, "it": true, "need": true, "of": true,
	"on": true, "or": true, "our": true, "please": true, "the": true,
	"to": true, "we": true, "with": true, "would": true, "like": true,
	"order": true, "request": true, "date": true,
	"sheets": true, "packets": true, "reams": true, "boxes": true,
	"packs": true, "cards": true, "rolls": true, "units": true,
}

var termCleaner = regexp.MustCompile(`^[^\w$%#@]+|[^\w%$#@]+$`)
var numericTerm = regexp.MustCompile(`^\d+$`)

// extractSearchTerms picks at most max discriminating terms from request
// text. Terms are ranked by specificity: stopwords and bare numbers are
// dropped, longer tokens win, ties keep first-occurrence order. The cap
// matters: too many terms over-constrain the historical search and return no
// comparable quotes, too few return irrelevant ones.
func extractSearchTerms(raw string, max int) []string {
	if max <= 0 {
		max = 4
	}

	// The date trailer is request metadata, not order content.
	if idx := strings.Index(raw, "(Date of request:"); idx >= 0 {
		raw = raw[:idx]
	}

	type candidate struct {
		term  string
		order int
	}

	seen := make(map[string]bool)
	var candidates []candidate

	for i, token := range strings.Fields(raw) {
		token = termCleaner.ReplaceAllString(token, "")
		token = strings.ToLower(token)
		if token == "" || len(token) < 2 {
			continue
		}
		if searchStopwords[token] || numericTerm.MatchString(token) {
			continue
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		candidates = append(candidates, candidate{term: token, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].term) != len(candidates[j].term) {
			return len(candidates[i].term) > len(candidates[j].term)
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > max {
		candidates = candidates[:max]
	}

	terms := make([]string, len(candidates))
	for i, c := range candidates {
		terms[i] = c.term
	}
	return terms
}

// signalsBulkDiscount reports whether a comparable historical quote request
// mentions a bulk discount among its stored terms.
func signalsBulkDiscount(terms []string) bool {
	for _, term := range terms {
		switch strings.ToLower(term) {
		case "bulk", "discount":
			return true
		}
	}
	return false
}
