package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseExtraction decodes the model's JSON extraction payload, tolerating
// markdown code fences around the object.
func parseExtraction(content string) (ExtractionResponse, error) {
	content = cleanMarkdownWrapper(content)

	var response ExtractionResponse
	if err := json.Unmarshal([]byte(content), &response); err != nil {
		return ExtractionResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	// Drop entries the model hallucinated without a name or with a
	// non-positive quantity; the caller decides whether anything usable
	// remains.
	valid := response.Items[:0]
	for _, item := range response.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 {
			continue
		}
		valid = append(valid, item)
	}
	response.Items = valid

	return response, nil
}

// cleanMarkdownWrapper strips ```json fences the model sometimes adds despite
// instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
