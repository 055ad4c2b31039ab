package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

func parseJSON(input string, target interface{}) error {
	payload := extractJSON(input)
	if payload == "" {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// extractJSON вырезает JSON-объект из ответа модели, включая ответы в code fence.
func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}
