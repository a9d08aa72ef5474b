package api

import (
	"fmt"
	"strings"
)

// defaultMaxQueryLength mirrors the backend's own query cap.
const defaultMaxQueryLength = 500

// suspiciousPatterns is a basic prompt-injection blocklist, matching what
// the assistant backend rejects anyway.
var suspiciousPatterns = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard previous",
	"forget previous",
}

// validateQuery checks a query against the length cap and the blocklist.
// Empty input passes here; the controller treats it as a silent no-op.
func validateQuery(query string, maxLen int) (string, bool) {
	if len(query) > maxLen {
		return fmt.Sprintf("Query too long (max %d characters)", maxLen), false
	}

	lower := strings.ToLower(query)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(lower, pattern) {
			return "Invalid query format", false
		}
	}

	return "", true
}
