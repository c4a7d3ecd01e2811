package utils

import "strings"

// DeduplicateStrings trims each value, drops empty ones and keeps the first occurrence of each remaining value.
func DeduplicateStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		trimmedValue := strings.TrimSpace(value)
		if trimmedValue == EmptyString {
			continue
		}
		if _, exists := seen[trimmedValue]; exists {
			continue
		}
		seen[trimmedValue] = struct{}{}
		result = append(result, trimmedValue)
	}
	return result
}
