package translate

import "strings"

const maxSuggestions = 5

// Suggest returns related queries keyed on the dominant keyword of the
// input. The lists are static; ordering is preserved.
func (t *Translator) Suggest(query string) []string {
	lowered := strings.ToLower(query)

	var suggestions []string
	switch {
	case strings.Contains(lowered, "memory"):
		suggestions = []string{
			"Show me memory usage trend over the last day",
			"Compare memory usage across all pods",
			"Detect memory leaks in the application",
		}
	case strings.Contains(lowered, "cpu"):
		suggestions = []string{
			"Show me CPU throttling events",
			"Compare CPU usage across all pods",
			"Show me CPU usage spikes",
		}
	case strings.Contains(lowered, "latency") || strings.Contains(lowered, "request"):
		suggestions = []string{
			"Show me error rate for the service",
			"Compare latency across services",
			"Show me slow requests",
		}
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}
