// Package translate rewrites free-form natural-language metric questions
// into PromQL using an ordered template table with a keyword fallback.
package translate

import (
	"strings"

	"go.uber.org/zap"
)

// Translator matches queries against the template table. It is stateless
// after construction and safe for concurrent use.
type Translator struct {
	templates []Template
	logger    *zap.Logger
}

// NewTranslator compiles the template table once.
func NewTranslator(logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Translator{
		templates: loadTemplates(),
		logger:    logger,
	}
	t.logger.Info("query translator initialized", zap.Int("templates", len(t.templates)))
	return t
}

// Result is the outcome of one translation. Failures are data, not errors:
// an unmatchable query yields Success=false with an explanation.
type Result struct {
	Success    bool              `json:"success"`
	PromQL     string            `json:"promql,omitempty"`
	Template   string            `json:"template,omitempty"`
	Category   string            `json:"category,omitempty"`
	TimeRange  string            `json:"time_range,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Translate rewrites query into PromQL. Templates are scanned in order and
// the first regex match wins; if none match, a keyword fallback produces a
// parameterless query.
func (t *Translator) Translate(query string) Result {
	lowered := strings.ToLower(query)

	for _, tmpl := range t.templates {
		match := tmpl.Pattern.FindStringSubmatch(lowered)
		if match == nil {
			continue
		}

		if len(match) < 2 || match[1] == "" {
			// Template promised a capture group the pattern didn't deliver.
			t.logger.Warn("template matched without capture group",
				zap.String("template", tmpl.Description))
			return Result{
				Success: false,
				Error:   "could not extract " + tmpl.Param + " from query",
			}
		}

		value := match[1]
		return Result{
			Success:    true,
			PromQL:     strings.ReplaceAll(tmpl.PromQL, "{"+tmpl.Param+"}", value),
			Template:   tmpl.Description,
			Category:   tmpl.Category,
			TimeRange:  extractTimeRange(lowered),
			Parameters: map[string]string{tmpl.Param: value},
		}
	}

	if promql := constructFromKeywords(lowered); promql != "" {
		return Result{
			Success:   true,
			PromQL:    promql,
			Template:  "keyword-based",
			Category:  CategoryGeneric,
			TimeRange: extractTimeRange(lowered),
		}
	}

	return Result{
		Success: false,
		Error:   "Could not translate query. Please provide more specific information.",
	}
}

// extractTimeRange maps time phrasing to a compact range string. The
// default window is one hour.
func extractTimeRange(lowered string) string {
	switch {
	case strings.Contains(lowered, "last hour") || strings.Contains(lowered, "past hour"):
		return "1h"
	case strings.Contains(lowered, "last 30 minutes"):
		return "30m"
	case strings.Contains(lowered, "last 15 minutes"):
		return "15m"
	case strings.Contains(lowered, "last 5 minutes"):
		return "5m"
	case strings.Contains(lowered, "last day") || strings.Contains(lowered, "past day"):
		return "1d"
	case strings.Contains(lowered, "last week"):
		return "7d"
	default:
		return "1h"
	}
}

// constructFromKeywords emits a parameterless PromQL query for queries no
// template recognizes. Empty string means no fallback applies.
func constructFromKeywords(lowered string) string {
	switch {
	case strings.Contains(lowered, "memory") && strings.Contains(lowered, "pod"):
		return "container_memory_usage_bytes"
	case strings.Contains(lowered, "cpu") && strings.Contains(lowered, "pod"):
		return "rate(container_cpu_usage_seconds_total[5m])"
	case strings.Contains(lowered, "request"):
		return "rate(http_requests_total[5m])"
	default:
		return ""
	}
}

// TemplateInfo describes one template for the listing endpoint.
type TemplateInfo struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Example     string `json:"example"`
}

// ListTemplates describes every template with an example phrasing.
func (t *Translator) ListTemplates() []TemplateInfo {
	infos := make([]TemplateInfo, 0, len(t.templates))
	for _, tmpl := range t.templates {
		infos = append(infos, TemplateInfo{
			Description: tmpl.Description,
			Category:    tmpl.Category,
			Example:     exampleFor(tmpl),
		})
	}
	return infos
}

// exampleFor renders the raw pattern with a sample value in place of the
// capture group.
func exampleFor(tmpl Template) string {
	sample := map[string]string{
		"pod_name":     "my-pod-name",
		"namespace":    "default",
		"service_name": "my-service",
		"node_name":    "node-1",
	}[tmpl.Param]

	example := tmpl.Pattern.String()
	example = strings.ReplaceAll(example, `(\S+)`, sample)
	example = strings.ReplaceAll(example, `\s+`, " ")
	example = strings.ReplaceAll(example, `.*`, " ... ")
	return example
}
