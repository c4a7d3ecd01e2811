package summarizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/temirov/repodigest/internal/types"
)

// SystemPrompt instructs the model to answer with the summary JSON object only.
const SystemPrompt = `You are a GitHub repository analyzer. Given repository information, respond with ONLY a JSON object:
{
  "summary": "2-3 sentence description of what the project does and its purpose",
  "technologies": ["list", "of", "key", "technologies"],
  "structure": "1-2 sentence description of the project's code organization"
}`

const (
	responsePreviewLength = 200

	fieldSummary      = "summary"
	fieldTechnologies = "technologies"
	fieldStructure    = "structure"

	parseFailureFormat  = "Failed to parse LLM response as JSON: %s"
	invalidFieldFormat  = "Missing or invalid '%s' in LLM response"
	callFailureFormat   = "LLM API call failed: %v"
	emptyResponseFormat = "LLM returned no content"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseResponse decodes a model reply into a Summary. The reply may be bare JSON or JSON
// wrapped in a Markdown code fence. Non-string technologies are kept as their JSON text.
func ParseResponse(text string) (types.Summary, error) {
	trimmed := strings.TrimSpace(text)
	fields, decoded := decodeObject(trimmed)
	if !decoded {
		if match := fencedBlockPattern.FindStringSubmatch(trimmed); match != nil {
			fields, decoded = decodeObject(match[1])
		}
	}
	if !decoded {
		return types.Summary{}, &AnalysisError{Message: fmt.Sprintf(parseFailureFormat, preview(trimmed))}
	}
	return validateFields(fields)
}

func decodeObject(text string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func validateFields(fields map[string]json.RawMessage) (types.Summary, error) {
	var summary types.Summary
	if !decodeString(fields[fieldSummary], &summary.Summary) {
		return types.Summary{}, invalidField(fieldSummary)
	}

	var technologies []json.RawMessage
	rawTechnologies, present := fields[fieldTechnologies]
	if !present || json.Unmarshal(rawTechnologies, &technologies) != nil || technologies == nil {
		return types.Summary{}, invalidField(fieldTechnologies)
	}

	if !decodeString(fields[fieldStructure], &summary.Structure) {
		return types.Summary{}, invalidField(fieldStructure)
	}

	summary.Technologies = make([]string, 0, len(technologies))
	for _, technology := range technologies {
		summary.Technologies = append(summary.Technologies, technologyText(technology))
	}
	return summary, nil
}

func decodeString(raw json.RawMessage, target *string) bool {
	if len(raw) == 0 || raw[0] != '"' {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

func technologyText(raw json.RawMessage) string {
	var text string
	if decodeString(raw, &text) {
		return text
	}
	return string(raw)
}

func invalidField(name string) error {
	return &AnalysisError{Message: fmt.Sprintf(invalidFieldFormat, name)}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= responsePreviewLength {
		return text
	}
	return string(runes[:responsePreviewLength])
}
