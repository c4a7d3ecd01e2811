// Package tokenizer estimates how many model tokens a digest occupies.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/temirov/repodigest/internal/digest"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters.
type Config struct {
	Model string
}

const (
	defaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

var errNilCounter = errors.New("nil tokenizer counter")

// NewCounter returns a tiktoken Counter for the requested model along with a label for
// the tokenizer in use: the model name when tiktoken knows the model, otherwise
// cl100k_base, which approximates models such as Llama or Gemini.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	lowerModel := strings.ToLower(model)

	if isOpenAIModel(lowerModel) {
		encoding, err := tiktoken.EncodingForModel(lowerModel)
		if err == nil && encoding != nil {
			return openAICounter{encoding: encoding, name: lowerModel}, model, nil
		}
	}
	fallback, fallbackErr := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackErr != nil {
		return nil, "", fmt.Errorf("initialize default tokenizer: %w", fallbackErr)
	}
	return openAICounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

func isOpenAIModel(model string) bool {
	prefixes := []string{
		"gpt-",
		"o1",
		"o3",
		"text-embedding",
		"davinci",
		"babbage",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

type openAICounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter openAICounter) Name() string {
	return counter.name
}

func (counter openAICounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errors.New("nil tiktoken encoder")
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}

// SectionCount is the token estimate of one digest section, header included.
type SectionCount struct {
	Name   string
	Tokens int
}

// Report is the token estimate of a whole digest.
type Report struct {
	Encoding string
	Sections []SectionCount
	Total    int
}

// CountDigest estimates tokens per section and for the rendered document.
func CountDigest(counter Counter, built digest.Digest) (Report, error) {
	if counter == nil {
		return Report{}, errNilCounter
	}
	report := Report{Encoding: counter.Name()}
	for _, section := range built.Sections {
		tokens, err := counter.CountString(section.String())
		if err != nil {
			return Report{}, fmt.Errorf("count section %s: %w", section.Name, err)
		}
		report.Sections = append(report.Sections, SectionCount{Name: section.Name, Tokens: tokens})
	}
	total, err := counter.CountString(built.String())
	if err != nil {
		return Report{}, fmt.Errorf("count digest: %w", err)
	}
	report.Total = total
	return report, nil
}
