package output

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/tokenizer"
	"github.com/temirov/repodigest/internal/types"
)

func sampleDigest() digest.Digest {
	return digest.Digest{Sections: []digest.Section{
		{Name: digest.SectionMetadata, Body: "Description: A tool"},
		{Name: digest.SectionTree, Body: "main.go"},
	}}
}

func TestRenderDigest(t *testing.T) {
	report := &tokenizer.Report{
		Encoding: "cl100k_base",
		Sections: []tokenizer.SectionCount{{Name: digest.SectionMetadata, Tokens: 7}},
		Total:    12,
	}

	t.Run("raw", func(t *testing.T) {
		rendered, err := RenderDigest("octo/tool", sampleDigest(), report, types.FormatRaw)
		if err != nil {
			t.Fatalf("RenderDigest error: %v", err)
		}
		if rendered != sampleDigest().String() {
			t.Fatalf("expected raw output to equal digest text, got %q", rendered)
		}
	})

	t.Run("json", func(t *testing.T) {
		rendered, err := RenderDigest("octo/tool", sampleDigest(), report, types.FormatJSON)
		if err != nil {
			t.Fatalf("RenderDigest error: %v", err)
		}
		var document DigestDocument
		if err := json.Unmarshal([]byte(rendered), &document); err != nil {
			t.Fatalf("decode JSON: %v", err)
		}
		if document.Repository != "octo/tool" || len(document.Sections) != 2 {
			t.Fatalf("unexpected document %+v", document)
		}
		if document.Sections[0].Tokens == nil || *document.Sections[0].Tokens != 7 {
			t.Fatalf("expected metadata token count")
		}
		if document.Sections[1].Tokens != nil {
			t.Fatalf("expected no token count for an uncounted section")
		}
		if document.Tokens == nil || document.Tokens.Total != 12 {
			t.Fatalf("expected total tokens")
		}
	})

	t.Run("xml", func(t *testing.T) {
		rendered, err := RenderDigest("octo/tool", sampleDigest(), nil, types.FormatXML)
		if err != nil {
			t.Fatalf("RenderDigest error: %v", err)
		}
		if !strings.HasPrefix(rendered, xml.Header) {
			t.Fatalf("expected XML header")
		}
		if !strings.Contains(rendered, `<section name="Metadata">Description: A tool</section>`) {
			t.Fatalf("unexpected XML output:\n%s", rendered)
		}
		if strings.Contains(rendered, "<tokens") {
			t.Fatalf("expected tokens element to be omitted without a report")
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := RenderDigest("octo/tool", sampleDigest(), nil, "yaml"); err == nil {
			t.Fatalf("expected error for unsupported format")
		}
	})
}

func TestRenderSummary(t *testing.T) {
	summary := types.Summary{Summary: "A tool.", Technologies: []string{"Go", "Cobra"}, Structure: "cmd and internal."}

	testCases := []struct {
		name     string
		format   string
		summary  types.Summary
		expected string
	}{
		{
			name:     "raw",
			format:   types.FormatRaw,
			summary:  summary,
			expected: "Summary: A tool.\nTechnologies: Go, Cobra\nStructure: cmd and internal.",
		},
		{
			name:     "json_with_nil_technologies",
			format:   types.FormatJSON,
			summary:  types.Summary{Summary: "s", Structure: "x"},
			expected: "{\n  \"summary\": \"s\",\n  \"technologies\": [],\n  \"structure\": \"x\"\n}",
		},
		{
			name:     "xml",
			format:   types.FormatXML,
			summary:  summary,
			expected: xml.Header + "<summary>\n  <text>A tool.</text>\n  <technologies>\n    <technology>Go</technology>\n    <technology>Cobra</technology>\n  </technologies>\n  <structure>cmd and internal.</structure>\n</summary>",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			rendered, err := RenderSummary(testCase.summary, testCase.format)
			if err != nil {
				t.Fatalf("RenderSummary error: %v", err)
			}
			if rendered != testCase.expected {
				t.Fatalf("expected:\n%s\ngot:\n%s", testCase.expected, rendered)
			}
		})
	}
}

func TestIsSupportedFormat(t *testing.T) {
	for _, format := range []string{"raw", "json", "xml"} {
		if !IsSupportedFormat(format) {
			t.Fatalf("expected %s to be supported", format)
		}
	}
	if IsSupportedFormat("toon") {
		t.Fatalf("expected toon to be unsupported")
	}
}
