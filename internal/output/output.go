// Package output renders digests and summaries as raw text, JSON or XML.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/tokenizer"
	"github.com/temirov/repodigest/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	xmlHeader = xml.Header

	summaryLabel      = "Summary: "
	technologiesLabel = "Technologies: "
	structureLabel    = "Structure: "
	listSeparator     = ", "

	unsupportedFormatMessage = "unsupported output format %q"
)

// DigestDocument is the structured form of a digest.
type DigestDocument struct {
	XMLName    xml.Name          `json:"-" xml:"digest"`
	Repository string            `json:"repository" xml:"repository,attr"`
	Sections   []SectionDocument `json:"sections" xml:"section"`
	Tokens     *TokenDocument    `json:"tokens,omitempty" xml:"tokens,omitempty"`
}

// SectionDocument is one labeled digest section.
type SectionDocument struct {
	Name   string `json:"name" xml:"name,attr"`
	Tokens *int   `json:"tokens,omitempty" xml:"tokens,attr,omitempty"`
	Body   string `json:"body" xml:",chardata"`
}

// TokenDocument is the token estimate of a whole digest.
type TokenDocument struct {
	Encoding string `json:"encoding" xml:"encoding,attr"`
	Total    int    `json:"total" xml:"total,attr"`
}

type summaryDocument struct {
	XMLName      xml.Name `json:"-" xml:"summary"`
	Summary      string   `json:"summary" xml:"text"`
	Technologies []string `json:"technologies" xml:"technologies>technology"`
	Structure    string   `json:"structure" xml:"structure"`
}

// IsSupportedFormat reports whether format is raw, json or xml.
func IsSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML:
		return true
	default:
		return false
	}
}

// NewDigestDocument pairs every section with its token count when a report is available.
func NewDigestDocument(repository string, built digest.Digest, report *tokenizer.Report) DigestDocument {
	document := DigestDocument{Repository: repository, Sections: make([]SectionDocument, 0, len(built.Sections))}
	sectionTokens := map[string]int{}
	if report != nil {
		document.Tokens = &TokenDocument{Encoding: report.Encoding, Total: report.Total}
		for _, section := range report.Sections {
			sectionTokens[section.Name] = section.Tokens
		}
	}
	for _, section := range built.Sections {
		sectionDocument := SectionDocument{Name: section.Name, Body: section.Body}
		if tokens, counted := sectionTokens[section.Name]; counted {
			count := tokens
			sectionDocument.Tokens = &count
		}
		document.Sections = append(document.Sections, sectionDocument)
	}
	return document
}

// RenderDigest renders a digest. The raw format is the digest text itself.
func RenderDigest(repository string, built digest.Digest, report *tokenizer.Report, format string) (string, error) {
	switch format {
	case types.FormatRaw:
		return built.String(), nil
	case types.FormatJSON:
		return renderJSON(NewDigestDocument(repository, built, report))
	case types.FormatXML:
		return renderXML(NewDigestDocument(repository, built, report))
	default:
		return "", fmt.Errorf(unsupportedFormatMessage, format)
	}
}

// RenderSummary renders a summary. JSON output matches the HTTP response body.
func RenderSummary(summary types.Summary, format string) (string, error) {
	technologies := summary.Technologies
	if technologies == nil {
		technologies = []string{}
	}
	switch format {
	case types.FormatRaw:
		var builder strings.Builder
		builder.WriteString(summaryLabel + summary.Summary + "\n")
		builder.WriteString(technologiesLabel + strings.Join(technologies, listSeparator) + "\n")
		builder.WriteString(structureLabel + summary.Structure)
		return builder.String(), nil
	case types.FormatJSON:
		return renderJSON(types.Summary{Summary: summary.Summary, Technologies: technologies, Structure: summary.Structure})
	case types.FormatXML:
		return renderXML(summaryDocument{Summary: summary.Summary, Technologies: technologies, Structure: summary.Structure})
	default:
		return "", fmt.Errorf(unsupportedFormatMessage, format)
	}
}

func renderJSON(payload interface{}) (string, error) {
	encoded, jsonEncodeError := json.MarshalIndent(payload, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return "", jsonEncodeError
	}
	return string(encoded), nil
}

func renderXML(payload interface{}) (string, error) {
	encoded, xmlMarshalError := xml.MarshalIndent(payload, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return "", xmlMarshalError
	}
	return xmlHeader + string(encoded), nil
}
