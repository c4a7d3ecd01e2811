package digest

import (
	"fmt"
	"strings"

	"github.com/temirov/repodigest/internal/types"
)

const (
	maximumListedLanguages = 10

	descriptionLineFormat = "Description: %s"
	starsLineFormat       = "Stars: %d"
	licenseLineFormat     = "License: %s"
	topicsLineFormat      = "Topics: %s"
	languagesLineFormat   = "Languages: %s"
	languageEntryFormat   = "%s (%d)"
	listSeparator         = ", "
)

// FormatMetadata renders the present metadata fields and up to ten languages, one per line,
// truncated to limit characters.
func FormatMetadata(metadata types.Metadata, languages []types.LanguageStat, limit int) string {
	var lines []string
	if metadata.Description != "" {
		lines = append(lines, fmt.Sprintf(descriptionLineFormat, metadata.Description))
	}
	if metadata.StargazersCount != nil {
		lines = append(lines, fmt.Sprintf(starsLineFormat, *metadata.StargazersCount))
	}
	if metadata.License != nil && metadata.License.Name != "" {
		lines = append(lines, fmt.Sprintf(licenseLineFormat, metadata.License.Name))
	}
	if len(metadata.Topics) > 0 {
		lines = append(lines, fmt.Sprintf(topicsLineFormat, strings.Join(metadata.Topics, listSeparator)))
	}
	if len(languages) > 0 {
		listed := languages
		if len(listed) > maximumListedLanguages {
			listed = listed[:maximumListedLanguages]
		}
		languageEntries := make([]string, 0, len(listed))
		for _, language := range listed {
			languageEntries = append(languageEntries, fmt.Sprintf(languageEntryFormat, language.Name, language.Bytes))
		}
		lines = append(lines, fmt.Sprintf(languagesLineFormat, strings.Join(languageEntries, listSeparator)))
	}
	return Truncate(strings.Join(lines, lineSeparator), limit)
}
