package digest

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to any text clipped by Truncate.
const TruncationMarker = "\n... (truncated)"

const (
	chunkHeaderPrefix = "### "
	chunkSeparator    = "\n\n"
	lineSeparator     = "\n"
)

// Length counts characters the way every budget in this package does: in runes.
func Length(text string) int {
	return utf8.RuneCountInString(text)
}

// Truncate returns text unchanged when it fits within limit characters, and otherwise
// its first limit characters followed by TruncationMarker. A negative limit counts as zero.
func Truncate(text string, limit int) string {
	if limit < 0 {
		limit = 0
	}
	if Length(text) <= limit {
		return text
	}
	return runePrefix(text, limit) + TruncationMarker
}

// tierBudget is the running character allowance of one multi-file section.
type tierBudget struct {
	remaining int
	chunks    []string
}

func newTierBudget(limit int) *tierBudget {
	return &tierBudget{remaining: limit}
}

func (budget *tierBudget) exhausted() bool {
	return budget.remaining <= 0
}

// accept truncates chunk to the remaining allowance and charges its actual length.
func (budget *tierBudget) accept(chunk string) {
	truncatedChunk := Truncate(chunk, budget.remaining)
	budget.chunks = append(budget.chunks, truncatedChunk)
	budget.remaining -= Length(truncatedChunk)
}

// AssembleTier renders the fetched files of one tier as "### <path>" chunks under a shared
// character budget. Paths without content are skipped; a positive lineLimit keeps only the
// first lineLimit lines of each file. It returns an empty string when no chunk was produced.
func AssembleTier(paths []string, contents map[string]string, limit int, lineLimit int) string {
	budget := newTierBudget(limit)
	for _, path := range paths {
		if budget.exhausted() {
			break
		}
		content, fetched := contents[path]
		if !fetched || content == "" {
			continue
		}
		if lineLimit > 0 {
			content = firstLines(content, lineLimit)
		}
		budget.accept(chunkHeaderPrefix + path + lineSeparator + content)
	}
	return strings.Join(budget.chunks, chunkSeparator)
}

func firstLines(content string, lineLimit int) string {
	lines := strings.SplitN(content, lineSeparator, lineLimit+1)
	if len(lines) > lineLimit {
		lines = lines[:lineLimit]
	}
	return strings.Join(lines, lineSeparator)
}

func runePrefix(text string, count int) string {
	seen := 0
	for byteIndex := range text {
		if seen == count {
			return text[:byteIndex]
		}
		seen++
	}
	return text
}
