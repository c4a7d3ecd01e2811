package digest

import (
	"strings"

	"github.com/temirov/repodigest/internal/types"
)

const (
	treeIndent          = "  "
	directorySuffixMark = "/"
)

// Depth returns the number of path separators in path; root-level entries have depth zero.
func Depth(path string) int {
	return strings.Count(path, pathSeparator)
}

// RenderTree draws entries as an indented list of basenames, omitting every entry whose
// depth is at least maxDepth, and truncates the block to limit characters.
func RenderTree(entries []types.TreeEntry, maxDepth int, limit int) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		depth := Depth(entry.Path)
		if depth >= maxDepth {
			continue
		}
		name := baseName(entry.Path)
		if entry.IsTree() {
			name += directorySuffixMark
		}
		lines = append(lines, strings.Repeat(treeIndent, depth)+name)
	}
	return Truncate(strings.Join(lines, lineSeparator), limit)
}
