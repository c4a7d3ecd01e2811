package digest

import (
	"strings"

	"github.com/temirov/repodigest/internal/types"
)

const pathSeparator = "/"

// IgnoreRules excludes tree entries by directory segment, exact basename, or basename suffix.
type IgnoreRules struct {
	directories map[string]struct{}
	files       map[string]struct{}
	extensions  []string
}

// NewIgnoreRules builds classifier rules from the three exclusion lists.
func NewIgnoreRules(directories []string, files []string, extensions []string) IgnoreRules {
	return IgnoreRules{
		directories: toSet(directories),
		files:       toSet(files),
		extensions:  cloneStrings(extensions),
	}
}

// Ignores reports whether the slash-separated path is excluded by any rule.
func (rules IgnoreRules) Ignores(path string) bool {
	segments := strings.Split(path, pathSeparator)
	for _, segment := range segments {
		if _, ignoredDirectory := rules.directories[segment]; ignoredDirectory {
			return true
		}
	}
	baseName := segments[len(segments)-1]
	if _, ignoredFile := rules.files[baseName]; ignoredFile {
		return true
	}
	for _, extension := range rules.extensions {
		if strings.HasSuffix(baseName, extension) {
			return true
		}
	}
	return false
}

// FilterEntries drops every entry the rules ignore, preserving traversal order.
func (rules IgnoreRules) FilterEntries(entries []types.TreeEntry) []types.TreeEntry {
	filtered := make([]types.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		if rules.Ignores(entry.Path) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// PatternTier is an ordered list of patterns matched against a basename or a full path.
type PatternTier struct {
	patterns map[string]struct{}
}

// NewPatternTier builds a tier from its patterns.
func NewPatternTier(patterns []string) PatternTier {
	return PatternTier{patterns: toSet(patterns)}
}

// Matches reports whether the pattern list contains the basename or the full path.
func (tier PatternTier) Matches(path string) bool {
	if _, fullPathMatch := tier.patterns[path]; fullPathMatch {
		return true
	}
	_, baseNameMatch := tier.patterns[baseName(path)]
	return baseNameMatch
}

// SelectPaths returns the paths of blob entries matching the tier, in traversal order.
func (tier PatternTier) SelectPaths(entries []types.TreeEntry) []string {
	var selected []string
	for _, entry := range entries {
		if !entry.IsBlob() || !tier.Matches(entry.Path) {
			continue
		}
		selected = append(selected, entry.Path)
	}
	return selected
}

// FetchPaths lists the blob paths whose contents a data source should retrieve for the policy:
// entries that survive classification and match either tier, deduplicated in traversal order.
func (policy Policy) FetchPaths(entries []types.TreeEntry) []string {
	var paths []string
	for _, entry := range policy.ignoreRules.FilterEntries(entries) {
		if !entry.IsBlob() {
			continue
		}
		if policy.configTier.Matches(entry.Path) || policy.entryPointTier.Matches(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	return paths
}

func baseName(path string) string {
	separatorIndex := strings.LastIndex(path, pathSeparator)
	if separatorIndex < 0 {
		return path
	}
	return path[separatorIndex+1:]
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
