package digest

import (
	"strings"

	"github.com/temirov/repodigest/internal/types"
)

const (
	SectionMetadata    = "Metadata"
	SectionReadme      = "README"
	SectionTree        = "Directory Structure"
	SectionConfigFiles = "Config Files"
	SectionEntryPoints = "Entry Points"

	sectionHeaderPrefix = "## "
)

// Section is one labeled part of a digest.
type Section struct {
	Name string
	Body string
}

// String renders the section as "## <Name>\n<Body>".
func (section Section) String() string {
	return sectionHeaderPrefix + section.Name + lineSeparator + section.Body
}

// Digest is the ordered list of sections produced for one snapshot.
type Digest struct {
	Sections []Section
}

// String joins the rendered sections with blank lines.
func (digest Digest) String() string {
	rendered := make([]string, 0, len(digest.Sections))
	for _, section := range digest.Sections {
		rendered = append(rendered, section.String())
	}
	return strings.Join(rendered, chunkSeparator)
}

// Section returns the named section and whether the digest contains it.
func (digest Digest) Section(name string) (Section, bool) {
	for _, section := range digest.Sections {
		if section.Name == name {
			return section, true
		}
	}
	return Section{}, false
}

// Builder assembles digests under a fixed Policy. It holds no per-build state and is safe
// for concurrent use.
type Builder struct {
	policy Policy
}

// NewBuilder returns a Builder bound to policy.
func NewBuilder(policy Policy) *Builder {
	return &Builder{policy: policy}
}

// Build assembles the digest sections for snapshot in their fixed order.
func (builder *Builder) Build(snapshot types.Snapshot) Digest {
	budgets := builder.policy.Budgets()
	filteredEntries := builder.policy.ignoreRules.FilterEntries(snapshot.Tree)
	maxDepth := builder.policy.TreeDepthFor(snapshot.BlobCount())

	sections := []Section{{
		Name: SectionMetadata,
		Body: FormatMetadata(snapshot.Metadata, snapshot.Languages, budgets.Metadata),
	}}
	if snapshot.Readme != nil && *snapshot.Readme != "" {
		sections = append(sections, Section{Name: SectionReadme, Body: Truncate(*snapshot.Readme, budgets.Readme)})
	}
	sections = append(sections, Section{Name: SectionTree, Body: RenderTree(filteredEntries, maxDepth, budgets.Tree)})

	configPaths := builder.policy.configTier.SelectPaths(filteredEntries)
	if configBody := AssembleTier(configPaths, snapshot.FileContents, budgets.ConfigFiles, 0); configBody != "" {
		sections = append(sections, Section{Name: SectionConfigFiles, Body: configBody})
	}

	entryPointPaths := builder.policy.entryPointTier.SelectPaths(filteredEntries)
	if entryPointBody := AssembleTier(entryPointPaths, snapshot.FileContents, budgets.EntryPoints, builder.policy.entryPointLineLimit); entryPointBody != "" {
		sections = append(sections, Section{Name: SectionEntryPoints, Body: entryPointBody})
	}

	return Digest{Sections: sections}
}

// BuildText is a convenience for Build(snapshot).String().
func (builder *Builder) BuildText(snapshot types.Snapshot) string {
	return builder.Build(snapshot).String()
}
