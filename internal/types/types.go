// Package types defines every cross‑package data structure used by repodigest.
package types

const (
	// EntryTypeTree marks a directory entry of a repository tree.
	EntryTypeTree = "tree"
	// EntryTypeBlob marks a file entry of a repository tree.
	EntryTypeBlob = "blob"

	CommandServe     = "serve"
	CommandDigest    = "digest"
	CommandSummarize = "summarize"
	CommandInit      = "init"

	ProviderNebius = "nebius"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
)

// TreeEntry is one element of a recursively expanded repository tree.
// Path is slash-separated and relative to the repository root.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// IsBlob reports whether the entry represents a file.
func (entry TreeEntry) IsBlob() bool {
	return entry.Type == EntryTypeBlob
}

// IsTree reports whether the entry represents a directory.
func (entry TreeEntry) IsTree() bool {
	return entry.Type == EntryTypeTree
}

// License is the subset of repository license information rendered in a digest.
type License struct {
	Name string `json:"name"`
}

// Metadata holds the repository fields the digest knows how to render.
// A nil StargazersCount means the hosting API did not report one.
type Metadata struct {
	Description     string   `json:"description,omitempty"`
	StargazersCount *int     `json:"stargazers_count,omitempty"`
	License         *License `json:"license,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	DefaultBranch   string   `json:"default_branch,omitempty"`
}

// LanguageStat is a language name with its byte count, kept in hosting API order.
type LanguageStat struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// Snapshot is the complete set of fetched repository data handed to the digest builder.
// FileContents only contains paths that were successfully retrieved.
type Snapshot struct {
	Owner        string            `json:"owner"`
	Repository   string            `json:"repo"`
	Metadata     Metadata          `json:"metadata"`
	Languages    []LanguageStat    `json:"languages,omitempty"`
	Readme       *string           `json:"readme,omitempty"`
	Tree         []TreeEntry       `json:"tree"`
	FileContents map[string]string `json:"file_contents,omitempty"`
}

// FullName returns the owner/repository identifier.
func (snapshot Snapshot) FullName() string {
	return snapshot.Owner + "/" + snapshot.Repository
}

// BlobCount returns the number of file entries in the unfiltered tree.
func (snapshot Snapshot) BlobCount() int {
	count := 0
	for _, entry := range snapshot.Tree {
		if entry.IsBlob() {
			count++
		}
	}
	return count
}

// Summary is the structured result produced by the summarization service.
type Summary struct {
	Summary      string   `json:"summary"`
	Technologies []string `json:"technologies"`
	Structure    string   `json:"structure"`
}
