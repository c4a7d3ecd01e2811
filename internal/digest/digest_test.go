package digest_test

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/types"
)

func sectionNames(built digest.Digest) []string {
	names := make([]string, 0, len(built.Sections))
	for _, section := range built.Sections {
		names = append(names, section.Name)
	}
	return names
}

func TestBuildEndToEnd(t *testing.T) {
	snapshot := types.Snapshot{
		Owner:      "octo",
		Repository: "tool",
		Metadata:   types.Metadata{Description: "A tool", StargazersCount: intPointer(5)},
		Tree: []types.TreeEntry{
			blob("README.md"),
			blob("src/main.py"),
			blob("node_modules/x.js"),
		},
		FileContents: map[string]string{"src/main.py": "print(1)\n"},
	}

	built := digest.NewBuilder(digest.DefaultPolicy()).Build(snapshot)

	expectedNames := []string{digest.SectionMetadata, digest.SectionTree, digest.SectionEntryPoints}
	if names := sectionNames(built); !reflect.DeepEqual(names, expectedNames) {
		t.Fatalf("unexpected sections %v, expected %v", names, expectedNames)
	}

	metadataSection, _ := built.Section(digest.SectionMetadata)
	if !strings.Contains(metadataSection.Body, "Description: A tool") || !strings.Contains(metadataSection.Body, "Stars: 5") {
		t.Fatalf("unexpected metadata body %q", metadataSection.Body)
	}

	treeSection, _ := built.Section(digest.SectionTree)
	if treeSection.Body != "README.md\n  main.py" {
		t.Fatalf("unexpected tree body %q", treeSection.Body)
	}

	entrySection, _ := built.Section(digest.SectionEntryPoints)
	if !strings.Contains(entrySection.Body, "### src/main.py") || !strings.Contains(entrySection.Body, "print(1)") {
		t.Fatalf("unexpected entry point body %q", entrySection.Body)
	}

	text := built.String()
	expectedText := "## Metadata\nDescription: A tool\nStars: 5\n\n" +
		"## Directory Structure\nREADME.md\n  main.py\n\n" +
		"## Entry Points\n### src/main.py\nprint(1)\n"
	if text != expectedText {
		t.Fatalf("unexpected digest\nactual:\n%s\nexpected:\n%s", text, expectedText)
	}
	if strings.Contains(text, "node_modules") || strings.Contains(text, "## Config Files") || strings.Contains(text, "## README") {
		t.Fatalf("digest contains excluded content:\n%s", text)
	}
}

func TestBuildIncludesReadmeAndConfigFiles(t *testing.T) {
	readme := "# Tool\nDoes things."
	snapshot := types.Snapshot{
		Readme: &readme,
		Tree:   []types.TreeEntry{blob("go.mod"), blob("cmd/main.go")},
		FileContents: map[string]string{
			"go.mod":      "module example.com/tool\n",
			"cmd/main.go": "package main\n",
		},
	}

	built := digest.NewBuilder(digest.DefaultPolicy()).Build(snapshot)

	expectedNames := []string{
		digest.SectionMetadata,
		digest.SectionReadme,
		digest.SectionTree,
		digest.SectionConfigFiles,
		digest.SectionEntryPoints,
	}
	if names := sectionNames(built); !reflect.DeepEqual(names, expectedNames) {
		t.Fatalf("unexpected sections %v, expected %v", names, expectedNames)
	}
	readmeSection, _ := built.Section(digest.SectionReadme)
	if readmeSection.Body != readme {
		t.Fatalf("unexpected readme body %q", readmeSection.Body)
	}
	configSection, _ := built.Section(digest.SectionConfigFiles)
	if configSection.Body != "### go.mod\nmodule example.com/tool\n" {
		t.Fatalf("unexpected config body %q", configSection.Body)
	}
	metadataSection, _ := built.Section(digest.SectionMetadata)
	if metadataSection.Body != "" {
		t.Fatalf("expected an empty metadata body, got %q", metadataSection.Body)
	}
}

func TestBuildOmitsEmptyReadme(t *testing.T) {
	emptyReadme := ""
	built := digest.NewBuilder(digest.DefaultPolicy()).Build(types.Snapshot{Readme: &emptyReadme})

	if _, present := built.Section(digest.SectionReadme); present {
		t.Fatalf("expected empty README to be omitted")
	}
	if _, present := built.Section(digest.SectionTree); !present {
		t.Fatalf("expected directory structure to be present")
	}
}

func TestBuildLargeRepositoryDepth(t *testing.T) {
	testCases := []struct {
		name           string
		blobCount      int
		expectDeepFile bool
	}{
		{name: "below_threshold", blobCount: 999, expectDeepFile: true},
		{name: "at_threshold", blobCount: 1000, expectDeepFile: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			tree := []types.TreeEntry{blob("a/b/c/deep.txt")}
			for index := 1; index < testCase.blobCount; index++ {
				tree = append(tree, blob(fmt.Sprintf("file%04d.txt", index)))
			}

			built := digest.NewBuilder(digest.DefaultPolicy()).Build(types.Snapshot{Tree: tree})

			treeSection, _ := built.Section(digest.SectionTree)
			if strings.Contains(treeSection.Body, "deep.txt") != testCase.expectDeepFile {
				t.Fatalf("deep file presence mismatch for %d blobs", testCase.blobCount)
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	snapshot := types.Snapshot{
		Metadata:  types.Metadata{Topics: []string{"b", "a"}},
		Languages: []types.LanguageStat{{Name: "Rust", Bytes: 9}, {Name: "C", Bytes: 1}},
		Tree:      []types.TreeEntry{blob("Cargo.toml"), blob("src/lib.rs"), blob("src/main.rs")},
		FileContents: map[string]string{
			"Cargo.toml":  "[package]\n",
			"src/lib.rs":  "pub fn f() {}\n",
			"src/main.rs": "fn main() {}\n",
		},
	}
	builder := digest.NewBuilder(digest.DefaultPolicy())

	first := builder.BuildText(snapshot)
	for attempt := 0; attempt < 5; attempt++ {
		if again := builder.BuildText(snapshot); again != first {
			t.Fatalf("digest changed between builds:\n%s\n---\n%s", first, again)
		}
	}
	if strings.Index(first, "### src/lib.rs") > strings.Index(first, "### src/main.rs") {
		t.Fatalf("expected entry points in traversal order:\n%s", first)
	}
}

func TestPolicyBudgetsFillDefaults(t *testing.T) {
	policy := digest.NewPolicy(digest.PolicyOptions{Budgets: digest.Budgets{Readme: 10}})

	budgets := policy.Budgets()
	if budgets.Readme != 10 {
		t.Fatalf("expected README budget 10, got %d", budgets.Readme)
	}
	expectedDefaults := digest.DefaultPolicyOptions().Budgets
	if budgets.Tree != expectedDefaults.Tree || budgets.Metadata != expectedDefaults.Metadata {
		t.Fatalf("expected unset budgets to keep defaults, got %+v", budgets)
	}

	readme := strings.Repeat("r", 25)
	built := digest.NewBuilder(policy).Build(types.Snapshot{Readme: &readme})
	readmeSection, present := built.Section(digest.SectionReadme)
	if !present {
		t.Fatalf("expected README section")
	}
	if readmeSection.Body != strings.Repeat("r", 10)+digest.TruncationMarker {
		t.Fatalf("expected README clipped to the configured budget, got %q", readmeSection.Body)
	}
}
