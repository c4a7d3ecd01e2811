package digest_test

import (
	"strings"
	"testing"

	"github.com/temirov/repodigest/internal/digest"
	"github.com/temirov/repodigest/internal/types"
)

var nestedEntries = []types.TreeEntry{
	directory("a"),
	directory("a/b"),
	directory("a/b/c"),
	blob("a/b/c/d.txt"),
	directory("a/b/c/e"),
	blob("a/b/c/e/f.txt"),
	blob("a/b/g.txt"),
	blob("root.txt"),
}

func TestRenderTree(t *testing.T) {
	rendered := digest.RenderTree(nestedEntries, 2, 2000)

	expected := "a/\n  b/\nroot.txt"
	if rendered != expected {
		t.Fatalf("unexpected tree %q, expected %q", rendered, expected)
	}
}

func TestRenderTreeNeverExceedsMaxDepth(t *testing.T) {
	for maxDepth := 0; maxDepth <= 6; maxDepth++ {
		rendered := digest.RenderTree(nestedEntries, maxDepth, 2000)
		if rendered == "" {
			if maxDepth != 0 {
				t.Fatalf("expected lines for max depth %d", maxDepth)
			}
			continue
		}
		for _, line := range strings.Split(rendered, "\n") {
			indentation := len(line) - len(strings.TrimLeft(line, " "))
			if depth := indentation / 2; depth >= maxDepth {
				t.Fatalf("max depth %d rendered line %q at depth %d", maxDepth, line, depth)
			}
		}
	}
}

func TestRenderTreeTruncates(t *testing.T) {
	var entries []types.TreeEntry
	for index := 0; index < 500; index++ {
		entries = append(entries, blob(strings.Repeat("n", 10)+".go"))
	}

	rendered := digest.RenderTree(entries, 4, 2000)

	if !strings.HasSuffix(rendered, digest.TruncationMarker) {
		t.Fatalf("expected truncation marker")
	}
	if digest.Length(rendered) != 2000+digest.Length(digest.TruncationMarker) {
		t.Fatalf("unexpected rendered length %d", digest.Length(rendered))
	}
}

func TestTreeDepthFor(t *testing.T) {
	policy := digest.DefaultPolicy()

	testCases := []struct {
		blobCount int
		expected  int
	}{
		{blobCount: 0, expected: 4},
		{blobCount: 999, expected: 4},
		{blobCount: 1000, expected: 3},
		{blobCount: 25000, expected: 3},
	}

	for _, testCase := range testCases {
		if actual := policy.TreeDepthFor(testCase.blobCount); actual != testCase.expected {
			t.Fatalf("TreeDepthFor(%d) = %d, expected %d", testCase.blobCount, actual, testCase.expected)
		}
	}
}
