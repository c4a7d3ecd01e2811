package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/temirov/repodigest/internal/output"
	"github.com/temirov/repodigest/internal/types"
)

const (
	testRepositoryURL  = "https://github.com/octo/tool"
	testRepositoryPath = "/repos/octo/tool"
)

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

// newFakeGitHub serves a two-file repository.
func newFakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case testRepositoryPath:
			writeJSON(writer, http.StatusOK, map[string]any{"description": "A tool", "stargazers_count": 5, "default_branch": "main"})
		case testRepositoryPath + "/languages":
			writeJSON(writer, http.StatusOK, map[string]int{"Python": 120})
		case testRepositoryPath + "/git/trees/main":
			writeJSON(writer, http.StatusOK, map[string]any{
				"sha": "abc",
				"tree": []map[string]string{
					{"path": "README.md", "type": "blob"},
					{"path": "src", "type": "tree"},
					{"path": "src/main.py", "type": "blob"},
				},
			})
		case testRepositoryPath + "/contents/src/main.py":
			writeJSON(writer, http.StatusOK, map[string]string{
				"type":     "file",
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte("print(1)\n")),
			})
		default:
			writeJSON(writer, http.StatusNotFound, map[string]string{"message": "Not Found"})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newFakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		content := `{"summary": "A tool.", "technologies": ["Python"], "structure": "src holds the entry point."}`
		writeJSON(writer, http.StatusOK, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfiguration(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repodigest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write configuration: %v", err)
	}
	return path
}

func isolateEnvironment(t *testing.T) {
	t.Helper()
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)
	for _, variable := range []string{"GITHUB_TOKEN", "PORT", "NEBIUS_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(variable, "")
	}
}

func executeCommand(t *testing.T, deps dependencies, arguments ...string) (string, string, error) {
	t.Helper()
	rootCommand := createRootCommand(deps)
	var stdout bytes.Buffer
	var diagnostics bytes.Buffer
	rootCommand.SetOut(&stdout)
	rootCommand.SetErr(&diagnostics)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, arguments))
	err := rootCommand.ExecuteContext(context.Background())
	return stdout.String(), diagnostics.String(), err
}

func TestDigestCommand(t *testing.T) {
	isolateEnvironment(t)
	gitHub := newFakeGitHub(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+gitHub.URL+"\n")

	testCases := []struct {
		name             string
		arguments        []string
		expectTokens     bool
		expectCopied     bool
		expectedFragment string
	}{
		{
			name:             "prints_digest",
			arguments:        []string{"digest", testRepositoryURL, "--config", configPath},
			expectedFragment: "## Entry Points\n### src/main.py\nprint(1)",
		},
		{
			name:             "prints_token_report",
			arguments:        []string{"digest", testRepositoryURL, "--config", configPath, "--tokens", "yes"},
			expectTokens:     true,
			expectedFragment: "## Metadata\nDescription: A tool\nStars: 5\nLanguages: Python (120)",
		},
		{
			name:             "copies_digest",
			arguments:        []string{"digest", testRepositoryURL, "--config", configPath, "--copy"},
			expectCopied:     true,
			expectedFragment: "## Directory Structure\nREADME.md\nsrc/\n  main.py",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			copier := &recordingCopier{}
			stdout, diagnostics, err := executeCommand(t, dependencies{copier: copier}, testCase.arguments...)
			if err != nil {
				t.Fatalf("digest command error: %v", err)
			}
			if !strings.Contains(stdout, testCase.expectedFragment) {
				t.Fatalf("expected %q in stdout:\n%s", testCase.expectedFragment, stdout)
			}
			if strings.Contains(diagnostics, "Tokens (") != testCase.expectTokens {
				t.Fatalf("unexpected token report state: %q", diagnostics)
			}
			if (len(copier.copied) == 1) != testCase.expectCopied {
				t.Fatalf("unexpected copy state: %v", copier.copied)
			}
			if testCase.expectCopied && copier.copied[0]+"\n" != stdout {
				t.Fatalf("expected copied text to match printed digest")
			}
		})
	}
}

func TestDigestCommandStructuredFormats(t *testing.T) {
	isolateEnvironment(t)
	gitHub := newFakeGitHub(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+gitHub.URL+"\n")

	t.Run("json_includes_tokens", func(t *testing.T) {
		stdout, diagnostics, err := executeCommand(t, dependencies{}, "digest", testRepositoryURL, "--config", configPath, "--format", "JSON", "--tokens")
		if err != nil {
			t.Fatalf("digest command error: %v", err)
		}
		var document output.DigestDocument
		if decodeErr := json.Unmarshal([]byte(stdout), &document); decodeErr != nil {
			t.Fatalf("decode digest: %v\n%s", decodeErr, stdout)
		}
		if document.Repository != "octo/tool" {
			t.Fatalf("unexpected repository %q", document.Repository)
		}
		if document.Tokens == nil || document.Tokens.Total <= 0 {
			t.Fatalf("expected token totals in document, got %+v", document.Tokens)
		}
		if len(document.Sections) == 0 || document.Sections[0].Name != "Metadata" {
			t.Fatalf("unexpected sections %+v", document.Sections)
		}
		if strings.Contains(diagnostics, "Tokens (") {
			t.Fatalf("expected no stderr token report for structured output: %q", diagnostics)
		}
	})

	t.Run("xml", func(t *testing.T) {
		stdout, _, err := executeCommand(t, dependencies{}, "digest", testRepositoryURL, "--config", configPath, "--format", "xml")
		if err != nil {
			t.Fatalf("digest command error: %v", err)
		}
		if !strings.Contains(stdout, `<digest repository="octo/tool">`) {
			t.Fatalf("unexpected xml output:\n%s", stdout)
		}
	})

	t.Run("rejects_unknown_format", func(t *testing.T) {
		_, _, err := executeCommand(t, dependencies{}, "digest", testRepositoryURL, "--config", configPath, "--format", "yaml")
		if err == nil || err.Error() != "Invalid format value 'yaml'" {
			t.Fatalf("expected invalid format error, got %v", err)
		}
	})
}

func TestDigestCommandReportsNotFound(t *testing.T) {
	isolateEnvironment(t)
	gitHub := newFakeGitHub(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+gitHub.URL+"\n")

	_, _, err := executeCommand(t, dependencies{}, "digest", "https://github.com/octo/missing", "--config", configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSummarizeCommand(t *testing.T) {
	isolateEnvironment(t)
	gitHub := newFakeGitHub(t)
	model := newFakeModel(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+gitHub.URL+"\nllm:\n  base_url: "+model.URL+"\n")

	t.Run("prints_summary", func(t *testing.T) {
		t.Setenv("NEBIUS_API_KEY", "test-key")
		stdout, _, err := executeCommand(t, dependencies{}, "summarize", testRepositoryURL, "--config", configPath)
		if err != nil {
			t.Fatalf("summarize command error: %v", err)
		}
		var summary types.Summary
		if decodeErr := json.Unmarshal([]byte(stdout), &summary); decodeErr != nil {
			t.Fatalf("decode summary: %v\n%s", decodeErr, stdout)
		}
		if summary.Summary != "A tool." || len(summary.Technologies) != 1 || summary.Technologies[0] != "Python" {
			t.Fatalf("unexpected summary %+v", summary)
		}
	})

	t.Run("prints_raw_summary", func(t *testing.T) {
		t.Setenv("NEBIUS_API_KEY", "test-key")
		stdout, _, err := executeCommand(t, dependencies{}, "summarize", testRepositoryURL, "--config", configPath, "--format", "raw")
		if err != nil {
			t.Fatalf("summarize command error: %v", err)
		}
		expected := "Summary: A tool.\nTechnologies: Python\nStructure: src holds the entry point.\n"
		if stdout != expected {
			t.Fatalf("unexpected raw summary %q", stdout)
		}
	})

	t.Run("requires_credentials", func(t *testing.T) {
		_, _, err := executeCommand(t, dependencies{}, "summarize", testRepositoryURL, "--config", configPath)
		if err == nil || err.Error() != "NEBIUS_API_KEY environment variable not set" {
			t.Fatalf("expected missing credential error, got %v", err)
		}
	})
}

func TestInitCommandWritesGlobalConfiguration(t *testing.T) {
	isolateEnvironment(t)
	homeDirectory := os.Getenv("HOME")

	stdout, _, err := executeCommand(t, dependencies{}, "init", "--global")
	if err != nil {
		t.Fatalf("init command error: %v", err)
	}
	expectedPath := filepath.Join(homeDirectory, ".repodigest", "config.yaml")
	if !strings.Contains(stdout, expectedPath) {
		t.Fatalf("expected %s in stdout %q", expectedPath, stdout)
	}
	if _, statErr := os.Stat(expectedPath); statErr != nil {
		t.Fatalf("expected configuration file: %v", statErr)
	}

	if _, _, err := executeCommand(t, dependencies{}, "init", "--global"); err == nil {
		t.Fatalf("expected error when configuration exists without --force")
	}
	if _, _, err := executeCommand(t, dependencies{}, "init", "--global", "--force", "true"); err != nil {
		t.Fatalf("expected --force to overwrite: %v", err)
	}
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := executeCommand(t, dependencies{}, "--version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(stdout, "repodigest version: ") {
		t.Fatalf("unexpected version stdout %q", stdout)
	}
}

func TestCommandsRejectMissingArguments(t *testing.T) {
	for _, commandName := range []string{"digest", "summarize"} {
		if _, _, err := executeCommand(t, dependencies{}, commandName); err == nil {
			t.Fatalf("expected %s to require a URL", commandName)
		}
	}
}
