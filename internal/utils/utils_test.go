package utils

import (
	"reflect"
	"runtime/debug"
	"testing"
)

func TestDeduplicateStrings(t *testing.T) {
	testCases := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil input", input: nil, expected: []string{}},
		{name: "keeps first occurrence", input: []string{"b", "a", "b"}, expected: []string{"b", "a"}},
		{name: "trims and drops blanks", input: []string{" vendor ", "", "  ", "vendor"}, expected: []string{"vendor"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			result := DeduplicateStrings(testCase.input)
			if !reflect.DeepEqual(result, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, result)
			}
		})
	}
}

func TestVersionFromBuildInfo(t *testing.T) {
	testCases := []struct {
		name      string
		buildInfo debug.BuildInfo
		expected  string
	}{
		{
			name:      "module version",
			buildInfo: debug.BuildInfo{Main: debug.Module{Version: "v1.4.0"}},
			expected:  "v1.4.0",
		},
		{
			name: "clean revision",
			buildInfo: debug.BuildInfo{
				Main:     debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
			},
			expected: "devel+0123456789ab",
		},
		{
			name: "dirty revision",
			buildInfo: debug.BuildInfo{
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc123"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			expected: "devel+abc123-dirty",
		},
		{
			name:      "nothing known",
			buildInfo: debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			expected:  "unknown",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			if version := versionFromBuildInfo(&testCase.buildInfo); version != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, version)
			}
		})
	}
}

func TestGetApplicationVersionPrefersLinkedVersion(t *testing.T) {
	original := Version
	Version = "v9.9.9"
	defer func() { Version = original }()
	if version := GetApplicationVersion(); version != "v9.9.9" {
		t.Fatalf("expected linked version, got %q", version)
	}
}

func TestNewApplicationLogger(t *testing.T) {
	for _, debugEnabled := range []bool{false, true} {
		logger, err := NewApplicationLogger(debugEnabled)
		if err != nil {
			t.Fatalf("NewApplicationLogger(%v) error: %v", debugEnabled, err)
		}
		if logger.Core().Enabled(-1) != debugEnabled {
			t.Fatalf("unexpected debug level enablement for debug=%v", debugEnabled)
		}
	}
}
