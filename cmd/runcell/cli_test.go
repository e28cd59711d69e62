package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"runcell",
		"Python",
		"JavaScript",
		"run",
		"repl",
		"serve",
		"languages",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output should contain %q", phrase)
		}
	}
}

func TestCLIRunHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "run", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"--code",
		"--lang",
		"--timeout",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("run help output should contain %q", phrase)
		}
	}
}

func TestCLIReplHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "repl", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"--lang",
		"--history",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("repl help output should contain %q", phrase)
		}
	}
}

func TestCLIServeHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "serve", "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"--addr",
		"/execute",
		"/runtimes",
		"/history",
		"/health",
		"/ws",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("serve help output should contain %q", phrase)
		}
	}
}

func TestCLILanguageRequired(t *testing.T) {
	_, err := getLanguage("", "")
	if err == nil {
		t.Error("expected error when language not specified and no file extension")
	}
	if !strings.Contains(err.Error(), "language required") {
		t.Errorf("error should mention language required, got: %v", err)
	}
}

func TestCLILanguageAutoDetect(t *testing.T) {
	tests := []struct {
		filename string
		wantLang string
	}{
		{"script.py", "python"},
		{"script.js", "javascript"},
		{"script.mjs", "javascript"},
		{"main.cpp", "cpp"},
		{"main.cc", "cpp"},
		{"SCRIPT.PY", "python"},
	}

	for _, tc := range tests {
		lang, err := getLanguage("", tc.filename)
		if err != nil {
			t.Errorf("getLanguage(%q, %q) error: %v", "", tc.filename, err)
			continue
		}
		if lang.String() != tc.wantLang {
			t.Errorf("getLanguage(%q, %q) = %q, want %q", "", tc.filename, lang, tc.wantLang)
		}
	}
}

func TestCLILanguageExplicit(t *testing.T) {
	tests := []struct {
		langFlag string
		wantLang string
	}{
		{"python", "python"},
		{"py", "python"},
		{"js", "javascript"},
		{"javascript", "javascript"},
		{"cpp", "cpp"},
		{"c++", "cpp"},
	}

	for _, tc := range tests {
		lang, err := getLanguage(tc.langFlag, "")
		if err != nil {
			t.Errorf("getLanguage(%q, %q) error: %v", tc.langFlag, "", err)
			continue
		}
		if lang.String() != tc.wantLang {
			t.Errorf("getLanguage(%q, %q) = %q, want %q", tc.langFlag, "", lang, tc.wantLang)
		}
	}
}

func TestCLIUnknownLanguage(t *testing.T) {
	_, err := getLanguage("ruby", "")
	if err == nil {
		t.Error("expected error for unknown language")
	}
	if !strings.Contains(err.Error(), "unknown language") {
		t.Errorf("error should mention unknown language, got: %v", err)
	}
}

func TestCLICompletionCommands(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "completion" {
			found = true
			break
		}
	}
	if !found {
		t.Error("completion command should exist (provided by cobra)")
	}
}
