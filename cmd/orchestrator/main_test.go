package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runCodeOnly, runEnableKG, runEnableRAG, runImages, runMode = false, false, false, nil, "auto"
	showFormat, verbose = "json", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func sqliteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := "version: 1\nstorage:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "draw.db") + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCodeOnly(t *testing.T) {
	out, err := execute(t, "run", "--code", "network", "topology")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "digraph G { A -> B; }" {
		t.Errorf("unexpected code: %q", out)
	}
}

func TestRunRejectsBadMode(t *testing.T) {
	if _, err := execute(t, "run", "--mode", "plantuml", "x"); err == nil {
		t.Error("expected error for unsupported mode")
	}
}

func TestRunThenShow(t *testing.T) {
	cfg := sqliteConfig(t)

	out, err := execute(t, "--config", cfg, "run", "--mode", "mermaid", "approval flow")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var res orchestrator.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("run output is not JSON: %v\n%s", err, out)
	}

	out, err = execute(t, "--config", cfg, "show", "--format", "md", res.RunID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "# Run "+res.RunID) || !strings.Contains(out, "```mermaid") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestShowUnknownRun(t *testing.T) {
	if _, err := execute(t, "--config", sqliteConfig(t), "show", "missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}
