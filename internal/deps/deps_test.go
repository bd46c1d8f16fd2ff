package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected empty command status: %#v", results[2])
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("Missing() = %#v", missing)
	}
}

func TestWithVersions(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024'\necho 'built with gcc'\n")
	if err := os.WriteFile(ffmpeg, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	broken := filepath.Join(binDir, "ffprobe")
	if err := os.WriteFile(broken, []byte("#!/bin/sh\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	statuses := WithVersions(context.Background(), CheckBinaries(MediaRequirements(ffmpeg, broken)))
	if statuses[0].Version != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Fatalf("unexpected ffmpeg version %q", statuses[0].Version)
	}
	if !statuses[1].Available || statuses[1].Version != "" {
		t.Fatalf("unexpected ffprobe status %#v", statuses[1])
	}
}

func TestMediaRequirements(t *testing.T) {
	reqs := MediaRequirements("ffmpeg", "/opt/ffprobe")
	if len(reqs) != 2 || reqs[0].Command != "ffmpeg" || reqs[1].Command != "/opt/ffprobe" {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
	if reqs[0].Optional || reqs[1].Optional {
		t.Fatal("media tools must be required")
	}
}
