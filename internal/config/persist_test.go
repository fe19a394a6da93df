package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateBinary(t *testing.T) {
	dir := t.TempDir()

	execPath := filepath.Join(dir, "sbatch")
	if err := os.WriteFile(execPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plainPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plainPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		bin  string
		want bool
	}{
		{"empty", "", false},
		{"absolute executable", execPath, true},
		{"absolute non-executable", plainPath, false},
		{"absolute missing", filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateBinary(tt.bin); got != tt.want {
				t.Errorf("ValidateBinary(%q) = %v, want %v", tt.bin, got, tt.want)
			}
		})
	}
}

func TestDetectSchedulerBin(t *testing.T) {
	dir := t.TempDir()
	sbatchPath := filepath.Join(dir, "sbatch")
	if err := os.WriteFile(sbatchPath, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", dir)
	if got := DetectSchedulerBin(); got != sbatchPath {
		t.Errorf("DetectSchedulerBin() = %q, want %q", got, sbatchPath)
	}

	t.Setenv("PATH", t.TempDir())
	if got := DetectSchedulerBin(); got != "" {
		t.Errorf("DetectSchedulerBin() with no sbatch on PATH = %q, want empty", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	LoadDefaults()

	if !Global.SubmitJob {
		t.Error("expected job submission to default to enabled")
	}
	if Global.DependencyMode != "aftercorr" {
		t.Errorf("unexpected default dependency mode: %q", Global.DependencyMode)
	}
	if Global.ResumeDir != ".aslurm" {
		t.Errorf("unexpected default resume dir: %q", Global.ResumeDir)
	}
	if Global.Version != VERSION {
		t.Errorf("unexpected version: %q", Global.Version)
	}
}
