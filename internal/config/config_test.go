package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.txt"); err == nil {
		t.Fatalf("Load of a missing file should fail")
	}
}

func TestLoadClampsNumCPU(t *testing.T) {
	path := writeConfig(t, "num-cpu 999\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NumCPU != 128 {
		t.Errorf("NumCPU = %d; want 128 (clamped)", cfg.NumCPU)
	}
}

func TestLoadRejectsInvalidScheduler(t *testing.T) {
	path := writeConfig(t, "scheduler priority\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("Load should reject an unknown scheduler policy")
	}
}

func TestLoadCoercesMaxInsUpToMinIns(t *testing.T) {
	path := writeConfig(t, "min-ins 10\nmax-ins 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxIns != 10 {
		t.Errorf("MaxIns = %d; want 10 (coerced up to MinIns)", cfg.MaxIns)
	}
}

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeConfig(t, "# a comment\n\nnum-cpu 4\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.NumCPU != 4 {
		t.Errorf("NumCPU = %d; want 4", cfg.NumCPU)
	}
}

func TestLoadHandlesQuotedValue(t *testing.T) {
	path := writeConfig(t, "scheduler \"FCFS\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler != "fcfs" {
		t.Errorf("Scheduler = %q; want fcfs", cfg.Scheduler)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	cases := map[uint32]bool{0: false, 1: true, 2: true, 3: false, 256: true, 4096: true, 4097: false}
	for v, want := range cases {
		if got := IsPowerOfTwo(v); got != want {
			t.Errorf("IsPowerOfTwo(%d) = %v; want %v", v, got, want)
		}
	}
}
