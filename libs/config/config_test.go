package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIntAndDuration(t *testing.T) {
	t.Setenv("SLOTS_N", "21")
	t.Setenv("SLOTS_TIMEOUT", "750ms")

	n, err := Int("SLOTS_N", 14)
	if err != nil || n != 21 {
		t.Fatalf("expected 21, got %d (%v)", n, err)
	}
	d, err := Duration("SLOTS_TIMEOUT", time.Second)
	if err != nil || d != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s (%v)", d, err)
	}
	if n, _ := Int("SLOTS_MISSING", 14); n != 14 {
		t.Fatalf("expected fallback 14, got %d", n)
	}
}

func TestIntRejectsGarbage(t *testing.T) {
	t.Setenv("SLOTS_N", "fourteen")
	if _, err := Int("SLOTS_N", 14); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("SLOTS_PORT", "70000")
	if _, err := Port("SLOTS_PORT", "8080"); err == nil {
		t.Fatalf("expected invalid port error")
	}
}

func TestBoolAndList(t *testing.T) {
	t.Setenv("SLOTS_FLAG", "yes")
	t.Setenv("SLOTS_LIST", " a, ,b ")
	if !Bool("SLOTS_FLAG", false) {
		t.Fatalf("expected true")
	}
	if Bool("SLOTS_NOPE", true) != true {
		t.Fatalf("expected fallback")
	}
	got := List("SLOTS_LIST")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestLoadKeepsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SLOTS_FROM_FILE=file\nSLOTS_PRESET=file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SLOTS_PRESET", "process")
	t.Setenv("SLOTS_FROM_FILE", "")
	os.Unsetenv("SLOTS_FROM_FILE")

	if err := Load(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("SLOTS_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("SLOTS_PRESET"); got != "process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
}
