package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetup_CreatesDatedLogFile(t *testing.T) {
	dir := t.TempDir()
	log, err := Setup("debug", dir, 0)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Debug("hello")

	want := filepath.Join(dir, "fabmirror-"+time.Now().Format("2006-01-02")+".log")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestPruneOldLogs(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "fabmirror-2020-01-01.log")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing old log: %v", err)
	}
	stale := time.Now().AddDate(0, 0, -90)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("backdating: %v", err)
	}
	keep := filepath.Join(dir, "fabmirror-recent.log")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing recent log: %v", err)
	}
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing unrelated file: %v", err)
	}
	if err := os.Chtimes(other, stale, stale); err != nil {
		t.Fatalf("backdating: %v", err)
	}

	pruneOldLogs(dir, 30)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale log file survived pruning")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("recent log removed: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestPruneOldLogs_ZeroRetentionKeepsAll(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "fabmirror-2020-01-01.log")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing log: %v", err)
	}
	stale := time.Now().AddDate(-1, 0, 0)
	os.Chtimes(old, stale, stale)

	pruneOldLogs(dir, 0)

	if _, err := os.Stat(old); err != nil {
		t.Errorf("zero retention must not delete, got %v", err)
	}
}
