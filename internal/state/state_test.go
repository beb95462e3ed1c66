package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileYieldsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "state.yaml")
	st, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st == nil || st.Scopes == nil || len(st.Scopes) != 0 {
		t.Errorf("fresh state = %+v", st)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	st := New()
	st.RecordSuccess("catalog")
	st.RecordFailure("ws:abc", errors.New("capacity paused"))
	if err := st.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if when, ok := got.LastRefreshed("catalog"); !ok || when.IsZero() {
		t.Errorf("catalog success lost: %+v", got.Scopes)
	}
	if _, ok := got.LastRefreshed("ws:abc"); ok {
		t.Error("failed scope must not report as refreshed")
	}
	if ss := got.Scopes["ws:abc"]; ss.Status != "failed" || ss.Error != "capacity paused" {
		t.Errorf("failure record = %+v", ss)
	}
	if got.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped")
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "state.yaml")
	if err := New().Save(path); err != nil {
		t.Fatalf("Save into missing directory: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("state file missing: %v", err)
	}
}

func TestRecordSuccess_OverwritesFailure(t *testing.T) {
	st := New()
	st.RecordFailure("catalog", errors.New("boom"))
	st.RecordSuccess("catalog")

	when, ok := st.LastRefreshed("catalog")
	if !ok {
		t.Fatal("success after failure should report refreshed")
	}
	if time.Since(when) > time.Minute {
		t.Errorf("refreshed timestamp stale: %v", when)
	}
	if st.Scopes["catalog"].Error != "" {
		t.Errorf("error text should clear on success: %+v", st.Scopes["catalog"])
	}
}
