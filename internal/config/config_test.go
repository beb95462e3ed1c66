package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabmirror.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
version: 1
fabric:
  token: plain-token
catalog:
  backend: postgres
  dsn: postgres://localhost/fabmirror
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Fabric.BaseURL != "https://api.fabric.microsoft.com/v1/" {
		t.Errorf("base url default = %q", cfg.Fabric.BaseURL)
	}
	if cfg.Fabric.TimeoutSeconds != 45 || cfg.Fabric.Retries != 3 {
		t.Errorf("fabric defaults = %+v", cfg.Fabric)
	}
	if cfg.SQL.TimeoutSeconds != 60 {
		t.Errorf("sql timeout default = %d", cfg.SQL.TimeoutSeconds)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.RetentionDays != 30 {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if cfg.Catalog.Database != "fabmirror" {
		t.Errorf("catalog database default = %q", cfg.Catalog.Database)
	}
}

func TestLoad_VersionMismatch(t *testing.T) {
	path := writeConfig(t, "version: 99\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("err = %v, want version mismatch", err)
	}
}

func TestLoad_EnvSecret(t *testing.T) {
	t.Setenv("FABMIRROR_TEST_TOKEN", "resolved-secret")
	path := writeConfig(t, `
version: 1
fabric:
  token: ${ENV:FABMIRROR_TEST_TOKEN}
catalog:
  backend: postgres
  dsn: postgres://localhost/fabmirror
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fabric.Token != "resolved-secret" {
		t.Errorf("token = %q, want resolved-secret", cfg.Fabric.Token)
	}
}

func TestLoad_EnvSecretMissing(t *testing.T) {
	path := writeConfig(t, `
version: 1
fabric:
  token: ${ENV:FABMIRROR_DEFINITELY_UNSET}
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "not set") {
		t.Errorf("err = %v, want unset env error", err)
	}
}

func TestResolveValue(t *testing.T) {
	if got, err := ResolveValue("no-refs-here"); err != nil || got != "no-refs-here" {
		t.Errorf("plain value = %q, %v", got, err)
	}
	if _, err := ResolveValue("${NOPE:x}"); err != nil {
		// Unknown prefixes fail the pattern and pass through untouched.
		t.Errorf("unmatched pattern should pass through, got %v", err)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "fabmirror.yaml")
	cfg := &Config{
		Version: CurrentVersion,
		Fabric:  FabricConfig{Token: "tok"},
		Catalog: CatalogConfig{Backend: "mongodb", DSN: "mongodb://localhost", Database: "cat"},
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("config saved with mode %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Catalog.Backend != "mongodb" || got.Catalog.Database != "cat" {
		t.Errorf("roundtrip = %+v", got.Catalog)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should pass through, got %q", got)
	}
}
