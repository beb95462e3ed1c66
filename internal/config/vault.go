package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/vault/api"
)

// resolveVault reads one field of a Vault secret for a `${VAULT:path#key}`
// reference. The client is configured entirely from VAULT_ADDR and
// VAULT_TOKEN; fabmirror never persists Vault credentials itself.
func resolveVault(ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok {
		return "", fmt.Errorf("vault reference %q must look like path#key", ref)
	}

	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return "", fmt.Errorf("resolving %q: VAULT_ADDR is not set", ref)
	}
	token := os.Getenv("VAULT_TOKEN")
	if token == "" {
		return "", fmt.Errorf("resolving %q: VAULT_TOKEN is not set", ref)
	}

	cfg := api.DefaultConfig()
	cfg.Address = addr
	client, err := api.NewClient(cfg)
	if err != nil {
		return "", fmt.Errorf("building vault client: %w", err)
	}
	client.SetToken(token)

	secret, err := client.Logical().Read(path)
	if err != nil {
		return "", fmt.Errorf("reading vault path %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault path %s holds no secret", path)
	}

	// KV v2 nests the payload one level down.
	fields := secret.Data
	if nested, ok := fields["data"].(map[string]any); ok {
		fields = nested
	}

	val, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("vault path %s has no field %q", path, key)
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("vault field %q at %s is not a string", key, path)
	}
	return s, nil
}
