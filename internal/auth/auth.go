// Package auth defines the credential contract for remote calls. Token
// acquisition, caching, and refresh live outside fabmirror; the crawler and
// the SQL executor only ever see a TokenProvider.
package auth

import "context"

// Fabric delegated scopes required for catalog crawling.
var FabricScopes = []string{
	"https://api.fabric.microsoft.com/Workspace.Read.All",
	"https://api.fabric.microsoft.com/Item.Read.All",
}

// SQLScope authorizes trial queries and introspection against SQL endpoints.
const SQLScope = "https://database.windows.net/.default"

// TokenProvider supplies bearer tokens for the given scopes. Implementations
// own expiry and refresh; callers treat every returned token as fresh.
type TokenProvider interface {
	Token(ctx context.Context, scopes []string) (string, error)
}

// StaticProvider returns one pre-acquired token for every scope set. Useful
// for tests and for deployments where a sidecar broker mints tokens.
type StaticProvider struct {
	Value string
}

func (p StaticProvider) Token(_ context.Context, _ []string) (string, error) {
	return p.Value, nil
}

// TokenFunc adapts a plain function to TokenProvider.
type TokenFunc func(ctx context.Context, scopes []string) (string, error)

func (f TokenFunc) Token(ctx context.Context, scopes []string) (string, error) {
	return f(ctx, scopes)
}
