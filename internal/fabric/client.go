package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fabmirror/fabmirror/internal/auth"
)

// DefaultBaseURL is the public Fabric REST root.
const DefaultBaseURL = "https://api.fabric.microsoft.com/v1/"

// Client is the authenticated Fabric REST client. All listing calls follow
// continuationToken pagination until the server stops returning one.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  auth.TokenProvider
	retries int
	log     *slog.Logger
}

// Options tunes the client; zero values fall back to defaults. Retries
// counts extra attempts after the first, so Retries=3 allows four requests.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// NewClient builds a Client around a token provider.
func NewClient(tokens auth.TokenProvider, opts Options, log *slog.Logger) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", raw, err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		retries: retries,
		log:     log,
	}, nil
}

// httpError is a non-2xx response. Permanent: retrying the same request
// would return the same status.
type httpError struct {
	status int
	path   string
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("fabric API %s returned %d: %s", e.path, e.status, e.body)
}

func (c *Client) do(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	token, err := c.tokens.Token(ctx, auth.FabricScopes)
	if err != nil {
		return nil, fmt.Errorf("acquiring API token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(req)
}

// getJSON performs a GET with exponential-backoff retry on transport errors.
// Non-2xx statuses are permanent and surface as *httpError without retry.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second

	op := func() error {
		resp, err := c.do(ctx, path, params)
		if err != nil {
			c.log.Warn("fabric API request failed, retrying", "path", path, "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
			return backoff.Permanent(&httpError{status: resp.StatusCode, path: path, body: string(body)})
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.retries)), ctx))
}

// get2xx performs a single GET and treats 401/403/404 as a soft miss:
// the caller gets (false, nil) and moves on to its next strategy. 401/403
// usually means a missing delegated scope rather than a broken catalog.
func (c *Client) get2xx(ctx context.Context, path string, out any) (bool, error) {
	resp, err := c.do(ctx, path, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		c.log.Warn("fabric API denied request", "path", path, "status", resp.StatusCode, "body", string(body))
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return false, &httpError{status: resp.StatusCode, path: path, body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Some preview endpoints return non-object payloads; treat as a miss.
		return false, nil
	}
	return true, nil
}

type workspacePage struct {
	Value             []WorkspaceRaw `json:"value"`
	ContinuationToken string         `json:"continuationToken"`
}

type itemPage struct {
	Value             []ItemRaw `json:"value"`
	ContinuationToken string    `json:"continuationToken"`
}

// ListWorkspaces returns every workspace visible to the token, across all
// pages.
func (c *Client) ListWorkspaces(ctx context.Context) ([]WorkspaceRaw, error) {
	var all []WorkspaceRaw
	params := url.Values{}
	for {
		var page workspacePage
		if err := c.getJSON(ctx, "workspaces", params, &page); err != nil {
			return nil, fmt.Errorf("listing workspaces: %w", err)
		}
		all = append(all, page.Value...)
		if page.ContinuationToken == "" {
			return all, nil
		}
		params.Set("continuationToken", page.ContinuationToken)
	}
}

// GetWorkspace fetches the detail record of one workspace. A miss (404 or
// denied) returns nil without error.
func (c *Client) GetWorkspace(ctx context.Context, workspaceID string) (*WorkspaceRaw, error) {
	var w WorkspaceRaw
	ok, err := c.get2xx(ctx, "workspaces/"+workspaceID, &w)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

// ListItems returns every item of a workspace, optionally filtered by type.
func (c *Client) ListItems(ctx context.Context, workspaceID, typeFilter string) ([]ItemRaw, error) {
	var all []ItemRaw
	params := url.Values{}
	if typeFilter != "" {
		params.Set("type", typeFilter)
	}
	for {
		var page itemPage
		if err := c.getJSON(ctx, "workspaces/"+workspaceID+"/items", params, &page); err != nil {
			return nil, fmt.Errorf("listing items of workspace %s: %w", workspaceID, err)
		}
		all = append(all, page.Value...)
		if page.ContinuationToken == "" {
			return all, nil
		}
		params.Set("continuationToken", page.ContinuationToken)
	}
}
