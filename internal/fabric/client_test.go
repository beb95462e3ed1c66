package fabric

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fabmirror/fabmirror/internal/auth"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(&auth.StaticProvider{Value: "test-token"}, Options{
		BaseURL: srv.URL + "/v1/",
		Retries: 2,
	}, nil)
	if err != nil {
		t.Fatalf("building client: %v", err)
	}
	return c, srv
}

func TestListWorkspaces_Pagination(t *testing.T) {
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		calls++
		switch r.URL.Query().Get("continuationToken") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"value":             []map[string]string{{"id": "ws-1", "displayName": "First"}},
				"continuationToken": "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]string{{"id": "ws-2", "displayName": "Second"}},
			})
		default:
			t.Errorf("unexpected token %q", r.URL.Query().Get("continuationToken"))
		}
	}))

	ws, err := c.ListWorkspaces(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(ws) != 2 || ws[0].ID != "ws-1" || ws[1].ID != "ws-2" {
		t.Errorf("pages not concatenated in order: %+v", ws)
	}
}

func TestListItems_TypeFilter(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("type"); got != "Warehouse" {
			t.Errorf("type param = %q, want Warehouse", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]string{{"id": "item-1", "type": "Warehouse"}},
		})
	}))

	items, err := c.ListItems(context.Background(), "ws-1", "Warehouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != "item-1" {
		t.Errorf("items = %+v", items)
	}
}

func TestGetJSON_PermanentOnStatus(t *testing.T) {
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := c.ListWorkspaces(context.Background())
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if calls != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}

func TestGetJSON_RetriesCountExtraAttempts(t *testing.T) {
	// Drop the connection so the failure is transport-level and retried.
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("response writer does not support hijacking")
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Fatalf("hijacking connection: %v", err)
		}
		conn.Close()
	}))

	if _, err := c.ListWorkspaces(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
	// Retries=2 means two extra attempts on top of the first.
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
}

func TestGet2xx_SoftMisses(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "denied", status)
		}))
		var out map[string]any
		ok, err := c.get2xx(context.Background(), "workspaces/x", &out)
		if err != nil {
			t.Errorf("status %d: unexpected error: %v", status, err)
		}
		if ok {
			t.Errorf("status %d: expected soft miss", status)
		}
	}
}

func TestGet2xx_ErrorOnServerFailure(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	var out map[string]any
	ok, err := c.get2xx(context.Background(), "workspaces/x", &out)
	if err == nil || ok {
		t.Errorf("expected hard error on 500, got ok=%v err=%v", ok, err)
	}
}

func TestGetWorkspace_Miss(t *testing.T) {
	c, _ := testClient(t, http.NotFoundHandler())
	w, err := c.GetWorkspace(context.Background(), "nope")
	if err != nil || w != nil {
		t.Errorf("404 should yield nil, nil; got %v, %v", w, err)
	}
}
