package forge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/mender/internal/core/domain"
	"github.com/vietddude/mender/internal/infra/remote"
)

func fastRetry() remote.RetryConfig {
	return remote.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffMultiple: 2.0,
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Retry:   fastRetry(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchContext(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/repos/acme/app/issues/item-1/context" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"repo":"acme/app","summary":"crash on start","snippets":["func main()"]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	got, err := c.FetchContext(context.Background(), domain.WorkItem{
		ID:      "item-1",
		Payload: domain.Payload{Repo: "acme/app"},
	})
	if err != nil {
		t.Fatalf("FetchContext: %v", err)
	}
	if got.Summary != "crash on start" || len(got.Snippets) != 1 {
		t.Errorf("context = %+v", got)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestFetchContextRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"repo":"acme/app","summary":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.FetchContext(context.Background(), domain.WorkItem{ID: "x", Payload: domain.Payload{Repo: "acme/app"}}); err != nil {
		t.Fatalf("FetchContext after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchContextDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.FetchContext(context.Background(), domain.WorkItem{ID: "x", Payload: domain.Payload{Repo: "acme/app"}}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestFinalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fixes" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"commit_id":"c1","url":"https://forge.test/fix/c1"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	handle, err := c.Finalize(context.Background(), &domain.Candidate{ItemID: "item-1", Diff: "@@"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if handle.ID != "c1" {
		t.Errorf("commit = %+v", handle)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
