package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/mender/internal/control"
	"github.com/vietddude/mender/internal/core/config"
)

func stubRemotes(t *testing.T) (forgeURL, modelURL string) {
	t.Helper()

	forgeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/context") {
			json.NewEncoder(w).Encode(map[string]any{"repo": "acme/app", "summary": "stub"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"commit_id": "c1", "url": "https://forge.test/c1"})
	}))
	t.Cleanup(forgeSrv.Close)

	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"diff": "", "notes": ""})
	}))
	t.Cleanup(modelSrv.Close)

	return forgeSrv.URL, modelSrv.URL
}

func TestGracefulShutdown(t *testing.T) {
	forgeURL, modelURL := stubRemotes(t)

	// Memory storage, no redis: enough to start every component
	cfg := &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Batch: config.BatchConfig{
			MaxConcurrent: 2,
			ScanInterval:  100 * time.Millisecond,
			BatchSize:     10,
		},
	}
	cfg.Forge.BaseURL = forgeURL
	cfg.Model.BaseURL = modelURL

	resolver, err := control.NewResolver(cfg)
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := resolver.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the poll loop tick a few times on an empty queue
	time.Sleep(300 * time.Millisecond)

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := resolver.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
