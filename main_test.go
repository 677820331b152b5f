package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"annotator/internal/handlers"
	"annotator/internal/prefetch"
	"annotator/internal/startup"
)

func TestReapInterval(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    time.Duration
	}{
		{30 * time.Minute, time.Minute},
		{2 * time.Minute, 30 * time.Second},
		{time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := reapInterval(tt.timeout); got != tt.want {
			t.Errorf("reapInterval(%v) = %v, want %v", tt.timeout, got, tt.want)
		}
	}
}

func TestSetupRouterRoutes(t *testing.T) {
	router := setupRouter(handlers.New(&startup.Config{MediaRoot: t.TempDir()}))

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatal(err)
	}
	have := map[string]bool{}
	for _, r := range routes {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/sessions",
		"GET /api/sessions",
		"POST /api/sessions/{id}/next",
		"POST /api/sessions/{id}/goto/{index:[0-9]+}",
		"PUT /api/sessions/{id}/labels",
		"POST /api/sessions/{id}/delta",
		"GET /api/sessions/{id}/items/{index:[0-9]+}/file",
		"GET /readyz",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestRouterSessionFlow(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a1.png", "a2.png", "a10.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := handlers.New(&startup.Config{
		MediaRoot:      root,
		Window:         prefetch.DefaultWindow,
		SaveBatchDelay: time.Hour,
	})
	defer h.Shutdown(context.Background())
	srv := httptest.NewServer(setupRouter(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/sessions", "application/json", strings.NewReader(`{"dir":"images","start":"a2.png"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d", resp.StatusCode)
	}

	list, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer list.Body.Close()
	if list.StatusCode != http.StatusOK {
		t.Errorf("list: status = %d", list.StatusCode)
	}

	// index must be numeric for the route to match
	bad, err := http.Post(srv.URL+"/api/sessions/x/goto/abc", "application/json", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusNotFound {
		t.Errorf("goto abc: status = %d, want 404", bad.StatusCode)
	}
}
