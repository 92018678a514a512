package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"baconbot/internal/channel"
	"baconbot/internal/gateway"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestServer(t *testing.T, staticDir string) *Server {
	t.Helper()
	logger := testLogger()
	return New(Config{
		Host:            "127.0.0.1",
		Port:            0,
		StaticDir:       staticDir,
		CommandPath:     "/api/slack/bacon",
		Slash:           channel.NewSlashHandler(channel.SlashConfig{Logger: logger}),
		Gateway:         gateway.New(gateway.Config{Version: "test", Logger: logger}),
		MetricsEndpoint: "/metrics",
		Logger:          logger,
	})
}

func serve(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_RootRedirects(t *testing.T) {
	rec := serve(newTestServer(t, "").Handler(), "GET", "/", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/index.html" {
		t.Fatalf("expected 302 to /index.html, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestServer_Preflight(t *testing.T) {
	rec := serve(newTestServer(t, "").Handler(), "OPTIONS", "/mainnet/send-bacon-tokens", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "*" ||
		h.Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" ||
		h.Get("Access-Control-Allow-Headers") != "Content-Type" {
		t.Fatalf("unexpected CORS headers: %v", h)
	}
	if rec.Body.Len() != 0 {
		t.Fatal("preflight body should be empty")
	}
}

func TestServer_UnknownPathIsJSON404(t *testing.T) {
	rec := serve(newTestServer(t, "").Handler(), "GET", "/nope", nil)
	if rec.Code != http.StatusNotFound || strings.TrimSpace(rec.Body.String()) != `{"error":"Not found"}` {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_StaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>BACON</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, dir).Handler()

	if rec := serve(h, "GET", "/", nil); rec.Code != http.StatusFound {
		t.Fatalf("root should still redirect, got %d", rec.Code)
	}
	rec := serve(h, "GET", "/index.html", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "BACON") {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_MissingIndexIs404(t *testing.T) {
	rec := serve(newTestServer(t, t.TempDir()).Handler(), "GET", "/index.html", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_StaticAsset(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('bacon')"), 0o644)
	rec := serve(newTestServer(t, dir).Handler(), "GET", "/app.js", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bacon") {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(newTestServer(t, dir).Handler(), "POST", "/app.js", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("POST to static path should be 404, got %d", rec.Code)
	}
}

func TestServer_SlashRouteMounted(t *testing.T) {
	body := strings.NewReader("text=%40alice+50&user_name=bob")
	req := httptest.NewRequest("POST", "/api/slack/bacon", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newTestServer(t, "").Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"in_channel"`) {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_RequestIDAndMetrics(t *testing.T) {
	h := newTestServer(t, "").Handler()
	rec := serve(h, "GET", "/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}

	rec = serve(h, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `baconbot_http_requests_total{route="GET /health",code="200"}`) {
		t.Fatalf("health request not counted:\n%s", rec.Body.String())
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
