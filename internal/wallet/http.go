package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"baconbot/internal/domain"
)

// ErrNotConfigured is returned when no backend URL is set.
var ErrNotConfigured = errors.New("Backend server not configured")

const maxBackendResponse = 4 << 20

// newHTTPClient returns a pooled client for backend calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}

// HTTPConfig configures an HTTPSettler.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	Client  *http.Client // optional, for tests
}

// HTTPSettler forwards validated intents to the ord backend server.
type HTTPSettler struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ domain.Settler = (*HTTPSettler)(nil)

func NewHTTPSettler(cfg HTTPConfig) *HTTPSettler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = newHTTPClient(cfg.Timeout)
	}
	return &HTTPSettler{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

func (s *HTTPSettler) Name() string { return "http" }

// SendBatch posts the intent to /<network>/send-bacon-tokens. The original
// request body is relayed when present so the backend sees what the caller sent.
func (s *HTTPSettler) SendBatch(ctx context.Context, intent domain.TransferIntent) (domain.SettlementResult, error) {
	body := []byte(intent.Raw)
	if len(body) == 0 {
		var err error
		body, err = json.Marshal(intentPayload(intent))
		if err != nil {
			return domain.SettlementResult{}, fmt.Errorf("encode intent: %w", err)
		}
	}
	return s.do(ctx, http.MethodPost, "/"+intent.Network+"/send-bacon-tokens", body)
}

// Balance fetches /<network>/wallet-balance.
func (s *HTTPSettler) Balance(ctx context.Context, network string) (domain.SettlementResult, error) {
	return s.do(ctx, http.MethodGet, "/"+network+"/wallet-balance", nil)
}

// Ping checks that the backend answers its health endpoint.
func (s *HTTPSettler) Ping(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodGet, "/health", nil)
	return err
}

func (s *HTTPSettler) do(ctx context.Context, method, path string, body []byte) (domain.SettlementResult, error) {
	if s.baseURL == "" {
		return domain.SettlementResult{}, ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponse))
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("read backend response: %w", err)
	}
	s.logger.Debug("backend call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.SettlementResult{}, fmt.Errorf("backend returned %d: %s", resp.StatusCode, snippet(data))
	}
	if !json.Valid(data) {
		return domain.SettlementResult{}, fmt.Errorf("backend returned non-JSON response: %s", snippet(data))
	}
	return domain.SettlementResult{Body: data}, nil
}

func intentPayload(intent domain.TransferIntent) map[string]any {
	p := map[string]any{"fee_rate": intent.FeeRate}
	if intent.BatchYAML != "" {
		p["yaml_content"] = intent.BatchYAML
		p["dry_run"] = intent.DryRun
	}
	if intent.NumUsers > 0 {
		p["num_users"] = intent.NumUsers
	}
	return p
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
