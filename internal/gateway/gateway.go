// Package gateway serves the token distribution API: it validates distribution
// requests and forwards them to the configured settler.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"baconbot/internal/domain"
	"baconbot/internal/metrics"
	"baconbot/internal/security"
	"baconbot/internal/wallet"
)

const (
	maxRequestBody = 4 << 20 // a 1MB batch file can double in size once JSON-escaped
	maxLedgerLimit = 500
	maxNumUsers    = 1000
	minFeeRate     = 1
	maxFeeRate     = 1000
)

var (
	ErrInvalidFeeRate  = errors.New("Valid fee_rate is required")
	ErrFeeRateRange    = errors.New("fee_rate must be between 1 and 1000 sat/vB")
	ErrInvalidNumUsers = errors.New("num_users must be a positive integer")
	ErrTooManyUsers    = errors.New("num_users cannot exceed 1000")
	ErrPasswordMissing = errors.New("Password is required for non-dry-run transactions")
	ErrPasswordInvalid = errors.New("Invalid password")
)

// Config configures the gateway.
type Config struct {
	Settler     domain.Settler      // optional; requests fail with 500 when nil
	Ledger      domain.LedgerReader // optional; /api/ledger reports 503 when nil
	APIPassword string              // required for non-dry-run sends
	Limiter     *RateLimiter        // optional
	Version     string
	Logger      *slog.Logger
}

// Gateway holds the distribution API handlers.
type Gateway struct {
	settler  domain.Settler
	ledger   domain.LedgerReader
	password string
	limiter  *RateLimiter
	version  string
	logger   *slog.Logger
}

func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Gateway{
		settler:  cfg.Settler,
		ledger:   cfg.Ledger,
		password: cfg.APIPassword,
		limiter:  cfg.Limiter,
		version:  cfg.Version,
		logger:   cfg.Logger,
	}
}

// Register mounts the gateway routes on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.Handle("POST /mainnet/send-bacon-tokens", g.limit(http.HandlerFunc(g.handleSendMainnet)))
	mux.Handle("POST /regtest/send-bacon-tokens", g.limit(http.HandlerFunc(g.handleSendRegtest)))
	mux.Handle("GET /mainnet/wallet-balance", g.limit(http.HandlerFunc(g.handleBalance)))
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /api/health", g.handleHealth)
	mux.Handle("GET /api/ledger", g.limit(http.HandlerFunc(g.handleLedger)))
}

type sendRequest struct {
	YAMLContent any    `json:"yaml_content"`
	FeeRate     any    `json:"fee_rate"`
	DryRun      *bool  `json:"dry_run"`
	Password    string `json:"password"`
}

type regtestRequest struct {
	NumUsers json.RawMessage `json:"num_users"`
	FeeRate  any `json:"fee_rate"`
}

func (g *Gateway) handleSendMainnet(w http.ResponseWriter, r *http.Request) {
	raw, ok := g.readBody(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	content, _ := req.YAMLContent.(string)
	if err := wallet.ValidateBatch(content, "mainnet"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feeRate, err := parseFeeRate(req.FeeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dryRun := req.DryRun == nil || *req.DryRun
	if !dryRun {
		if req.Password == "" {
			writeError(w, http.StatusBadRequest, ErrPasswordMissing.Error())
			return
		}
		if !security.EqualSecret(req.Password, g.password) {
			g.logger.Warn("non-dry-run send rejected: bad password", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, ErrPasswordInvalid.Error())
			return
		}
	}

	g.logger.Info("forwarding mainnet send", "fee_rate", feeRate, "dry_run", dryRun, "yaml_bytes", len(content))
	g.settle(w, r, domain.TransferIntent{
		Network:   "mainnet",
		BatchYAML: content,
		FeeRate:   feeRate,
		DryRun:    dryRun,
		Raw:       raw,
	})
}

func (g *Gateway) handleSendRegtest(w http.ResponseWriter, r *http.Request) {
	raw, ok := g.readBody(w, r)
	if !ok {
		return
	}
	var req regtestRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	numUsers, err := parseNumUsers(req.NumUsers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feeRate, err := parseFeeRate(req.FeeRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.logger.Info("forwarding regtest send", "num_users", numUsers, "fee_rate", feeRate)
	g.settle(w, r, domain.TransferIntent{
		Network:  "regtest",
		NumUsers: numUsers,
		FeeRate:  feeRate,
		Raw:      raw,
	})
}

func (g *Gateway) handleBalance(w http.ResponseWriter, r *http.Request) {
	if g.settler == nil {
		writeError(w, http.StatusInternalServerError, wallet.ErrNotConfigured.Error())
		return
	}
	res, err := g.settler.Balance(r.Context(), "mainnet")
	if err != nil {
		g.backendError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, res.Body)
}

func (g *Gateway) settle(w http.ResponseWriter, r *http.Request, intent domain.TransferIntent) {
	if g.settler == nil {
		writeError(w, http.StatusInternalServerError, wallet.ErrNotConfigured.Error())
		return
	}
	res, err := g.settler.SendBatch(r.Context(), intent)
	if err != nil {
		g.backendError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, res.Body)
}

func (g *Gateway) backendError(w http.ResponseWriter, err error) {
	g.logger.Error("settlement failed", "err", err)
	switch {
	case errors.Is(err, wallet.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, wallet.ErrNotConfigured.Error())
	case errors.Is(err, wallet.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, "Backend error: "+err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Backend error: "+err.Error())
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "healthy",
		"service":      "BLT-BACON Token Distribution Service",
		"version":      g.version,
		"architecture": "API Gateway -> Backend Ord Server",
	})
}

func (g *Gateway) handleLedger(w http.ResponseWriter, r *http.Request) {
	if g.ledger == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Ledger disabled"})
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLedgerLimit)
	}
	records, err := g.ledger.Recent(r.Context(), limit)
	if err != nil {
		g.logger.Error("ledger read failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Ledger unavailable"})
		return
	}
	if records == nil {
		records = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": records, "count": len(records)})
}

// limit rejects clients that have exhausted their token bucket.
func (g *Gateway) limit(next http.Handler) http.Handler {
	if g.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.limiter.Allow(clientIP(r)) {
			metrics.RateLimited.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(g.limiter.RetryAfter().Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	return raw, true
}

func parseFeeRate(v any) (float64, error) {
	f, ok := v.(float64)
	if !ok || f == 0 {
		return 0, ErrInvalidFeeRate
	}
	if f < minFeeRate || f > maxFeeRate {
		return 0, ErrFeeRateRange
	}
	return f, nil
}

// parseNumUsers accepts only a JSON integer literal: 5.0, 1e2, "5" and
// booleans are rejected.
func parseNumUsers(raw json.RawMessage) (int, error) {
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && raw[0] != '-' {
			return 0, ErrTooManyUsers
		}
		return 0, ErrInvalidNumUsers
	}
	if n <= 0 {
		return 0, ErrInvalidNumUsers
	}
	if n > maxNumUsers {
		return 0, ErrTooManyUsers
	}
	return int(n), nil
}

// clientIP uses the connection's remote address. Forwarding headers are not
// trusted since any client can set them.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
		status = http.StatusInternalServerError
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// WriteNotFound writes the JSON 404 used for unknown API paths.
func WriteNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}
