package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"baconbot/internal/config"
	"baconbot/internal/domain"
	"baconbot/internal/metrics"
)

// New builds the settler selected by wallet.settler, wrapped with metrics.
func New(cfg *config.Config, logger *slog.Logger) (domain.Settler, error) {
	var s domain.Settler
	switch cfg.Wallet.Settler {
	case "", "http":
		s = NewHTTPSettler(HTTPConfig{
			BaseURL: cfg.Backend.URL,
			Timeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
			Logger:  logger,
		})
	case "ord":
		s = NewOrdSettler(OrdConfig{
			Binary:         cfg.Wallet.OrdBinary,
			ServerURL:      cfg.Wallet.OrdServerURL,
			DataDir:        cfg.Wallet.OrdDataDir,
			Timeout:        time.Duration(cfg.Wallet.OrdTimeoutSeconds) * time.Second,
			MaxOutputBytes: cfg.Wallet.MaxOutputBytes,
			Logger:         logger,
		})
	default:
		return nil, fmt.Errorf("unknown wallet.settler %q (want http or ord)", cfg.Wallet.Settler)
	}
	return Instrument(s), nil
}

// Instrument records call counts and latency for every settler call.
func Instrument(s domain.Settler) domain.Settler {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{next: s}
}

type instrumented struct {
	next domain.Settler
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) SendBatch(ctx context.Context, intent domain.TransferIntent) (domain.SettlementResult, error) {
	start := time.Now()
	res, err := i.next.SendBatch(ctx, intent)
	i.observe("send", start, err)
	return res, err
}

func (i *instrumented) Balance(ctx context.Context, network string) (domain.SettlementResult, error) {
	start := time.Now()
	res, err := i.next.Balance(ctx, network)
	i.observe("balance", start, err)
	return res, err
}

// Unwrap returns the underlying settler.
func (i *instrumented) Unwrap() domain.Settler { return i.next }

// ErrPingUnsupported is returned by Ping for settlers without a health check.
var ErrPingUnsupported = errors.New("settler has no health check")

// Pinger is implemented by settlers that can health-check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping health-checks the settler's backend, looking through wrappers such as the
// metrics decorator.
func Ping(ctx context.Context, s domain.Settler) error {
	for s != nil {
		if p, ok := s.(Pinger); ok {
			return p.Ping(ctx)
		}
		u, ok := s.(interface{ Unwrap() domain.Settler })
		if !ok {
			break
		}
		s = u.Unwrap()
	}
	return ErrPingUnsupported
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SettlementsTotal(i.next.Name(), op, result).Inc()
	metrics.SettleLatency.Since(start)
}
