package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"baconbot/internal/domain"
)

const (
	defaultOrdTimeout     = 120 * time.Second
	defaultMaxOutputBytes = 65536
)

// ErrUnsupported is returned for intents the ord CLI cannot serve directly.
var ErrUnsupported = errors.New("operation not supported by ord settler")

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// OrdConfig configures an OrdSettler.
type OrdConfig struct {
	Binary         string // default "ord"
	ServerURL      string // ord server the wallet talks to
	DataDir        string
	Timeout        time.Duration
	MaxOutputBytes int
	Logger         *slog.Logger
	Run            Runner // optional, for tests
}

// OrdSettler drives the local ord wallet CLI.
type OrdSettler struct {
	binary         string
	serverURL      string
	dataDir        string
	timeout        time.Duration
	maxOutputBytes int
	logger         *slog.Logger
	run            Runner
}

var _ domain.Settler = (*OrdSettler)(nil)

func NewOrdSettler(cfg OrdConfig) *OrdSettler {
	if cfg.Binary == "" {
		cfg.Binary = "ord"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOrdTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Run == nil {
		cfg.Run = execRunner
	}
	return &OrdSettler{
		binary:         cfg.Binary,
		serverURL:      cfg.ServerURL,
		dataDir:        cfg.DataDir,
		timeout:        cfg.Timeout,
		maxOutputBytes: cfg.MaxOutputBytes,
		logger:         cfg.Logger,
		run:            cfg.Run,
	}
}

func (s *OrdSettler) Name() string { return "ord" }

// SendBatch writes the batch file to a temp file and runs
// "ord wallet batch --fee-rate N --batch FILE [--dry-run]".
func (s *OrdSettler) SendBatch(ctx context.Context, intent domain.TransferIntent) (domain.SettlementResult, error) {
	if intent.BatchYAML == "" {
		// Generated-recipient intents need key material ord does not manage for us.
		return domain.SettlementResult{}, fmt.Errorf("%w: batch file required", ErrUnsupported)
	}

	f, err := os.CreateTemp("", "bacon-batch-*.yaml")
	if err != nil {
		return domain.SettlementResult{}, fmt.Errorf("create batch file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(intent.BatchYAML); err != nil {
		f.Close()
		return domain.SettlementResult{}, fmt.Errorf("write batch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("write batch file: %w", err)
	}

	args := []string{"batch", "--fee-rate", strconv.FormatFloat(intent.FeeRate, 'f', -1, 64), "--batch", f.Name()}
	if intent.DryRun {
		args = append(args, "--dry-run")
	}
	return s.wallet(ctx, intent.Network, args...)
}

// Balance runs "ord wallet balance".
func (s *OrdSettler) Balance(ctx context.Context, network string) (domain.SettlementResult, error) {
	return s.wallet(ctx, network, "balance")
}

// Args returns the full argument list for an ord wallet subcommand.
func (s *OrdSettler) Args(network string, sub ...string) []string {
	var args []string
	if network == "regtest" {
		args = append(args, "--regtest")
	} else if network != "" && network != "mainnet" {
		args = append(args, "--chain", network)
	}
	if s.dataDir != "" {
		args = append(args, "--data-dir", s.dataDir)
	}
	args = append(args, "wallet")
	if s.serverURL != "" {
		args = append(args, "--server-url", s.serverURL)
	}
	return append(args, sub...)
}

func (s *OrdSettler) wallet(ctx context.Context, network string, sub ...string) (domain.SettlementResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := s.Args(network, sub...)
	s.logger.Info("running ord", "network", network, "subcommand", sub[0])

	out, err := s.run(ctx, s.binary, args...)
	out = bytes.TrimSpace(out)
	if len(out) > s.maxOutputBytes {
		out = append(out[:s.maxOutputBytes:s.maxOutputBytes], []byte("\n... (output truncated)")...)
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.SettlementResult{}, fmt.Errorf("ord %s timed out or cancelled", sub[0])
		}
		return domain.SettlementResult{}, fmt.Errorf("ord %s: %w: %s", sub[0], err, snippet(out))
	}

	if json.Valid(out) {
		return domain.SettlementResult{Body: out}, nil
	}
	body, err := json.Marshal(map[string]any{"success": true, "output": string(out)})
	if err != nil {
		return domain.SettlementResult{}, err
	}
	return domain.SettlementResult{Body: body}, nil
}
