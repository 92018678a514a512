package domain

import (
	"context"
	"encoding/json"
)

// TransferIntent is a validated distribution request handed to a Settler.
type TransferIntent struct {
	Network   string  // "mainnet" | "regtest"
	BatchYAML string  // ord batch file contents (mainnet)
	NumUsers  int     // number of generated recipients (regtest)
	FeeRate   float64 // sat/vB
	DryRun    bool
	// Raw is the original request body. HTTP settlers relay it verbatim.
	Raw json.RawMessage
}

// SettlementResult is the settler's JSON response, relayed to the caller as-is.
type SettlementResult struct {
	Body json.RawMessage
}

// Settler performs (or forwards) the actual token distribution.
type Settler interface {
	Name() string
	SendBatch(ctx context.Context, intent TransferIntent) (SettlementResult, error)
	Balance(ctx context.Context, network string) (SettlementResult, error)
}
