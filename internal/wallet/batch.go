// Package wallet validates ord batch files and hands distribution intents to a
// settlement backend: the ord HTTP backend server or the local ord wallet CLI.
package wallet

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"gopkg.in/yaml.v3"
)

// MaxBatchBytes bounds the size of an uploaded batch file.
const MaxBatchBytes = 1_000_000

var (
	ErrEmptyBatch      = errors.New("YAML content must be a non-empty string")
	ErrBatchTooLarge   = errors.New("YAML content too large (max 1MB)")
	ErrInvalidYAML     = errors.New("Invalid YAML format")
	ErrMissingOutputs  = errors.New("YAML must contain 'outputs' key")
	ErrOutputsNotList  = errors.New("outputs must be a list")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrNoRecipients    = errors.New("at least one recipient is required")
	ErrInvalidQuantity = errors.New("rune amount must be positive")
)

// Batch is the subset of the ord batch file format used for rune distribution.
type Batch struct {
	Mode    string   `yaml:"mode"`
	Outputs []Output `yaml:"outputs"`
}

// Output sends runes to one address.
type Output struct {
	Address string            `yaml:"address"`
	Runes   map[string]uint64 `yaml:"runes,omitempty"`
}

// Recipient is one address and the number of rune units it receives.
type Recipient struct {
	Address string
	Amount  uint64
}

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
}

// ValidateAddress checks that addr is a well-formed address for network.
func ValidateAddress(addr, network string) error {
	params, err := NetworkParams(network)
	if err != nil {
		return err
	}
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return fmt.Errorf("%w %q for %s: %v", ErrInvalidAddress, addr, params.Name, err)
	}
	if !decoded.IsForNet(params) {
		return fmt.Errorf("%w %q: not a %s address", ErrInvalidAddress, addr, params.Name)
	}
	return nil
}

// ValidateBatch checks a batch file before it is handed to a settler: size,
// YAML syntax, an outputs list, and the network of every output address.
// Outputs without an address are left for ord to reject.
func ValidateBatch(content, network string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyBatch
	}
	if len(content) > MaxBatchBytes {
		return ErrBatchTooLarge
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(content), &parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return ErrMissingOutputs
	}
	raw, ok := doc["outputs"]
	if !ok {
		return ErrMissingOutputs
	}
	outputs, ok := raw.([]any)
	if !ok {
		return ErrOutputsNotList
	}

	for i, o := range outputs {
		entry, ok := o.(map[string]any)
		if !ok {
			continue
		}
		addr, ok := entry["address"].(string)
		if !ok {
			continue
		}
		if err := ValidateAddress(addr, network); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	return nil
}

// GenerateBatch renders a split-mode batch file sending runeName to every recipient.
// Recipients are validated for network and emitted sorted by address.
func GenerateBatch(runeName, network string, recipients []Recipient) ([]byte, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	sorted := append([]Recipient(nil), recipients...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	b := Batch{Mode: "split"}
	for _, r := range sorted {
		if r.Amount == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, r.Address)
		}
		if err := ValidateAddress(r.Address, network); err != nil {
			return nil, err
		}
		b.Outputs = append(b.Outputs, Output{Address: r.Address, Runes: map[string]uint64{runeName: r.Amount}})
	}
	return yaml.Marshal(&b)
}

// ParseRecipient parses "address=amount".
func ParseRecipient(s string) (Recipient, error) {
	addr, amount, ok := strings.Cut(s, "=")
	if !ok || addr == "" {
		return Recipient{}, fmt.Errorf("recipient %q: expected address=amount", s)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(amount), 10, 64)
	if err != nil || n == 0 {
		return Recipient{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, amount)
	}
	return Recipient{Address: strings.TrimSpace(addr), Amount: n}, nil
}
