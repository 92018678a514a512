package domain

import (
	"context"
	"fmt"
)

// Command is a parsed "/bacon @user <amount>" request.
type Command struct {
	Recipient   string  // "@handle" or the canonical "<@UID>" mention
	DisplayName string  // best-effort human-readable recipient name
	Amount      float64 // never negative; zero is left for the caller to reject
}

// Sender identifies who issued a command. Only trusted after signature verification.
type Sender struct {
	UserID    string
	UserName  string
	ChannelID string
}

// TransferRecord is the advisory ledger entry written after a transfer is announced.
type TransferRecord struct {
	ID            string  `json:"id,omitempty"`
	FromUserID    string  `json:"from_user_id"`
	FromUserName  string  `json:"from_user_name"`
	ToUserDisplay string  `json:"to_user_display"`
	Amount        float64 `json:"amount"`
	ChannelID     string  `json:"channel_id"`
	Timestamp     int64   `json:"timestamp"` // unix seconds
}

// Key returns the ledger key for the record: transfer:<sender_id>:<unix_ts>.
func (r TransferRecord) Key() string {
	return fmt.Sprintf("transfer:%s:%d", r.FromUserID, r.Timestamp)
}

// LedgerSink persists serialized transfer records. Writes are best-effort.
type LedgerSink interface {
	Put(ctx context.Context, key string, value []byte) error
}

// LedgerReader lists recorded transfers, newest first.
type LedgerReader interface {
	Recent(ctx context.Context, limit int) ([]TransferRecord, error)
}
