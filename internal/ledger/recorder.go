package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"baconbot/internal/domain"

	"github.com/google/uuid"
)

// ErrDisabled is reported when no sink is configured.
var ErrDisabled = errors.New("ledger disabled")

// Result describes the outcome of a best-effort ledger write.
// Err is informational; callers never surface it to users.
type Result struct {
	Key string
	Err error
}

// OK reports whether the record was persisted.
func (r Result) OK() bool { return r.Err == nil }

// Recorder writes transfer records to a sink without ever failing the caller.
type Recorder struct {
	sink    domain.LedgerSink
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	// OnResult, when set, observes every write outcome.
	OnResult func(Result)
}

// NewRecorder returns a Recorder. A nil sink yields a recorder that reports
// ErrDisabled for every write.
func NewRecorder(sink domain.LedgerSink, timeout time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Recorder{sink: sink, timeout: timeout, logger: logger, now: time.Now}
}

// Record fills in the record ID and timestamp when missing, serializes it and
// stores it under its ledger key. Failures are logged and returned in Result.
func (r *Recorder) Record(ctx context.Context, rec domain.TransferRecord) Result {
	if r == nil {
		return Result{Key: rec.Key(), Err: ErrDisabled}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = r.now().Unix()
	}
	res := Result{Key: rec.Key()}

	if r.sink == nil {
		res.Err = ErrDisabled
		r.observe(res)
		return res
	}

	value, err := json.Marshal(rec)
	if err != nil {
		res.Err = fmt.Errorf("encode transfer record: %w", err)
	} else {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		res.Err = r.sink.Put(ctx, res.Key, value)
		cancel()
	}

	if res.Err != nil {
		r.logger.Warn("ledger write failed", "key", res.Key, "err", res.Err)
	} else {
		r.logger.Debug("ledger write ok", "key", res.Key)
	}
	r.observe(res)
	return res
}

func (r *Recorder) observe(res Result) {
	if r.OnResult != nil {
		r.OnResult(res)
	}
}
