package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	// HeaderTimestamp and HeaderSignature are the headers Slack signs requests with.
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"

	signatureVersion = "v0"

	// MaxRequestSkew bounds how far a request timestamp may drift from now,
	// in either direction, before the request is treated as a replay.
	MaxRequestSkew = 300 * time.Second
)

var (
	ErrMissingSignature = errors.New("signature header is required")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	ErrTimestampExpired = errors.New("signature timestamp outside allowed skew")
)

// VerifySlackSignature reports whether signature is the v0 HMAC-SHA256 of body
// for the given timestamp. body must be the raw bytes as received.
func VerifySlackSignature(secret string, body []byte, timestamp, signature string, now time.Time) bool {
	return checkSignature(secret, body, timestamp, signature, now) == nil
}

// SignSlackRequest computes the "v0=<hex>" signature Slack would send.
func SignSlackRequest(secret string, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

func checkSignature(secret string, body []byte, timestamp, signature string, now time.Time) error {
	ts, err := strconv.ParseFloat(timestamp, 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return ErrInvalidTimestamp
	}

	nowSec := float64(now.UnixNano()) / float64(time.Second)
	if math.Abs(nowSec-ts) > MaxRequestSkew.Seconds() {
		return ErrTimestampExpired
	}

	if signature == "" {
		return ErrMissingSignature
	}

	expected := SignSlackRequest(secret, body, timestamp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Verifier checks Slack request signatures against a fixed signing secret.
type Verifier struct {
	secret string
	now    func() time.Time
}

// NewVerifier returns a Verifier. A nil clock defaults to time.Now.
func NewVerifier(secret string, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: secret, now: now}
}

// Enabled reports whether a signing secret is configured.
func (v *Verifier) Enabled() bool { return v != nil && v.secret != "" }

// Verify validates the signature headers against body. The returned error
// names the failed check for logging only; callers must not echo it to clients.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	return checkSignature(v.secret, body, headers.Get(HeaderTimestamp), headers.Get(HeaderSignature), v.now())
}
