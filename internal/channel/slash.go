package channel

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"baconbot/internal/domain"
	"baconbot/internal/metrics"
	"baconbot/internal/security"

	"github.com/slack-go/slack"
)

const maxSlashBody = 1 << 20 // 1MB

// SlashConfig configures the slash-command HTTP endpoint.
type SlashConfig struct {
	// Verifier checks request signatures. A nil or disabled verifier skips the
	// check; the server refuses that setup unless explicitly allowed.
	Verifier   *security.Verifier
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// SlashHandler serves Slack slash-command webhooks.
type SlashHandler struct {
	verifier   *security.Verifier
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewSlashHandler(cfg SlashConfig) *SlashHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(DispatcherConfig{Logger: cfg.Logger})
	}
	return &SlashHandler{
		verifier:   cfg.Verifier,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

func (h *SlashHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeReply(w, http.StatusMethodNotAllowed, Ephemeral(":x: Method not allowed."))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSlashBody))
	if err != nil {
		h.logger.Warn("slash command body unreadable", "err", err)
		writeReply(w, http.StatusBadRequest, Ephemeral(":x: Could not read request body."))
		return
	}
	defer r.Body.Close()

	if h.verifier.Enabled() {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			metrics.SignatureFailures.Inc()
			h.logger.Warn("slash command rejected", "reason", err, "remote", r.RemoteAddr)
			writeReply(w, http.StatusUnauthorized, Ephemeral(":x: Request signature verification failed."))
			return
		}
	}

	// Slack always posts a form body; accept clients that omit the header.
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		h.logger.Warn("slash command form malformed", "err", err)
		writeReply(w, http.StatusBadRequest, Ephemeral(":x: Could not parse request body."))
		return
	}

	sender := domain.Sender{UserID: cmd.UserID, UserName: cmd.UserName, ChannelID: cmd.ChannelID}
	h.logger.Info("slash command received",
		"command", cmd.Command,
		"user_id", cmd.UserID,
		"channel_id", cmd.ChannelID,
	)
	writeReply(w, http.StatusOK, h.dispatcher.HandleSlash(r.Context(), sender, cmd.Text))
}

func writeReply(w http.ResponseWriter, status int, reply Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(reply) //nolint:errcheck
}
