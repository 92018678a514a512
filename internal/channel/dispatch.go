// Package channel connects Slack to the BACON command flow: the HTTP slash-command
// endpoint, the Socket Mode listener and the dispatcher they share.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"baconbot/internal/command"
	"baconbot/internal/domain"
	"baconbot/internal/ledger"
	"baconbot/internal/metrics"

	"github.com/slack-go/slack"
)

// Reply is the JSON body Slack renders for a slash command.
type Reply struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// Ephemeral is shown only to the user who ran the command.
func Ephemeral(text string) Reply {
	return Reply{ResponseType: slack.ResponseTypeEphemeral, Text: text}
}

// InChannel is shown to everyone in the channel.
func InChannel(text string) Reply {
	return Reply{ResponseType: slack.ResponseTypeInChannel, Text: text}
}

// IsPublic reports whether the reply is visible to the whole channel.
func (r Reply) IsPublic() bool { return r.ResponseType == slack.ResponseTypeInChannel }

// TransferRecorder persists announced transfers. Implemented by *ledger.Recorder.
type TransferRecorder interface {
	Record(ctx context.Context, rec domain.TransferRecord) ledger.Result
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Command   string           // slash command name shown in usage text, e.g. "/bacon"
	TokenName string           // e.g. "BACON"
	Recorder  TransferRecorder // optional
	Logger    *slog.Logger
	Now       func() time.Time
}

// Dispatcher turns command text from an authenticated sender into a reply.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	command   string
	tokenName string
	recorder  TransferRecorder
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Command == "" {
		cfg.Command = "/bacon"
	}
	if cfg.TokenName == "" {
		cfg.TokenName = "BACON"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		command:   cfg.Command,
		tokenName: cfg.TokenName,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
}

func (d *Dispatcher) usage() string {
	return fmt.Sprintf("*Usage:* `%s @user <amount>`\nExample: `%s @alice 50`", d.command, d.command)
}

// HandleSlash runs the slash-command flow: usage on empty text, parse, positivity
// check, advisory ledger write, announcement.
func (d *Dispatcher) HandleSlash(ctx context.Context, sender domain.Sender, text string) Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.CommandsTotal("usage").Inc()
		return Ephemeral(":bacon: " + d.usage())
	}

	cmd, ok := command.Parse(text)
	if !ok {
		metrics.CommandsTotal("parse_error").Inc()
		d.logger.Debug("command not parsed", "user_id", sender.UserID, "text", text)
		return Ephemeral(fmt.Sprintf(":x: Could not parse `%s`.\n%s", text, d.usage()))
	}
	if cmd.Amount <= 0 {
		metrics.CommandsTotal("invalid_amount").Inc()
		return Ephemeral(":x: Amount must be greater than 0.")
	}

	d.record(ctx, sender, cmd.DisplayName, cmd.Amount)
	metrics.CommandsTotal("announced").Inc()

	name := sender.UserName
	if name == "" {
		name = "someone"
	}
	d.logger.Info("transfer announced",
		"from_user_id", sender.UserID,
		"to", cmd.Recipient,
		"amount", cmd.Amount,
		"channel_id", sender.ChannelID,
	)
	return InChannel(fmt.Sprintf(":bacon: *@%s* sent *%s %s* to *%s*! Keep contributing to earn more! :rocket:",
		name, FormatAmount(cmd.Amount), d.tokenName, cmd.Recipient))
}

// HandleMention runs the legacy "distribute <amount> bacon @user" mention command.
// ok is false when the mention is some other command.
func (d *Dispatcher) HandleMention(ctx context.Context, sender domain.Sender, text string) (reply string, ok bool) {
	dist, err := command.ParseDistribute(text)
	switch {
	case errors.Is(err, command.ErrNotDistribute):
		return "", false
	case err != nil:
		metrics.CommandsTotal("parse_error").Inc()
		return "Invalid command format. Use /distribute <amount> bacon @<user>", true
	case dist.Amount == 0:
		metrics.CommandsTotal("invalid_amount").Inc()
		return ":x: Amount must be greater than 0.", true
	}

	d.record(ctx, sender, dist.User, float64(dist.Amount))
	metrics.CommandsTotal("distributed").Inc()
	d.logger.Info("distribution announced", "from_user_id", sender.UserID, "to", dist.User, "amount", dist.Amount)
	return fmt.Sprintf("Distributed %d bacon to %s", dist.Amount, dist.User), true
}

// record writes the advisory ledger entry. Its outcome never changes the reply.
func (d *Dispatcher) record(ctx context.Context, sender domain.Sender, to string, amount float64) {
	if d.recorder == nil {
		metrics.LedgerWritesTotal("disabled").Inc()
		return
	}
	res := d.recorder.Record(ctx, domain.TransferRecord{
		FromUserID:    sender.UserID,
		FromUserName:  sender.UserName,
		ToUserDisplay: to,
		Amount:        amount,
		ChannelID:     sender.ChannelID,
		Timestamp:     d.now().Unix(),
	})
	switch {
	case res.OK():
		metrics.LedgerWritesTotal("ok").Inc()
	case errors.Is(res.Err, ledger.ErrDisabled):
		metrics.LedgerWritesTotal("disabled").Inc()
	default:
		metrics.LedgerWritesTotal("error").Inc()
	}
}

// FormatAmount renders an amount without trailing zeros: 50, 12.5, 0.25.
func FormatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
