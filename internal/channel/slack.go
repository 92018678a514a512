package channel

import (
	"context"
	"fmt"
	"log/slog"

	"baconbot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// slackPoster is the subset of *slack.Client used to answer mentions.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SocketConfig configures the Socket Mode listener.
type SocketConfig struct {
	BotToken   string
	AppToken   string
	Command    string // only this slash command is handled, e.g. "/bacon"
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

// SocketListener receives slash commands and app mentions over Slack Socket Mode.
// Socket Mode payloads arrive over an authenticated websocket, so no request
// signature is involved.
type SocketListener struct {
	botToken   string
	appToken   string
	command    string
	dispatcher *Dispatcher
	logger     *slog.Logger
	poster     slackPoster
	botUID     string
}

func NewSocketListener(cfg SocketConfig) *SocketListener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Command == "" {
		cfg.Command = "/bacon"
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = NewDispatcher(DispatcherConfig{Command: cfg.Command, Logger: cfg.Logger})
	}
	return &SocketListener{
		botToken:   cfg.BotToken,
		appToken:   cfg.AppToken,
		command:    cfg.Command,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

func (s *SocketListener) Name() string { return "slack-socket" }

// Run connects to Slack and handles events until ctx is cancelled.
func (s *SocketListener) Run(ctx context.Context) error {
	api := slack.New(s.botToken, slack.OptionAppLevelToken(s.appToken))
	s.poster = api

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = auth.UserID
	s.logger.Info("slack bot connected", "user", auth.User, "user_id", auth.UserID)

	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				s.logger.Info("slack socket mode connected")

			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok || evt.Request == nil {
					continue
				}
				// The ack payload is delivered to Slack as the command response.
				client.Ack(*evt.Request, s.handleSlashCommand(ctx, cmd))

			case socketmode.EventTypeEventsAPI:
				event, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || evt.Request == nil {
					continue
				}
				client.Ack(*evt.Request)
				s.handleEventsAPI(ctx, event)

			default:
				// Unacknowledged envelopes are redelivered.
				if evt.Request != nil {
					client.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack socket mode disconnecting")
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *SocketListener) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) Reply {
	s.logger.Info("slack slash command",
		"command", cmd.Command,
		"user_id", cmd.UserID,
		"channel_id", cmd.ChannelID,
	)
	if cmd.Command != s.command {
		return Ephemeral(fmt.Sprintf(":x: Unknown command `%s`.", cmd.Command))
	}
	sender := domain.Sender{UserID: cmd.UserID, UserName: cmd.UserName, ChannelID: cmd.ChannelID}
	return s.dispatcher.HandleSlash(ctx, sender, cmd.Text)
}

func (s *SocketListener) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok || ev.User == "" || ev.User == s.botUID {
		return
	}

	s.logger.Info("slack mention received", "user", ev.User, "channel", ev.Channel)

	sender := domain.Sender{UserID: ev.User, ChannelID: ev.Channel}
	text, handled := s.dispatcher.HandleMention(ctx, sender, ev.Text)
	if !handled {
		text = "Unknown command"
	}
	s.send(ctx, ev.Channel, text)
}

func (s *SocketListener) send(ctx context.Context, channelID, text string) {
	if s.poster == nil {
		return
	}
	if _, _, err := s.poster.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false)); err != nil {
		s.logger.Error("slack send failed", "channel", channelID, "err", err)
	}
}
