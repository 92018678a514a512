package config

import (
	"os"
	"strconv"
)

// ApplyEnv overlays the well-known deployment variables onto cfg. It runs once
// at startup; nothing reads these variables after the config is built.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.Slack.SigningSecret = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		cfg.Slack.AppToken = v
	}
	if v := os.Getenv("ORD_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("WALLET_API_PASSWORD"); v != "" {
		cfg.Wallet.APIPassword = v
	}
	if v := os.Getenv("BACON_LEDGER_DB"); v != "" {
		cfg.Ledger.DBPath = v
	}
	if n, ok := envInt("RATE_LIMIT"); ok {
		cfg.RateLimit.PerMinute = n
	}
	if n, ok := envInt("PORT"); ok {
		cfg.Server.Port = n
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
