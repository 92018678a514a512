package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8787,
			ShutdownTimeoutSeconds: 10,
		},
		Slack: SlackConfig{
			Command:     "/bacon",
			CommandPath: "/api/slack/bacon",
			TokenName:   "BACON",
		},
		Ledger: LedgerConfig{
			Enabled:             true,
			DBPath:              "~/.baconbot/ledger.db",
			WriteTimeoutSeconds: 3,
		},
		Backend: BackendConfig{
			TimeoutSeconds: 30,
		},
		Wallet: WalletConfig{
			Settler:           "http",
			Network:           "mainnet",
			Rune:              "BACON",
			OrdBinary:         "ord",
			OrdTimeoutSeconds: 120,
			MaxOutputBytes:    65536,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 60,
			Burst:     10,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
