package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for baconbot.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Server    ServerConfig    `json:"server"`
	Slack     SlackConfig     `json:"slack"`
	Ledger    LedgerConfig    `json:"ledger"`
	Backend   BackendConfig   `json:"backend"`
	Wallet    WalletConfig    `json:"wallet"`
	RateLimit RateLimitConfig `json:"rateLimit"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	StaticDir              string `json:"staticDir,omitempty"` // serves index.html and assets when set
	ShutdownTimeoutSeconds int    `json:"shutdownTimeoutSeconds"`
}

// SlackConfig configures the slash-command endpoint and the optional Socket Mode listener.
type SlackConfig struct {
	SigningSecret string `json:"signingSecret,omitempty"`
	// AllowUnsigned permits serving the slash-command endpoint without a signing secret.
	// Only meant for local development; requests are then accepted unauthenticated.
	AllowUnsigned bool   `json:"allowUnsigned"`
	BotToken      string `json:"botToken,omitempty"`
	AppToken      string `json:"appToken,omitempty"` // required for Socket Mode
	SocketMode    bool   `json:"socketMode"`
	Command       string `json:"command"`     // e.g. "/bacon"
	CommandPath   string `json:"commandPath"` // HTTP path Slack posts the command to
	TokenName     string `json:"tokenName"`   // display name of the token in replies
}

type LedgerConfig struct {
	Enabled             bool   `json:"enabled"`
	DBPath              string `json:"dbPath"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds"`
}

// BackendConfig points at the ord backend server that performs settlement.
type BackendConfig struct {
	URL            string `json:"url,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type WalletConfig struct {
	Settler           string `json:"settler"` // "http" | "ord"
	APIPassword       string `json:"apiPassword,omitempty"`
	Network           string `json:"network"` // default network for CLI commands
	Rune              string `json:"rune"`    // rune name used in generated batch files
	OrdBinary         string `json:"ordBinary"`
	OrdServerURL      string `json:"ordServerUrl,omitempty"`
	OrdDataDir        string `json:"ordDataDir,omitempty"`
	OrdTimeoutSeconds int    `json:"ordTimeoutSeconds"`
	MaxOutputBytes    int    `json:"maxOutputBytes"`
}

type RateLimitConfig struct {
	PerMinute int `json:"perMinute"`
	Burst     int `json:"burst"`
}

// MetricsConfig configures the Prometheus-compatible metrics endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.baconbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".baconbot"
	}
	return filepath.Join(home, ".baconbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the config file, expands ${VAR} references, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadFile reads the config file as written: ${VAR} references stay literal
// and environment overrides are not applied. Read-modify-write commands use
// it so values that only live in the environment never reach disk.
func LoadFile(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve returns the effective config for a file-level one, as Load would
// build it. raw is not modified.
func Resolve(raw *Config) (*Config, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal config: %w", err)
	}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse expanded config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnv(cfg)

	cfg.Ledger.DBPath = ExpandPath(cfg.Ledger.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Server.StaticDir = ExpandPath(cfg.Server.StaticDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config at path, falling back to defaults plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(ExpandPath(path)); os.IsNotExist(err) {
		cfg, err := finish(Defaults())
		if err != nil {
			return nil, false, err
		}
		return cfg, false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// The file may carry the signing secret and wallet password.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if cfg.Server.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, "server.shutdownTimeoutSeconds must be >= 1")
	}

	if !strings.HasPrefix(cfg.Slack.Command, "/") {
		errs = append(errs, "slack.command must start with '/'")
	}
	if !strings.HasPrefix(cfg.Slack.CommandPath, "/") {
		errs = append(errs, "slack.commandPath must start with '/'")
	}
	if cfg.Slack.SocketMode && (cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "") {
		errs = append(errs, "slack.socketMode requires slack.botToken and slack.appToken")
	}

	if cfg.Ledger.Enabled && cfg.Ledger.DBPath == "" {
		errs = append(errs, "ledger.dbPath is required when the ledger is enabled")
	}
	if cfg.Ledger.WriteTimeoutSeconds < 1 {
		errs = append(errs, "ledger.writeTimeoutSeconds must be >= 1")
	}

	if cfg.Backend.TimeoutSeconds < 1 {
		errs = append(errs, "backend.timeoutSeconds must be >= 1")
	}
	if cfg.Backend.URL != "" && !strings.HasPrefix(cfg.Backend.URL, "http://") && !strings.HasPrefix(cfg.Backend.URL, "https://") {
		errs = append(errs, "backend.url must be an http(s) URL")
	}

	switch cfg.Wallet.Settler {
	case "http", "ord":
		// valid
	default:
		errs = append(errs, "wallet.settler must be one of: http, ord")
	}
	switch cfg.Wallet.Network {
	case "mainnet", "testnet", "regtest":
		// valid
	default:
		errs = append(errs, "wallet.network must be one of: mainnet, testnet, regtest")
	}
	if cfg.Wallet.Rune == "" {
		errs = append(errs, "wallet.rune must not be empty")
	}
	if cfg.Wallet.OrdTimeoutSeconds < 1 {
		errs = append(errs, "wallet.ordTimeoutSeconds must be >= 1")
	}

	if cfg.RateLimit.PerMinute < 1 {
		errs = append(errs, "rateLimit.perMinute must be >= 1")
	}
	if cfg.RateLimit.Burst < 0 {
		errs = append(errs, "rateLimit.burst must be >= 0")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with '/'")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
