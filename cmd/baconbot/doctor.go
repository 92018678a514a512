package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"baconbot/internal/config"
	"baconbot/internal/ledger"
	"baconbot/internal/wallet"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your baconbot installation",
		Long: `Verifies that baconbot's configuration, ledger database, Slack settings
and settlement backend are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

type doctor struct {
	out                    io.Writer
	passed, failed, warned int
}

func (d *doctor) pass(check, detail string) {
	fmt.Fprintf(d.out, "  [PASS] %-20s %s\n", check, detail)
	d.passed++
}

func (d *doctor) fail(check, detail string) {
	fmt.Fprintf(d.out, "  [FAIL] %-20s %s\n", check, detail)
	d.failed++
}

func (d *doctor) warn(check, detail string) {
	fmt.Fprintf(d.out, "  [WARN] %-20s %s\n", check, detail)
	d.warned++
}

func runDoctor(ctx context.Context, out io.Writer, cfgPath string) error {
	d := &doctor{out: out}
	fmt.Fprintf(out, "baconbot doctor v%s\n", version)
	fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	// 1. Config file exists
	if _, err := os.Stat(cfgPath); err != nil {
		d.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
		fmt.Fprintf(out, "\nRun 'baconbot init' to create a default configuration.\n")
		return fmt.Errorf("config file not found")
	}
	d.pass("Config file", cfgPath)

	// 2. Config loads and validates
	cfg, err := config.Load(cfgPath)
	if err != nil {
		d.fail("Config validation", err.Error())
		return d.summary()
	}
	d.pass("Config validation", "valid")

	// 3. Slack signing
	switch {
	case cfg.Slack.SigningSecret != "":
		d.pass("Signing secret", "configured")
	case cfg.Slack.AllowUnsigned:
		d.warn("Signing secret", "not set; slash commands are accepted unverified")
	default:
		d.fail("Signing secret", "not set; 'serve' will refuse to start")
	}
	if cfg.Slack.SocketMode {
		d.pass("Socket Mode", "enabled")
	}

	// 4. Ledger writable
	if cfg.Ledger.Enabled {
		if err := checkLedger(ctx, cfg.Ledger.DBPath); err != nil {
			d.fail("Ledger", err.Error())
		} else {
			d.pass("Ledger", cfg.Ledger.DBPath)
		}
	} else {
		d.warn("Ledger", "disabled; transfers are announced but not recorded")
	}

	// 5. Settlement backend
	switch cfg.Wallet.Settler {
	case "ord":
		if path, err := exec.LookPath(cfg.Wallet.OrdBinary); err != nil {
			d.fail("ord binary", fmt.Sprintf("%s not found on PATH", cfg.Wallet.OrdBinary))
		} else {
			d.pass("ord binary", path)
		}
	default:
		if cfg.Backend.URL == "" {
			d.warn("Backend", "backend.url not set; distribution requests will fail")
			break
		}
		settler, err := wallet.New(cfg, logger)
		if err != nil {
			d.fail("Backend", err.Error())
			break
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = wallet.Ping(pingCtx, settler)
		cancel()
		if err != nil {
			d.warn("Backend", fmt.Sprintf("%s unreachable: %v", cfg.Backend.URL, err))
		} else {
			d.pass("Backend", cfg.Backend.URL)
		}
	}
	if cfg.Wallet.APIPassword == "" {
		d.warn("API password", "not set; only dry-run sends are accepted")
	}

	// 6. Port
	if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
		d.warn("HTTP port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
	} else {
		d.pass("HTTP port", fmt.Sprintf(":%d available", cfg.Server.Port))
	}

	// 7. Static assets
	if cfg.Server.StaticDir != "" {
		if info, err := os.Stat(cfg.Server.StaticDir); err != nil || !info.IsDir() {
			d.warn("Static dir", fmt.Sprintf("not a directory: %s", cfg.Server.StaticDir))
		} else {
			d.pass("Static dir", cfg.Server.StaticDir)
		}
	}

	// 8. Log file writable
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			d.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
		} else {
			d.pass("Log file", cfg.General.LogFile)
		}
	}

	return d.summary()
}

func (d *doctor) summary() error {
	fmt.Fprintf(d.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(d.out, "Results: %d passed, %d warnings, %d failed\n", d.passed, d.warned, d.failed)
	if d.failed > 0 {
		fmt.Fprintf(d.out, "\nPlease fix the failed checks before running baconbot.\n")
		return fmt.Errorf("%d check(s) failed", d.failed)
	}
	if d.warned > 0 {
		fmt.Fprintf(d.out, "\nbaconbot should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(d.out, "\nAll checks passed! baconbot is ready to run.\n")
	}
	return nil
}

// checkLedger opens the ledger (running migrations) and pings it.
func checkLedger(ctx context.Context, dbPath string) error {
	store, err := ledger.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	if _, err := store.Count(ctx); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
