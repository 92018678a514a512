package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"baconbot/internal/config"

	"github.com/spf13/cobra"
)

var knownSettlers = []struct {
	ID   string
	Desc string
}{{"http", "forward to an ord backend server over HTTP"}, {"ord", "run the local ord wallet CLI"}}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup: Slack → settlement backend → save config",
		Long:  "Guides you through the Slack signing secret, optional Socket Mode tokens and the settlement backend. Writes config to the path used by --config or default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

func runSetup(in io.Reader, out io.Writer, cfgPath string) error {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(in)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(out, " [%s]: ", def)
		} else {
			fmt.Fprint(out, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" {
			return def, nil
		}
		return s, nil
	}
	yes := func(s string) bool {
		s = strings.ToLower(s)
		return s == "y" || s == "yes"
	}

	// Step 1: Slack
	fmt.Fprintln(out, "\n--- Step 1: Slack ---")
	fmt.Fprint(out, "Signing secret (or env var, e.g. ${SLACK_SIGNING_SECRET})")
	secret, err := prompt(orDefault(cfg.Slack.SigningSecret, "${SLACK_SIGNING_SECRET}"))
	if err != nil {
		return err
	}
	cfg.Slack.SigningSecret = secret

	fmt.Fprint(out, "Slash command")
	if cfg.Slack.Command, err = prompt(cfg.Slack.Command); err != nil {
		return err
	}

	fmt.Fprint(out, "Enable Socket Mode? (y/n)")
	sm, err := prompt(map[bool]string{true: "y", false: "n"}[cfg.Slack.SocketMode])
	if err != nil {
		return err
	}
	cfg.Slack.SocketMode = yes(sm)
	if cfg.Slack.SocketMode {
		fmt.Fprint(out, "Bot token (xoxb-...)")
		if cfg.Slack.BotToken, err = prompt(orDefault(cfg.Slack.BotToken, "${SLACK_BOT_TOKEN}")); err != nil {
			return err
		}
		fmt.Fprint(out, "App-level token (xapp-...)")
		if cfg.Slack.AppToken, err = prompt(orDefault(cfg.Slack.AppToken, "${SLACK_APP_TOKEN}")); err != nil {
			return err
		}
	}

	// Step 2: Settlement
	fmt.Fprintln(out, "\n--- Step 2: Settlement backend ---")
	for i, s := range knownSettlers {
		fmt.Fprintf(out, "  %d) %s: %s\n", i+1, s.ID, s.Desc)
	}
	fmt.Fprint(out, "Choose settler (1-2)")
	def := "1"
	if cfg.Wallet.Settler == "ord" {
		def = "2"
	}
	choice, err := prompt(def)
	if err != nil {
		return err
	}
	cfg.Wallet.Settler = knownSettlers[0].ID
	if choice == "2" || choice == "ord" {
		cfg.Wallet.Settler = knownSettlers[1].ID
	}

	if cfg.Wallet.Settler == "http" {
		fmt.Fprint(out, "Backend URL")
		if cfg.Backend.URL, err = prompt(orDefault(cfg.Backend.URL, "http://localhost:9000")); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, "ord binary")
		if cfg.Wallet.OrdBinary, err = prompt(cfg.Wallet.OrdBinary); err != nil {
			return err
		}
	}
	fmt.Fprint(out, "Wallet API password (or env var)")
	if cfg.Wallet.APIPassword, err = prompt(orDefault(cfg.Wallet.APIPassword, "${WALLET_API_PASSWORD}")); err != nil {
		return err
	}
	fmt.Fprintf(out, "  Using settler: %s\n", cfg.Wallet.Settler)

	// Save
	if _, err := config.Resolve(cfg); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConfig saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Next: run 'baconbot doctor', then 'baconbot serve'.")
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
