package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"baconbot/internal/config"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.baconbot.serve"
	systemdUnit  = "baconbot.service"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install or remove baconbot as a user service (launchd/systemd)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install 'baconbot serve' as a background service",
		Long:  "Generates and installs a service file that runs 'baconbot serve' on login and restarts it on failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			cfgPath := resolveConfigPath()

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(cmd.OutOrStdout(), home, execPath, cfgPath)
			case "linux":
				return installSystemd(cmd.OutOrStdout(), home, execPath, cfgPath)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the baconbot service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			var path string
			switch runtime.GOOS {
			case "darwin":
				path = launchdPath(home)
			case "linux":
				path = systemdPath(home)
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("remove service file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service uninstalled: %s\n", path)
			return nil
		},
	})
	return cmd
}

func launchdPath(home string) string {
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdPath(home string) string {
	return filepath.Join(home, ".config", "systemd", "user", systemdUnit)
}

// renderService fills a service template.
func renderService(tmpl, execPath, cfgPath, logDir string) string {
	return strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(logDir, "baconbot.log"),
		"{{ERR_LOG}}", filepath.Join(logDir, "baconbot-error.log"),
	).Replace(tmpl)
}

func installLaunchd(out io.Writer, home, execPath, cfgPath string) error {
	plistPath := launchdPath(home)
	logDir := filepath.Join(config.DefaultConfigDir(), "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(plistPath, []byte(renderService(launchdTemplate, execPath, cfgPath, logDir)), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(out, "Service installed: %s\n", plistPath)
	fmt.Fprintf(out, "To start: launchctl load %s\n", plistPath)
	fmt.Fprintf(out, "To stop:  launchctl unload %s\n", plistPath)
	return nil
}

func installSystemd(out io.Writer, home, execPath, cfgPath string) error {
	unitPath := systemdPath(home)
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(unitPath, []byte(renderService(systemdTemplate, execPath, cfgPath, "")), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(out, "Service installed: %s\n", unitPath)
	fmt.Fprintf(out, "To start:  systemctl --user start baconbot\n")
	fmt.Fprintf(out, "To enable: systemctl --user enable baconbot\n")
	fmt.Fprintf(out, "To stop:   systemctl --user stop baconbot\n")
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=baconbot Slack /bacon gateway
After=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} serve --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
