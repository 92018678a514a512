package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"baconbot/internal/channel"
	"baconbot/internal/domain"
	"baconbot/internal/gateway"
	"baconbot/internal/ledger"
	"baconbot/internal/wallet"

	"github.com/spf13/cobra"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the transfer ledger",
	}

	var limit int
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent transfers, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Ledger.Enabled {
				return fmt.Errorf("ledger is disabled (ledger.enabled=false)")
			}
			store, err := ledger.Open(cfg.Ledger.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				data, _ := json.MarshalIndent(records, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", ledger.DefaultListLimit, "maximum number of records")
	list.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	cmd.AddCommand(list)
	return cmd
}

func printRecords(w io.Writer, records []domain.TransferRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No transfers recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFROM\tTO\tAMOUNT\tCHANNEL")
	for _, r := range records {
		from := r.FromUserName
		if from == "" {
			from = r.FromUserID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			from, r.ToUserDisplay,
			channel.FormatAmount(r.Amount), r.ChannelID)
	}
	return tw.Flush()
}

func sendCmd() *cobra.Command {
	var (
		batchFile string
		to        []string
		feeRate   float64
		dryRun    bool
		network   string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Validate a batch and hand it to the configured settler",
		Long: `Sends a BACON distribution through the configured settler. Either pass an
ord batch file with --batch, or build one from --to address=amount pairs.
Dry-run is the default; pass --dry-run=false to broadcast.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if network == "" {
				network = cfg.Wallet.Network
			}
			if feeRate < 1 || feeRate > 1000 {
				return gateway.ErrFeeRateRange
			}

			content, err := batchContent(batchFile, to, cfg.Wallet.Rune, network)
			if err != nil {
				return err
			}
			if err := wallet.ValidateBatch(content, network); err != nil {
				return fmt.Errorf("invalid batch: %w", err)
			}

			settler, err := wallet.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := settler.SendBatch(ctx, domain.TransferIntent{
				Network:   network,
				BatchYAML: content,
				FeeRate:   feeRate,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Body)
		},
	}
	cmd.Flags().StringVarP(&batchFile, "batch", "b", "", "ord batch YAML file")
	cmd.Flags().StringArrayVar(&to, "to", nil, "recipient as address=amount (repeatable)")
	cmd.Flags().Float64Var(&feeRate, "fee-rate", 1, "fee rate in sat/vB")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "simulate without broadcasting")
	cmd.Flags().StringVar(&network, "network", "", "bitcoin network (default: wallet.network)")
	cmd.MarkFlagsMutuallyExclusive("batch", "to")
	cmd.MarkFlagsOneRequired("batch", "to")
	return cmd
}

// batchContent reads the batch file or generates one from recipient pairs.
func batchContent(batchFile string, to []string, runeName, network string) (string, error) {
	if batchFile != "" {
		data, err := os.ReadFile(batchFile)
		if err != nil {
			return "", fmt.Errorf("read batch file: %w", err)
		}
		return string(data), nil
	}
	recipients := make([]wallet.Recipient, 0, len(to))
	for _, s := range to {
		r, err := wallet.ParseRecipient(s)
		if err != nil {
			return "", err
		}
		recipients = append(recipients, r)
	}
	data, err := wallet.GenerateBatch(runeName, network, recipients)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func balanceCmd() *cobra.Command {
	var network string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Query the wallet balance through the configured settler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if network == "" {
				network = cfg.Wallet.Network
			}
			settler, err := wallet.New(cfg, logger)
			if err != nil {
				return err
			}
			res, err := settler.Balance(cmd.Context(), network)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Body)
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "bitcoin network (default: wallet.network)")
	return cmd
}

func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(append(body, '\n'))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
