package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"worklogbot/internal/app"
	"worklogbot/internal/apperr"
	"worklogbot/internal/config"
	"worklogbot/internal/domain"
	"worklogbot/internal/httpx"
	"worklogbot/internal/parser"
	"worklogbot/internal/phone"
	"worklogbot/internal/report"
)

const defaultInfoDays = 30

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "worklogbot",
		Short:         "Chat bot that logs customer work to the CRM and a ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newInfoCmd(),
		newParseCmd(),
	)

	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot and the digest scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			return app.Serve(cmd.Context(), cfg)
		},
	}
}

func newInfoCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "info <phone>",
		Short: "Print the work report for a customer phone from the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must be >= 0")
			}
			canonical, err := phone.Normalize(args[0])
			if err != nil {
				return errors.New(apperr.UserMessage(err))
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)

			ctx := cmd.Context()
			l, closeLedger, err := app.OpenLedger(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer closeLedger()

			agg, err := app.NewAggregator(cfg, l)
			if err != nil {
				return err
			}
			rep, err := agg.Aggregate(ctx, canonical, days)
			if err != nil {
				return err
			}
			catalog, _ := cfg.Catalog()
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderReport(rep, catalog, cfg.Location))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", defaultInfoDays, "Look-back window in days")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <line>",
		Short: "Show how a chat line would be understood, without saving anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), describeLine(strings.Join(args, " ")))
			return nil
		},
	}
}

func describeLine(line string) string {
	if q, ok, err := parser.ParseInfoCommand(line); ok {
		if err != nil {
			return "invalid /info command: " + apperr.UserMessage(err)
		}
		return fmt.Sprintf("info query\n  phone: %s\n  days:  %d", phone.Display(q.Phone), q.Days)
	}

	msg, ok, err := parser.ParseWorkMessage(line)
	switch {
	case !ok:
		return "not a work line (ignored as chatter)"
	case err != nil:
		return "invalid work line: " + apperr.UserMessage(err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "work record\n")
	fmt.Fprintf(&b, "  category: %s (%s)\n", msg.Category, domain.DefaultCatalog().Label(msg.Category))
	fmt.Fprintf(&b, "  phone:    %s\n", msg.Phone)
	fmt.Fprintf(&b, "  note:     %s", msg.Note)
	if !phone.Plausible(msg.Phone) {
		b.WriteString("\n  warning:  phone number does not look valid")
	}
	return b.String()
}
