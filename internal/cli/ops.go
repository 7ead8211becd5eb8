package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"acp_dues/internal/access"
	"acp_dues/internal/models"
	"acp_dues/internal/ports"
)

// withApp builds the app for one command run and closes it afterwards.
func withApp(cmd *cobra.Command, g *globalFlags, opts appOptions, fn func(ctx context.Context, a *app, caller access.Identity) error) error {
	caller, err := g.identity()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), g.logger(), opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(cmd.Context(), a, caller)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func duesCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dues",
		Short: "Monthly dues",
	}

	var period string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create the dues of a period for every active member with a positive monthly due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, appOptions{}, func(ctx context.Context, a *app, caller access.Identity) error {
				p := period
				if p == "" {
					p = models.PeriodOf(a.clock.Today()).String()
				}
				n, err := a.dues.Generate(ctx, caller, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "period %s: %d due(s) created\n", p, n)
				return nil
			})
		},
	}
	generate.Flags().StringVar(&period, "period", "", "period as YYYY-MM (default: current month)")

	var listPeriod string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the dues of a period with collected and outstanding totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, g, appOptions{}, func(ctx context.Context, a *app, caller access.Identity) error {
				p := listPeriod
				if p == "" {
					p = models.PeriodOf(a.clock.Today()).String()
				}
				sum, err := a.dues.ListPeriod(ctx, caller, p)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, d := range sum.Dues {
					fmt.Fprintf(out, "%s  %-30s  %10s  %s\n", d.Due.ID, d.MemberName, d.Due.Amount.StringFixed(2), d.Status)
				}
				fmt.Fprintf(out, "total %s  collected %s  outstanding %s\n",
					sum.Total.StringFixed(2), sum.Collected.StringFixed(2), sum.Outstanding.StringFixed(2))
				return nil
			})
		},
	}
	list.Flags().StringVar(&listPeriod, "period", "", "period as YYYY-MM (default: current month)")

	cmd.AddCommand(generate, list)
	return cmd
}

func remindersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Overdue reminders",
	}

	var channel, asOf string
	send := &cobra.Command{
		Use:   "send",
		Short: "Send a reminder to every member with overdue dues",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch := ports.Channel(channel)
			if !ch.Valid() {
				return fmt.Errorf("unknown channel %q", channel)
			}
			return withApp(cmd, g, appOptions{}, func(ctx context.Context, a *app, caller access.Identity) error {
				date := a.clock.Today()
				if asOf != "" {
					d, err := civil.ParseDate(asOf)
					if err != nil {
						return fmt.Errorf("--as-of: %w", err)
					}
					date = d
				}
				sum, err := a.reminders.Send(ctx, caller, ch, date)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	send.Flags().StringVar(&channel, "channel", string(ports.ChannelEmail), "email or whatsapp")
	send.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (default: today)")

	cmd.AddCommand(send)
	return cmd
}

func membersCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Member registry",
	}

	var typ string
	imp := &cobra.Command{
		Use:   "import <file|s3://bucket/key|url>",
		Short: "Import members from a CSV or XLSX sheet and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			return withApp(cmd, g, appOptions{foregroundImports: true}, func(ctx context.Context, a *app, caller access.Identity) error {
				data, err := os.ReadFile(src)
				switch {
				case err == nil:
					ct := mime.TypeByExtension(filepath.Ext(src))
					sub, err := a.imports.Upload(ctx, caller, typ, filepath.Base(src), data, ct)
					if err != nil {
						return err
					}
					return reportImport(ctx, cmd.OutOrStdout(), a, sub.RecordID)
				case errors.Is(err, os.ErrNotExist):
					sub, err := a.imports.Source(ctx, caller, typ, src)
					if err != nil {
						return err
					}
					return reportImport(ctx, cmd.OutOrStdout(), a, sub.RecordID)
				default:
					return err
				}
			})
		},
	}
	imp.Flags().StringVar(&typ, "type", "members", "import type")

	cmd.AddCommand(imp)
	return cmd
}

func reportImport(ctx context.Context, w io.Writer, a *app, id string) error {
	rec, err := a.journal.FindImportRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := printJSON(w, rec); err != nil {
		return err
	}
	if rec.Errors != nil {
		return errors.New(*rec.Errors)
	}
	return nil
}
