package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/skypulse/internal/app"
	"github.com/dharsanguruparan/skypulse/internal/ingest"
	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/session"
)

func newSubmitCmd() *cobra.Command {
	var (
		file     string
		out      string
		examples bool
	)
	cmd := &cobra.Command{
		Use:   "submit [ids...]",
		Short: "Start a session and follow it until it settles",
		Long: `Submit starts an enrichment session for the given identifiers, prints progress
while it runs, and renders the results. Identifiers may also come from a .txt,
.csv, or .pdf target list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectIDs(args, file, examples)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				d, err := a.Sessions.StartSession(ctx, ids)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "session %s started with %d objects\n", d.ID, d.TotalObjects)

				poller := &session.Poller{Client: a.Sessions, Interval: a.Config.PollInterval, Grace: a.Config.PollGrace}
				snap, err := poller.Poll(ctx, d.ID, func(s *session.Snapshot) {
					fmt.Fprintln(w, progressLine(s))
				})
				if err != nil {
					return fmt.Errorf("poll session: %w", err)
				}
				return report(cmd, snap, out)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read identifiers from a .txt, .csv, or .pdf file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Export results to a .csv or .json file")
	cmd.Flags().BoolVar(&examples, "examples", false, "Submit the built-in sample targets")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a session and its objects from the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				snap, err := a.Sessions.PollOnce(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), progressLine(snap))
				return report(cmd, snap, out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Export results to a .csv or .json file")
	return cmd
}

// collectIDs merges positional identifiers, a target list file, and the
// sample list, in that order.
func collectIDs(args []string, file string, examples bool) ([]string, error) {
	ids := ingest.Parse(strings.Join(args, "\n"))
	if file != "" {
		fromFile, err := ingest.FromFile(file)
		if err != nil {
			return nil, err
		}
		ids = append(ids, fromFile...)
	}
	if examples {
		ids = append(ids, ingest.SampleIDs...)
	}
	if len(ids) == 0 {
		return nil, errors.New("no identifiers given: pass ids, --file, or --examples")
	}
	return ids, nil
}

func report(cmd *cobra.Command, snap *session.Snapshot, out string) error {
	w := cmd.OutOrStdout()
	if err := renderObjects(w, snap.Objects); err != nil {
		return err
	}
	if snap.Session.Status == model.SessionFailed {
		fmt.Fprintf(w, "session %s failed\n", snap.Session.ID)
	}
	if out == "" {
		return nil
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	n, err := writeExport(f, out, snap.Objects)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(w, "no results to export")
		_ = os.Remove(out)
		return nil
	}
	fmt.Fprintf(w, "wrote %s (%s)\n", out, formatBytes(n))
	return nil
}
