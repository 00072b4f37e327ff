package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mentorjournal/internal/app"
	"mentorjournal/internal/digest"
)

func digestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Mentor digest tasks",
	}
	cmd.AddCommand(digestRunCmd())
	return cmd
}

func digestRunCmd() *cobra.Command {
	var since, until string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send the digests for a window",
		Long: `Send every mentor the entries shared with them in [since, until).

Both bounds accept RFC 3339 timestamps or YYYY-MM-DD dates (midnight UTC).
Without flags the window is the 24 hours ending at the last midnight UTC,
which suits a daily cron job.

Examples:
  mentorctl digest run
  mentorctl digest run --since 2026-03-01 --until 2026-03-08 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := parseWindow(since, until, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				rep, err := a.Digests.Run(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), rep, outputFmt)
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "start of the window, inclusive")
	cmd.Flags().StringVar(&until, "until", "", "end of the window, exclusive")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// parseWindow fills in missing bounds: until defaults to the last midnight
// UTC before now and since to one day before until.
func parseWindow(since, until string, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC().Truncate(24 * time.Hour)
	if until != "" {
		t, err := parseTime(until)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
	}
	from := to.Add(-24 * time.Hour)
	if since != "" {
		t, err := parseTime(since)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("since must be before until")
	}
	return from, to, nil
}

func printReport(w io.Writer, rep digest.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "RUN\t%s\n", rep.RunID)
		fmt.Fprintf(tw, "WINDOW\t%s .. %s\n", rep.Since.Format(time.RFC3339), rep.Until.Format(time.RFC3339))
		if rep.Skipped {
			fmt.Fprintf(tw, "STATUS\tskipped, another run holds this window\n")
			return tw.Flush()
		}
		fmt.Fprintf(tw, "DIGESTS\t%d\n", rep.Digests)
		fmt.Fprintf(tw, "ENTRIES\t%d\n", rep.Entries)
		fmt.Fprintf(tw, "SENT\t%d\n", rep.Sent)
		fmt.Fprintf(tw, "FAILED\t%d\n", rep.Failed)
		fmt.Fprintf(tw, "DURATION\t%s\n", rep.Duration)
		return tw.Flush()
	}
	return fmt.Errorf("unknown output format %q", format)
}
