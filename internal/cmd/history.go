package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/db"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent install outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if limit < 0 {
				return exitErr(core.ExitInvalidArgs, "--limit must not be negative")
			}

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := e.db.History(ctx, limit)
			if err != nil {
				return exitErr(core.ExitDatabase, "read history: %w", err)
			}

			if jsonOutput {
				if entries == nil {
					entries = []db.HistoryEntry{}
				}
				return encodeJSON(out, entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, ui.SprintInfo("No installs recorded yet"))
				return nil
			}

			printHistoryTable(out, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func printHistoryTable(w io.Writer, entries []db.HistoryEntry) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"When", "Kind", "Subject", "Version", "Region", "Result"}),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, e := range entries {
		result := ui.Success.Sprint("ok")
		if !e.Success {
			result = ui.Error.Sprint("failed")
			if e.Error != "" {
				result += " " + truncate(e.Error, 60)
			}
		}
		table.Append(
			e.FinishedAt.Local().Format("2006-01-02 15:04"),
			string(e.Kind),
			e.Subject,
			dash(e.Version),
			dash(e.Region),
			result,
		)
	}

	table.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
