package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/depctl/internal/checker"
	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// checkReport is the JSON shape of `depctl check --json`
type checkReport struct {
	Region       core.Region        `json:"region"`
	Dependencies []core.CheckResult `json:"dependencies"`
	Missing      int                `json:"missing"`
}

// NewCheckCmd creates the check command
func NewCheckCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check manifest dependencies",
		Long:  `Run every dependency's check command and compare the reported version against its constraints.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			m, err := e.manifest()
			if err != nil {
				return err
			}

			detection := e.region.DetectWithCache(ctx)
			results := e.checker.ForRegion(detection.Region).CheckAll(ctx, m.Dependencies)

			missing := checker.Missing(results)
			log.Info().
				Int("dependencies", len(results)).
				Int("missing", len(missing)).
				Msg("dependency check finished")

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(checkReport{
					Region:       detection.Region,
					Dependencies: results,
					Missing:      len(missing),
				})
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, ui.SprintInfo("No dependencies declared in %s", e.paths.ManifestFile()))
				return nil
			}

			printCheckTable(out, results)
			fmt.Fprintln(out)
			if len(missing) == 0 {
				fmt.Fprintln(out, ui.SprintSuccess("All %d dependencies satisfied", len(results)))
			} else {
				fmt.Fprintln(out, ui.SprintWarning("%d of %d dependencies need installation (run 'depctl install')",
					len(missing), len(results)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func printCheckTable(w io.Writer, results []core.CheckResult) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Dependency", "Type", "Status", "Version", "Required"}),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, r := range results {
		name := r.Name
		if name == "" {
			name = r.Key
		}
		installed := r.Version
		if installed == "" {
			installed = "-"
		}
		table.Append(name, ui.ColorizeDependencyType(r.Type), ui.ColorizeStatus(r), installed, r.RequiredVersion)
	}

	table.Render()
}
