package cmd

import (
	"fmt"

	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/region"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// regionReport is the JSON shape of `depctl region --json`
type regionReport struct {
	core.RegionDetection
	Mirror string `json:"npmRegistry"`
}

// NewRegionCmd creates the region command
func NewRegionCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		redetect   bool
		clearCache bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "region",
		Short: "Show the detected network region",
		Long: `Show the region used to pick install mirrors. The detection is cached for
seven days; --redetect refreshes it and --clear drops the cached value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if redetect && clearCache {
				return exitErr(core.ExitInvalidArgs, "--redetect and --clear cannot be combined")
			}

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			if clearCache {
				e.region.ClearCache(ctx)
				fmt.Fprintln(out, ui.SprintSuccess("Region cache cleared"))
				return nil
			}

			var detection core.RegionDetection
			if redetect {
				detection = e.region.Redetect(ctx)
			} else {
				detection = e.region.DetectWithCache(ctx)
			}
			mirror := region.NpmMirror(detection.Region)

			if jsonOutput {
				return encodeJSON(out, regionReport{RegionDetection: detection, Mirror: mirror.URL})
			}

			fmt.Fprintf(out, "Region:      %s\n", ui.ColorizeRegion(detection.Region))
			fmt.Fprintf(out, "Method:      %s\n", detection.Method)
			fmt.Fprintf(out, "Detected at: %s\n", detection.DetectedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "npm mirror:  %s (%s)\n", mirror.Name, mirror.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&redetect, "redetect", false, "ignore the cache and detect again")
	cmd.Flags().BoolVar(&clearCache, "clear", false, "clear the cached detection")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
