package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/quantmind-br/depctl/internal/checker"
	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/orchestrator"
	"github.com/quantmind-br/depctl/internal/resolver"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// confirm asks the user before running install commands. Replaced in tests.
var confirm = ui.ConfirmPrompt

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		only       string
		assumeYes  bool
		verify     bool
		force      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install missing dependencies",
		Long: `Install every manifest dependency that is missing or outside its version
constraints, using the install command for the detected region.

With --only a single dependency is installed regardless of its current state.`,
		Args: cobra.NoArgs,
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

			out := cmd.OutOrStdout()
			events := eventPrinter(out)
			if jsonOutput {
				events = nil
			}

			if only != "" {
				dep, ok := m.Lookup(only)
				if !ok {
					return exitErr(core.ExitInvalidArgs, "dependency %q not found in manifest", only)
				}
				return installSingle(cmd, e, dep, verify, jsonOutput, events)
			}

			deps := m.Dependencies
			if !force {
				results := e.checker.CheckAll(ctx, m.Dependencies)
				deps = pendingDependencies(m.Dependencies, checker.Missing(results))
			}
			if len(deps) == 0 {
				if jsonOutput {
					return encodeJSON(out, &orchestrator.BatchResult{Success: []string{}, Failed: []orchestrator.Failure{}})
				}
				fmt.Fprintln(out, ui.SprintSuccess("All dependencies are already satisfied"))
				return nil
			}

			detection := e.region.DetectWithCache(ctx)
			if !jsonOutput {
				printPlan(out, deps, detection.Region)
			}

			if !assumeYes && !jsonOutput {
				ok, err := confirm(fmt.Sprintf("Install %d dependencies", len(deps)))
				if err != nil {
					return exitErr(core.ExitInterrupted, "confirm: %w", err)
				}
				if !ok {
					fmt.Fprintln(out, ui.SprintInfo("Installation cancelled"))
					return nil
				}
			}

			observer := orchestrator.Observer{Events: events}
			if !jsonOutput {
				observer.Batch = batchPrinter(out)
			}

			result, err := e.orchestrator().InstallFromManifest(ctx, deps, observer)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := encodeJSON(out, result); err != nil {
					return err
				}
			} else {
				printBatchSummary(out, result)
			}

			if ctx.Err() != nil {
				return &ExitError{Code: core.ExitInterrupted, Err: ctx.Err()}
			}
			return batchError(result)
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "install a single dependency by key")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&verify, "verify", true, "re-run the check command after a single install")
	cmd.Flags().BoolVar(&force, "force", false, "install every dependency, even those already satisfied")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the result in JSON format")

	return cmd
}

func installSingle(cmd *cobra.Command, e *env, dep core.Dependency, verify, jsonOutput bool, events core.ProgressFunc) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !jsonOutput {
		fmt.Fprintln(out, ui.SprintInfo("Installing %s", displayName(dep)))
	}

	result, err := e.orchestrator().InstallSingle(ctx, dep, verify, events)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := encodeJSON(out, result); err != nil {
			return err
		}
	} else {
		switch {
		case result.Manual:
			fmt.Fprintln(out, ui.SprintWarning("%s", result.Error))
		case result.Error != "":
			fmt.Fprintln(out, ui.SprintError("%s", result.Error))
		case !verify:
			fmt.Fprintln(out, ui.SprintSuccess("%s installed", displayName(dep)))
		case result.Verified:
			fmt.Fprintln(out, ui.SprintSuccess("%s installed (version %s)", displayName(dep), result.Version))
		default:
			fmt.Fprintln(out, ui.SprintWarning("%s installed but '%s' could not confirm it; a new shell may be needed",
				displayName(dep), result.CheckCommand))
		}
	}

	switch {
	case result.Manual:
		return exitErr(core.ExitManualRequired, "%s: %s", dep.Key, result.Error)
	case result.Error != "":
		return exitErr(core.ExitInstallFailed, "%s: %s", dep.Key, result.Error)
	}
	return nil
}

// pendingDependencies keeps the deps named by missing, in manifest order
func pendingDependencies(deps []core.Dependency, missing []core.CheckResult) []core.Dependency {
	keys := make(map[string]bool, len(missing))
	for _, r := range missing {
		keys[r.Key] = true
	}
	var out []core.Dependency
	for _, d := range deps {
		if keys[d.Key] {
			out = append(out, d)
		}
	}
	return out
}

// batchError maps a batch outcome to an exit code
func batchError(result *orchestrator.BatchResult) error {
	if result.OK() {
		return nil
	}

	manual := 0
	for _, f := range result.Failed {
		if f.Manual {
			manual++
		}
	}

	err := fmt.Errorf("%d of %d dependencies failed", len(result.Failed), len(result.Failed)+len(result.Success))
	switch {
	case len(result.Success) > 0:
		return &ExitError{Code: core.ExitPartialInstall, Err: err}
	case manual == len(result.Failed):
		return &ExitError{Code: core.ExitManualRequired, Err: err}
	default:
		return &ExitError{Code: core.ExitInstallFailed, Err: err}
	}
}

func printPlan(w io.Writer, deps []core.Dependency, region core.Region) {
	fmt.Fprintf(w, "%s %s\n", ui.SprintInfo("Region:"), ui.ColorizeRegion(region))
	for _, d := range deps {
		parsed := resolver.Resolve(d.InstallCommand, region)
		command := parsed.Command
		if !parsed.Available() {
			command = ui.Muted.Sprint("manual installation")
		}
		fmt.Fprintf(w, "  %s %s: %s\n", ui.Bullet, displayName(d), command)
	}
	fmt.Fprintln(w)
}

func batchPrinter(w io.Writer) core.BatchProgressFunc {
	return func(p core.BatchProgress) {
		switch p.Status {
		case core.StatusInstalling:
			fmt.Fprintf(w, "%s %s\n", ui.Highlight.Sprintf("[%d/%d]", p.Current, p.Total), p.Dependency)
		case core.StatusError:
			fmt.Fprintf(w, "  %s %s\n", ui.ColorizeInstallStatus(p.Status), p.Error)
		default:
			fmt.Fprintf(w, "  %s\n", ui.ColorizeInstallStatus(p.Status))
		}
	}
}

// eventPrinter streams subprocess events as they arrive
func eventPrinter(w io.Writer) core.ProgressFunc {
	return func(ev core.ProgressEvent) {
		switch ev.Type {
		case core.EventCommandStart:
			fmt.Fprintf(w, "  %s\n", ui.Muted.Sprintf("$ %s", ev.Command))
		case core.EventCommandOutput:
			fmt.Fprintf(w, "    %s\n", ev.Output)
		case core.EventCommandError:
			fmt.Fprintf(w, "    %s\n", ui.Warning.Sprint(ev.Error))
		}
	}
}

func printBatchSummary(w io.Writer, result *orchestrator.BatchResult) {
	fmt.Fprintln(w)
	if result.OK() {
		fmt.Fprintln(w, ui.SprintSuccess("Installed %d dependencies", len(result.Success)))
		return
	}
	fmt.Fprintln(w, ui.SprintWarning("%d installed, %d failed", len(result.Success), len(result.Failed)))
	for _, f := range result.Failed {
		fmt.Fprintf(w, "  %s %s: %s\n", ui.CrossMark, f.Dependency, f.Error)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayName(dep core.Dependency) string {
	if dep.Name != "" {
		return dep.Name
	}
	return dep.Key
}
