package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/fsops"
	"github.com/quantmind-br/depctl/internal/helpers"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local setup",
		Long:  `Check the shell, directories, database, manifest and package source used by depctl.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var issues []string
			var warnings []string

			// 1. Shell used for check and install commands
			header(out, "Shell")
			shell, _ := helpers.ShellArgs("")
			if err := runnerFactory().RequireCommand(shell); err != nil {
				fmt.Fprintln(out, ui.SprintError("%s: NOT FOUND", shell))
				issues = append(issues, err.Error())
			} else {
				fmt.Fprintln(out, ui.SprintSuccess("%s: found", shell))
			}

			// 2. Database and data directory
			header(out, "Storage")
			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				fmt.Fprintln(out, ui.SprintError("Database: %v", err))
				issues = append(issues, fmt.Sprintf("Cannot open database: %v", err))
				return doctorSummary(out, issues, warnings)
			}
			defer e.Close()
			fmt.Fprintln(out, ui.SprintSuccess("Database: %s", e.db.Path()))

			dirs := []struct {
				path string
				name string
			}{
				{e.paths.DataDir(), "Data directory"},
				{e.paths.InstalledDir(), "Install directory"},
				{e.paths.CacheDir(), "Cache directory"},
			}
			for _, dir := range dirs {
				err := fsops.EnsureDir(e.fs, dir.path, 0755)
				if err == nil {
					err = fsops.CheckWritable(e.fs, dir.path)
				}
				if err != nil {
					fmt.Fprintln(out, ui.SprintError("%s: NOT WRITABLE (%s)", dir.name, dir.path))
					issues = append(issues, fmt.Sprintf("Directory not writable: %s", dir.path))
				} else {
					fmt.Fprintln(out, ui.SprintSuccess("%s: %s", dir.name, dir.path))
				}
			}

			// 3. Manifest
			header(out, "Manifest")
			if m, err := e.manifest(); err != nil {
				fmt.Fprintln(out, ui.SprintError("%v", err))
				issues = append(issues, "Manifest cannot be loaded")
			} else {
				fmt.Fprintln(out, ui.SprintSuccess("%s: %d dependencies", e.paths.ManifestFile(), len(m.Dependencies)))
			}

			// 4. Packages
			header(out, "Packages")
			manager, err := e.packageManager()
			if err != nil {
				fmt.Fprintln(out, ui.SprintWarning("%v", err))
				warnings = append(warnings, fmt.Sprintf("Packages unavailable on %s/%s", runtime.GOOS, runtime.GOARCH))
			} else {
				available, err := manager.AvailablePackages()
				switch {
				case err != nil:
					fmt.Fprintln(out, ui.SprintWarning("Package source: %v", err))
					warnings = append(warnings, "Package source unreadable")
				case len(available) == 0:
					fmt.Fprintln(out, ui.SprintWarning("Package source: no packages in %s", e.paths.PackageSourceDir()))
					warnings = append(warnings, "No packages available")
				default:
					fmt.Fprintln(out, ui.SprintSuccess("Package source: %d packages", len(available)))
				}

				info := manager.CheckInstalled(ctx)
				if info.IsInstalled {
					fmt.Fprintln(out, ui.SprintInfo("Installed: %s (%s)", info.Version, info.Platform))
					if runtime.GOOS != "windows" {
						entry := filepath.Join(info.InstalledPath, manager.EntryPoint(info.Platform))
						if ok, err := helpers.IsExecutable(entry); err != nil || !ok {
							fmt.Fprintln(out, ui.SprintWarning("Entry point not executable: %s", entry))
							warnings = append(warnings, fmt.Sprintf("Entry point not executable: %s", entry))
						}
					}
				} else {
					fmt.Fprintln(out, ui.SprintInfo("Installed: none for %s", info.Platform))
				}
			}

			// 5. Region
			header(out, "Region")
			detection := e.region.DetectWithCache(ctx)
			fmt.Fprintln(out, ui.SprintInfo("%s (%s)", detection.Region, detection.Method))

			return doctorSummary(out, issues, warnings)
		},
	}

	return cmd
}

func header(w io.Writer, text string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Bold.Sprint(text))
}

func doctorSummary(w io.Writer, issues, warnings []string) error {
	fmt.Fprintln(w)
	if len(issues) == 0 {
		fmt.Fprintln(w, ui.SprintSuccess("All critical checks passed!"))
	} else {
		fmt.Fprintln(w, ui.SprintError("Found %d issue(s):", len(issues)))
		for _, issue := range issues {
			fmt.Fprintf(w, "  %s %s\n", ui.Bullet, issue)
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(w, ui.SprintWarning("Found %d warning(s):", len(warnings)))
		for _, warning := range warnings {
			fmt.Fprintf(w, "  %s %s\n", ui.Bullet, warning)
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("system check failed with %d issue(s)", len(issues))
	}
	return nil
}
