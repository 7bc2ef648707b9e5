package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/depctl/internal/config"
	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/pkgmgr"
	"github.com/quantmind-br/depctl/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// selectPackage lets the user pick one of several packages. Replaced in tests.
var selectPackage = ui.SelectPromptDetailed

// NewPackageCmd creates the package command group
func NewPackageCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Manage application packages",
		Long: `Install, inspect and remove the versioned application packages found in the
package source directory.`,
	}

	cmd.AddCommand(newPackageInstallCmd(cfg, log))
	cmd.AddCommand(newPackageListCmd(cfg, log))
	cmd.AddCommand(newPackageStatusCmd(cfg, log))
	cmd.AddCommand(newPackageRemoveCmd(cfg, log))
	cmd.AddCommand(newPackageClearCacheCmd(cfg, log))

	return cmd
}

func newPackageInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		allPlatforms bool
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "install [name]",
		Short: "Install an application package",
		Long: `Install a package from the package source directory. The name may be a full
file name or a partial one matched fuzzily; with several matches you are asked
to pick one. Without a name the newest package for this platform is offered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			manager, err := e.packageManager()
			if err != nil {
				return err
			}

			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			file, err := choosePackage(manager, query, allPlatforms)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, ui.SprintInfo("Installing %s", file))

			var onProgress core.PackageProgressFunc
			if !quiet {
				bar := ui.NewStageProgress(cmd.ErrOrStderr())
				onProgress = bar.Update
			}

			if err := manager.InstallPackage(ctx, file, onProgress); err != nil {
				fmt.Fprintln(out, ui.SprintError("%v", err))
				return &ExitError{Code: packageExitCode(err), Err: err}
			}

			info := manager.CheckInstalled(ctx)
			fmt.Fprintln(out, ui.SprintSuccess("Installed version %s (%s) at %s", info.Version, info.Platform, info.InstalledPath))
			return nil
		},
	}

	cmd.Flags().BoolVar(&allPlatforms, "all-platforms", false, "offer packages built for other platforms too")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not show a progress bar")

	return cmd
}

// choosePackage resolves query to a package file name
func choosePackage(manager *pkgmgr.Manager, query string, allPlatforms bool) (string, error) {
	available, err := manager.AvailablePackages()
	if err != nil {
		return "", err
	}

	for _, p := range available {
		if p.File == query {
			return p.File, nil
		}
	}

	var candidates []pkgmgr.Package
	for _, p := range available {
		if allPlatforms || p.Platform == manager.Platform() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", exitErr(core.ExitInvalidArgs, "no packages for %s in source directory", manager.Platform())
	}

	byFile := make(map[string]pkgmgr.Package, len(candidates))
	files := make([]string, len(candidates))
	for i, p := range candidates {
		byFile[p.File] = p
		files[i] = p.File
	}

	matches := files
	if query != "" {
		matches = ui.FuzzyRank(query, files)
		if len(matches) == 0 {
			return "", exitErr(core.ExitInvalidArgs, "no package matches %q", query)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}

	options := make([]ui.SelectOption, len(matches))
	for i, f := range matches {
		p := byFile[f]
		options[i] = ui.SelectOption{
			Label:  p.File,
			Detail: fmt.Sprintf("%s, %s", p.Version, formatBytes(p.Size)),
			Value:  p.File,
		}
	}
	_, chosen, err := selectPackage("Select a package", options)
	if err != nil {
		return "", exitErr(core.ExitInterrupted, "select package: %w", err)
	}
	return chosen.Value, nil
}

func packageExitCode(err error) int {
	switch {
	case errors.Is(err, pkgmgr.ErrPackageNotFound):
		return core.ExitInvalidArgs
	case errors.Is(err, os.ErrPermission):
		return core.ExitPermission
	case errors.Is(err, pkgmgr.ErrInstallInProgress):
		return core.ExitGeneral
	default:
		return core.ExitInstallFailed
	}
}

func newPackageListCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages in the source directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			manager, err := e.packageManager()
			if err != nil {
				return err
			}
			available, err := manager.AvailablePackages()
			if err != nil {
				return err
			}

			if jsonOutput {
				return encodeJSON(out, available)
			}
			if len(available) == 0 {
				fmt.Fprintln(out, ui.SprintInfo("No packages in %s", e.paths.PackageSourceDir()))
				return nil
			}

			info := manager.CheckInstalled(ctx)
			printPackageTable(out, available, info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func printPackageTable(w io.Writer, packages []pkgmgr.Package, info core.PackageInfo) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"File", "Version", "Platform", "Size", ""}),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, p := range packages {
		marker := ""
		if info.IsInstalled && p.Version == info.Version && p.Platform == info.Platform {
			marker = ui.Success.Sprint("installed")
		}
		table.Append(p.File, p.Version, p.Platform, formatBytes(p.Size), marker)
	}

	table.Render()
}

// packageStatus is the JSON shape of `depctl package status --json`
type packageStatus struct {
	core.PackageInfo
	Checksum  string `json:"checksum,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	Files     int    `json:"files,omitempty"`
}

func newPackageStatusCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the installed package for this platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			manager, err := e.packageManager()
			if err != nil {
				return err
			}

			status := packageStatus{PackageInfo: manager.CheckInstalled(ctx)}
			if status.IsInstalled {
				if meta, err := manager.Meta(ctx); err == nil {
					status.Checksum = meta.Checksum
				}
				status.SizeBytes, status.Files = calculatePackageSize(e.fs, status.InstalledPath)
			}

			if jsonOutput {
				return encodeJSON(out, status)
			}

			if !status.IsInstalled {
				fmt.Fprintln(out, ui.SprintInfo("No package installed for %s", status.Platform))
				return nil
			}
			fmt.Fprintf(out, "Version:  %s\n", status.Version)
			fmt.Fprintf(out, "Platform: %s\n", status.Platform)
			fmt.Fprintf(out, "Path:     %s\n", status.InstalledPath)
			fmt.Fprintf(out, "Size:     %s (%d files)\n", formatBytes(status.SizeBytes), status.Files)
			if status.Checksum != "" {
				fmt.Fprintf(out, "SHA-256:  %s\n", status.Checksum)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

func newPackageRemoveCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		platform  string
		assumeYes bool
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an installed package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			manager, err := e.packageManager()
			if err != nil {
				return err
			}
			if platform == "" {
				platform = manager.Platform()
			}

			if !assumeYes {
				ok, err := confirm(fmt.Sprintf("Remove the %s installation", platform))
				if err != nil {
					return exitErr(core.ExitInterrupted, "confirm: %w", err)
				}
				if !ok {
					fmt.Fprintln(out, ui.SprintInfo("Removal cancelled"))
					return nil
				}
			}

			if err := manager.RemoveInstalled(ctx, platform); err != nil {
				if errors.Is(err, pkgmgr.ErrUnsupportedPlatform) {
					return &ExitError{Code: core.ExitInvalidArgs, Err: err}
				}
				return err
			}
			fmt.Fprintln(out, ui.SprintSuccess("Removed %s installation", platform))
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "platform to remove (defaults to this host)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func newPackageClearCacheCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete cached package archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			e, err := openEnv(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer e.Close()

			manager, err := e.packageManager()
			if err != nil {
				return err
			}
			n, err := manager.ClearCache()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SprintSuccess("Removed %d cached entries", n))
			return nil
		},
	}

	return cmd
}

// formatBytes formats a byte size in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// calculatePackageSize calculates the total size and file count of an install
func calculatePackageSize(fs afero.Fs, installPath string) (int64, int) {
	var totalSize int64
	var fileCount int

	_ = afero.Walk(fs, installPath, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
			fileCount++
		}
		return nil
	})

	return totalSize, fileCount
}
