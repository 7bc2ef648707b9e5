// Package resolver picks the concrete install command for a region
package resolver

import (
	"errors"
	"strings"

	"github.com/quantmind-br/depctl/internal/core"
)

// ErrManualInstall is returned when no command exists for the region and
// the user has to install the dependency by hand
var ErrManualInstall = errors.New("manual installation required")

// Resolve selects the command for region. A single command applies to every
// region. A regional command uses the side matching region, then its
// universal fallback when that side is empty. It never borrows the other
// region's command.
func Resolve(cmd core.InstallCommand, region core.Region) core.ParsedInstallCommand {
	var chosen string

	switch cmd.Kind {
	case core.CommandSingle:
		chosen = cmd.Single
	case core.CommandRegional:
		if region == core.RegionCN {
			chosen = cmd.China
		} else {
			chosen = cmd.Global
		}
		if strings.TrimSpace(chosen) == "" {
			chosen = cmd.Single
		}
	}

	chosen = strings.TrimSpace(chosen)
	if chosen == "" {
		return core.ParsedInstallCommand{Type: core.ParsedNotAvailable}
	}
	return core.ParsedInstallCommand{Type: core.ParsedShell, Command: chosen}
}

// Split breaks a resolved command into the sequence the executor runs.
// Lines are run one after another; blank lines and "#" comments are dropped.
func Split(cmd core.ParsedInstallCommand) []string {
	if !cmd.Available() {
		return nil
	}

	var out []string
	for _, line := range strings.Split(cmd.Command, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
