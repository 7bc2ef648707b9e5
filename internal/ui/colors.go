package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/quantmind-br/depctl/internal/core"
)

// Color scheme for depctl
var (
	// Primary actions
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	// Secondary actions
	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)

	// Status indicators
	CheckMark = color.GreenString("✓")
	CrossMark = color.RedString("✗")
	Arrow     = color.CyanString("→")
	Bullet    = color.HiBlackString("•")

	// Dependency type colors
	TypeSystemRuntime   = color.New(color.FgBlue)
	TypeLanguageRuntime = color.New(color.FgMagenta)
	TypeCLITool         = color.New(color.FgYellow)
)

// Writers used by the Print helpers
var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// SetOutput redirects the Print helpers. A nil writer leaves the current one.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		Stdout = out
	}
	if errOut != nil {
		Stderr = errOut
	}
}

// InitColors applies the configured color mode: "always", "never" or "auto".
// In auto mode NO_COLOR and TERM=dumb disable colors.
func InitColors(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
		return
	case "never":
		color.NoColor = true
		return
	}

	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Fprintf(Stdout, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(Stderr, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Fprintf(Stderr, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Fprintf(Stdout, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// PrintStep prints a step indicator
func PrintStep(step, total int, format string, args ...interface{}) {
	Highlight.Fprintf(Stdout, "[%d/%d] ", step, total)
	fmt.Fprintf(Stdout, format+"\n", args...)
}

// PrintKeyValue prints a key-value pair with color
func PrintKeyValue(key, value string) {
	Bold.Fprintf(Stdout, "%s: ", key)
	fmt.Fprintln(Stdout, value)
}

// PrintHeader prints a section header
func PrintHeader(text string) {
	fmt.Fprintln(Stdout)
	Bold.Fprintln(Stdout, text)
	Muted.Fprintln(Stdout, "────────────────────────────────────────")
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(Stdout, "  %s %s\n", Bullet, item)
	}
}

// ColorizeDependencyType returns a colored dependency type
func ColorizeDependencyType(t core.DependencyType) string {
	switch t {
	case core.DependencyTypeSystemRuntime:
		return TypeSystemRuntime.Sprint(string(t))
	case core.DependencyTypeLanguageRuntime:
		return TypeLanguageRuntime.Sprint(string(t))
	case core.DependencyTypeCLITool:
		return TypeCLITool.Sprint(string(t))
	case "":
		return Muted.Sprint("-")
	default:
		return string(t)
	}
}

// ColorizeStatus renders the state of a checked dependency
func ColorizeStatus(r core.CheckResult) string {
	switch {
	case !r.Installed:
		return Error.Sprint("missing")
	case r.VersionMismatch:
		return Warning.Sprint("mismatch")
	default:
		return Success.Sprint("ok")
	}
}

// ColorizeInstallStatus renders a batch install status
func ColorizeInstallStatus(s core.InstallStatus) string {
	switch s {
	case core.StatusSuccess:
		return Success.Sprint(string(s))
	case core.StatusError:
		return Error.Sprint(string(s))
	case core.StatusInstalling:
		return Info.Sprint(string(s))
	default:
		return Muted.Sprint(string(s))
	}
}

// ColorizeRegion renders a region name
func ColorizeRegion(r core.Region) string {
	if r == core.RegionCN {
		return Warning.Sprint(string(r))
	}
	return Info.Sprint(string(r))
}

// SprintSuccess returns a success string without printing
func SprintSuccess(format string, args ...interface{}) string {
	return fmt.Sprintf("%s %s", CheckMark, fmt.Sprintf(format, args...))
}

// SprintError returns an error string without printing
func SprintError(format string, args ...interface{}) string {
	return fmt.Sprintf("%s Error: %s", CrossMark, fmt.Sprintf(format, args...))
}

// SprintWarning returns a warning string without printing
func SprintWarning(format string, args ...interface{}) string {
	return fmt.Sprintf("Warning: %s", fmt.Sprintf(format, args...))
}

// SprintInfo returns an info string without printing
func SprintInfo(format string, args ...interface{}) string {
	return fmt.Sprintf("%s %s", Arrow, fmt.Sprintf(format, args...))
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return !color.NoColor
}
