package ui

import (
	"fmt"
	"io"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps progressbar/v3 with depctl styling
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar for a known-length operation
func NewProgressBar(w io.Writer, max int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// NewSpinner creates a spinner for unknown-length operations
func NewSpinner(w io.Writer, description string) *ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(10),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Add increments the progress bar by n
func (p *ProgressBar) Add(n int) error {
	return p.bar.Add(n)
}

// Set sets the current progress to n
func (p *ProgressBar) Set(n int) error {
	return p.bar.Set(n)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Clear clears the progress bar
func (p *ProgressBar) Clear() error {
	return p.bar.Clear()
}

// Describe changes the description of the progress bar
func (p *ProgressBar) Describe(description string) {
	p.bar.Describe(description)
}

// IsFinished returns true if the progress bar is finished
func (p *ProgressBar) IsFinished() bool {
	return p.bar.IsFinished()
}

// StageProgress folds package pipeline events into one 0-100 bar.
// Each stage reports its own percentage, so stages are mapped onto
// consecutive slices of the bar and the bar never moves backwards.
type StageProgress struct {
	bar     *ProgressBar
	percent int
	failed  bool
}

// NewStageProgress creates a pipeline bar writing to w
func NewStageProgress(w io.Writer) *StageProgress {
	return &StageProgress{bar: NewProgressBar(w, 100, "Starting...")}
}

// Update renders one pipeline event
func (s *StageProgress) Update(p core.PackageProgress) {
	if s.failed {
		return
	}
	if p.Stage == core.StageError {
		s.failed = true
		s.bar.Describe(p.Message)
		_ = s.bar.Clear()
		return
	}

	overall := overallPercent(p)
	if overall < s.percent {
		overall = s.percent
	}
	s.percent = overall

	s.bar.Describe(p.Message)
	if overall >= 100 {
		_ = s.bar.Finish()
		return
	}
	_ = s.bar.Set(overall)
}

// Percent returns the overall progress rendered so far
func (s *StageProgress) Percent() int {
	return s.percent
}

// Failed reports whether an error event was received
func (s *StageProgress) Failed() bool {
	return s.failed
}

func overallPercent(p core.PackageProgress) int {
	pct := clamp(p.Percent)
	switch p.Stage {
	case core.StageVerifying:
		// verification runs before the copy and again after extraction
		if pct >= 90 {
			return 95
		}
		return pct / 20
	case core.StageDownloading:
		return 5 + pct/4
	case core.StageExtracting:
		return 30 + pct*6/10
	case core.StageCompleted:
		return 100
	default:
		return 0
	}
}

func clamp(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
