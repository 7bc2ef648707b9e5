package core

import (
	"testing"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		input  string
		want   Region
		wantOK bool
	}{
		{"CN", RegionCN, true},
		{"INTERNATIONAL", RegionInternational, true},
		{"", RegionInternational, false},
		{"cn", RegionInternational, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRegion(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRegion(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestInstallCommand_Display(t *testing.T) {
	tests := []struct {
		name string
		cmd  InstallCommand
		want string
	}{
		{"none", NoCommand(), ""},
		{"single", SingleCommand("npm i -g x"), "npm i -g x"},
		{"regional prefers global", RegionalCommand("cn-cmd", "global-cmd"), "global-cmd"},
		{"regional china only", RegionalCommand("cn-cmd", ""), "cn-cmd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmd.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandKind_String(t *testing.T) {
	if CommandNone.String() != "none" || CommandSingle.String() != "single" || CommandRegional.String() != "regional" {
		t.Error("unexpected CommandKind string")
	}
}

func TestVersionConstraint_IsZero(t *testing.T) {
	if !(VersionConstraint{}).IsZero() {
		t.Error("empty constraint should be zero")
	}
	if (VersionConstraint{Recommended: "1.0.0"}).IsZero() {
		t.Error("recommended-only constraint should not be zero")
	}
}

func TestCheckResult_NeedsInstall(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
		want   bool
	}{
		{"missing", CheckResult{Installed: false}, true},
		{"mismatch", CheckResult{Installed: true, VersionMismatch: true}, true},
		{"satisfied", CheckResult{Installed: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.NeedsInstall(); got != tt.want {
				t.Errorf("NeedsInstall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsedInstallCommand_Available(t *testing.T) {
	if !(ParsedInstallCommand{Type: ParsedShell, Command: "x"}).Available() {
		t.Error("shell command should be available")
	}
	if (ParsedInstallCommand{Type: ParsedNotAvailable}).Available() {
		t.Error("not-available command should not be available")
	}
}

func TestProgressEvent_Terminal(t *testing.T) {
	if !(ProgressEvent{Type: EventInstallComplete}).Terminal() {
		t.Error("install-complete is terminal")
	}
	if !(ProgressEvent{Type: EventInstallError}).Terminal() {
		t.Error("install-error is terminal")
	}
	if (ProgressEvent{Type: EventCommandOutput}).Terminal() {
		t.Error("command-output is not terminal")
	}
}

func TestProgressFunc_EmitNil(t *testing.T) {
	var fn ProgressFunc
	fn.Emit(ProgressEvent{Type: EventCommandStart})

	var got []EventType
	fn = func(e ProgressEvent) { got = append(got, e.Type) }
	fn.Emit(ProgressEvent{Type: EventCommandStart})
	if len(got) != 1 || got[0] != EventCommandStart {
		t.Errorf("Emit delivered %v", got)
	}
}
