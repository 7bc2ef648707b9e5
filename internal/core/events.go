package core

// EventType tags an install progress event
type EventType string

const (
	EventCommandStart    EventType = "command-start"
	EventCommandOutput   EventType = "command-output"
	EventCommandError    EventType = "command-error"
	EventCommandComplete EventType = "command-complete"
	EventInstallComplete EventType = "install-complete"
	EventInstallError    EventType = "install-error"
)

// ProgressEvent is one step of a command sequence. Output carries stdout
// lines, Error carries stderr lines or the failure reason.
type ProgressEvent struct {
	Type          EventType `json:"type"`
	CommandIndex  int       `json:"commandIndex"`
	TotalCommands int       `json:"totalCommands"`
	Command       string    `json:"command,omitempty"`
	Output        string    `json:"output,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Terminal reports whether no further events follow this one
func (e ProgressEvent) Terminal() bool {
	return e.Type == EventInstallComplete || e.Type == EventInstallError
}

// ProgressFunc receives progress events in emission order
type ProgressFunc func(ProgressEvent)

// Emit calls fn when it is set
func (fn ProgressFunc) Emit(e ProgressEvent) {
	if fn != nil {
		fn(e)
	}
}

// BatchProgress is reported after each dependency of a batch install
type BatchProgress struct {
	Current    int           `json:"current"`
	Total      int           `json:"total"`
	Dependency string        `json:"dependency"`
	Status     InstallStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
}

// BatchProgressFunc receives batch progress updates
type BatchProgressFunc func(BatchProgress)

// PackageStage is a step of the package install pipeline
type PackageStage string

const (
	StageVerifying   PackageStage = "verifying"
	StageDownloading PackageStage = "downloading"
	StageExtracting  PackageStage = "extracting"
	StageCompleted   PackageStage = "completed"
	StageError       PackageStage = "error"
)

// PackageProgress reports pipeline progress in percent (0-100)
type PackageProgress struct {
	Stage   PackageStage `json:"stage"`
	Percent int          `json:"progress"`
	Message string       `json:"message"`
}

// PackageProgressFunc receives package pipeline progress
type PackageProgressFunc func(PackageProgress)

// Emit calls fn when it is set
func (fn PackageProgressFunc) Emit(stage PackageStage, percent int, message string) {
	if fn != nil {
		fn(PackageProgress{Stage: stage, Percent: percent, Message: message})
	}
}
