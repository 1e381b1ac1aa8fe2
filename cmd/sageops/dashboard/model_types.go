package dashboard

import (
	"sageops/internal/gate"
	"sageops/internal/workflow"
)

// focusArea determines which component receives keystrokes.
type focusArea int

const (
	focusTopic focusArea = iota
	focusInstruction
	focusDocument
)

// String returns the display name for each focus area.
func (f focusArea) String() string {
	names := []string{"topic", "instruction", "document"}
	if int(f) < len(names) {
		return names[f]
	}
	return "unknown"
}

// snapshotMsg carries an orchestrator state snapshot into the Update loop.
type snapshotMsg workflow.Snapshot

// snapshotsClosedMsg signals the orchestrator's event stream has ended.
type snapshotsClosedMsg struct{}

// gateMsg carries a research gate status change into the Update loop.
type gateMsg gate.Result

// actionDoneMsg reports completion of a workflow action issued from a key
// binding. Most action errors are operator-facing and already surfaced
// through snapshots; err covers the rest (e.g. empty instruction).
type actionDoneMsg struct {
	err error
}
