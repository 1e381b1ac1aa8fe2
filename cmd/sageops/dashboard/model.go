// Package dashboard provides the interactive TUI for driving the
// productization workflow. The dashboard is a pure renderer: all workflow
// state lives in the orchestrator, and the model redraws from the
// snapshots it receives. Split across files:
//   - model.go: model type, construction, Init
//   - update.go: Update loop and key handling
//   - view.go: rendering
//   - commands.go: tea.Cmd wrappers around workflow actions and listeners
//   - dashboard.go: process wiring and entry point
package dashboard

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"sageops/cmd/sageops/ui"
	"sageops/internal/gate"
	"sageops/internal/workflow"
)

const instructionHeight = 3

// Model is the main model for the dashboard.
type Model struct {
	orch *workflow.Orchestrator

	// UI components
	topicInput textinput.Model
	instrInput textarea.Model
	spinner    spinner.Model
	viewport   viewport.Model
	styles     ui.Styles
	renderer   *glamour.TermRenderer

	// Event streams
	snapshots  <-chan workflow.Snapshot
	gateEvents <-chan gate.Result

	// Latest state received
	snap    workflow.Snapshot
	gateRes gate.Result

	focus     focusArea
	selected  int    // selected unit: section index, or len(sections) for the sales page
	actionErr string // local input error, cleared on the next action

	width  int
	height int
	ready  bool
}

// NewModel builds the dashboard model over an existing orchestrator and its
// event streams.
func NewModel(orch *workflow.Orchestrator, snapshots <-chan workflow.Snapshot, gateEvents <-chan gate.Result) Model {
	styles := ui.DefaultStyles()

	topicInput := textinput.New()
	topicInput.Placeholder = "Product topic..."
	topicInput.Prompt = "Topic: "
	topicInput.PromptStyle = styles.Bold
	topicInput.Focus()

	instrInput := textarea.New()
	instrInput.Placeholder = "Rewrite instruction (ctrl+e: selected unit, ctrl+g: everything)"
	instrInput.SetHeight(instructionHeight)
	instrInput.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		orch:       orch,
		topicInput: topicInput,
		instrInput: instrInput,
		spinner:    sp,
		styles:     styles,
		snapshots:  snapshots,
		gateEvents: gateEvents,
		snap:       orch.Snapshot(),
		focus:      focusTopic,
	}
}

// Init starts the event listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		listenSnapshots(m.snapshots),
		listenGate(m.gateEvents),
	)
}
