package dashboard

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"sageops/internal/gate"
	"sageops/internal/workflow"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.topicInput.Width = msg.Width - 12
		m.instrInput.SetWidth(msg.Width - 4)

		contentHeight := msg.Height - m.chromeHeight()
		if contentHeight < 3 {
			contentHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = contentHeight
		}

		wrap := msg.Width - 6
		if wrap < 20 {
			wrap = 20
		}
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		); err == nil {
			m.renderer = r
		}
		m.viewport.SetContent(m.renderDocument())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			return m, tea.Quit

		case "tab":
			m = m.cycleFocus()
			return m, nil

		case "ctrl+r":
			m.actionErr = ""
			return m, m.researchFirstCmd()

		case "ctrl+p":
			m.actionErr = ""
			return m, m.proceedAnywayCmd()

		case "ctrl+s":
			m.actionErr = ""
			return m, m.finalizeCmd()

		case "ctrl+e":
			instruction := strings.TrimSpace(m.instrInput.Value())
			if instruction == "" {
				m.actionErr = "Type a rewrite instruction first."
				return m, nil
			}
			m.actionErr = ""
			return m, m.rewriteUnitCmd(m.selectedRef(), instruction)

		case "ctrl+g":
			instruction := strings.TrimSpace(m.instrInput.Value())
			if instruction == "" {
				m.actionErr = "Type a rewrite instruction first."
				return m, nil
			}
			m.actionErr = ""
			return m, m.rewriteAllCmd(instruction)

		case "alt+e":
			// Pull the selected unit into the textarea for hand editing.
			content, ok := m.selectedContent()
			if !ok {
				return m, nil
			}
			m.actionErr = ""
			m.instrInput.SetValue(content)
			m.topicInput.Blur()
			m.instrInput.Focus()
			m.focus = focusInstruction
			return m, nil

		case "alt+w":
			if m.snap.Document == nil {
				return m, nil
			}
			m.actionErr = ""
			return m, m.applyEditCmd(m.selectedRef(), m.instrInput.Value())

		case "ctrl+x":
			m.actionErr = ""
			switch m.snap.State {
			case workflow.StateError:
				m.orch.Retry()
			case workflow.StateFinalized:
				m.orch.Reset()
			default:
				m.orch.Abandon()
			}
			return m, nil
		}

		switch m.focus {
		case focusTopic:
			if msg.String() == "enter" {
				m.actionErr = ""
				return m, m.generateCmd(false)
			}
			before := m.topicInput.Value()
			m.topicInput, tiCmd = m.topicInput.Update(msg)
			if m.topicInput.Value() != before {
				// Every keystroke reaches the orchestrator; the gate
				// debounces the remote lookup itself.
				m.orch.SetTopic(m.topicInput.Value())
			}
			return m, tiCmd

		case focusInstruction:
			m.instrInput, taCmd = m.instrInput.Update(msg)
			return m, taCmd

		case focusDocument:
			switch msg.String() {
			case "up", "k":
				if m.selected > 0 {
					m.selected--
					m.viewport.SetContent(m.renderDocument())
				}
				return m, nil
			case "down", "j":
				if m.selected < m.unitCount()-1 {
					m.selected++
					m.viewport.SetContent(m.renderDocument())
				}
				return m, nil
			}
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case snapshotMsg:
		m.snap = workflow.Snapshot(msg)
		if max := m.unitCount() - 1; m.selected > max && max >= 0 {
			m.selected = max
		}
		if m.ready {
			m.viewport.SetContent(m.renderDocument())
		}
		return m, listenSnapshots(m.snapshots)

	case gateMsg:
		m.gateRes = gate.Result(msg)
		return m, listenGate(m.gateEvents)

	case snapshotsClosedMsg:
		return m, tea.Quit

	case actionDoneMsg:
		if msg.err != nil {
			m.actionErr = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	m.topicInput, tiCmd = m.topicInput.Update(msg)
	m.instrInput, taCmd = m.instrInput.Update(msg)
	return m, tea.Batch(tiCmd, taCmd)
}

// cycleFocus moves focus topic -> instruction -> document -> topic.
func (m Model) cycleFocus() Model {
	switch m.focus {
	case focusTopic:
		m.focus = focusInstruction
		m.topicInput.Blur()
		m.instrInput.Focus()
	case focusInstruction:
		m.focus = focusDocument
		m.instrInput.Blur()
	default:
		m.focus = focusTopic
		m.topicInput.Focus()
	}
	return m
}

// unitCount returns how many rewritable units the current document has.
func (m Model) unitCount() int {
	if m.snap.Document == nil {
		return 0
	}
	n := len(m.snap.Document.Sections)
	if m.snap.Document.SalesPage != "" {
		n++
	}
	return n
}

// selectedContent returns the selected unit's current content, or false
// when there is no document to edit.
func (m Model) selectedContent() (string, bool) {
	doc := m.snap.Document
	if doc == nil {
		return "", false
	}
	ref := m.selectedRef()
	if ref.SalesPage {
		return doc.SalesPage, true
	}
	if ref.Section < 0 || ref.Section >= len(doc.Sections) {
		return "", false
	}
	return doc.Sections[ref.Section].Content, true
}

// selectedRef maps the selection index to a unit reference. Indexes past
// the section list refer to the sales page.
func (m Model) selectedRef() workflow.UnitRef {
	if m.snap.Document != nil && m.selected >= len(m.snap.Document.Sections) {
		return workflow.SalesPageRef
	}
	return workflow.SectionRef(m.selected)
}

// chromeHeight is the vertical space taken by everything except the
// document viewport.
func (m Model) chromeHeight() int {
	// header + topic + gate/status + message + instruction + footer
	return 6 + instructionHeight
}
