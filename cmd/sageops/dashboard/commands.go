package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"sageops/internal/gate"
	"sageops/internal/workflow"
)

// listenSnapshots blocks on the orchestrator's event stream and forwards
// the next snapshot. Update re-issues it after every received message.
func listenSnapshots(ch <-chan workflow.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return snapshotsClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// listenGate forwards the next research gate status change.
func listenGate(ch <-chan gate.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return snapshotsClosedMsg{}
		}
		return gateMsg(res)
	}
}

// Workflow actions run in their own goroutine via tea.Cmd; results arrive
// through the snapshot stream, not through the returned message.

func (m Model) generateCmd(acceptRisk bool) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.RequestGeneration(context.Background(), acceptRisk)}
	}
}

func (m Model) researchFirstCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.RunResearchFirst(context.Background())}
	}
}

func (m Model) proceedAnywayCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.ProceedAnyway(context.Background())}
	}
}

func (m Model) finalizeCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.Finalize(context.Background())}
	}
}

func (m Model) rewriteUnitCmd(ref workflow.UnitRef, instruction string) tea.Cmd {
	return func() tea.Msg {
		if ref.SalesPage {
			return actionDoneMsg{err: m.orch.RewriteSalesPage(context.Background(), instruction)}
		}
		return actionDoneMsg{err: m.orch.RewriteSection(context.Background(), ref.Section, instruction)}
	}
}

func (m Model) applyEditCmd(ref workflow.UnitRef, content string) tea.Cmd {
	return func() tea.Msg {
		if ref.SalesPage {
			return actionDoneMsg{err: m.orch.UpdateSalesPage(content)}
		}
		return actionDoneMsg{err: m.orch.UpdateSectionContent(ref.Section, content)}
	}
}

func (m Model) rewriteAllCmd(instruction string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.RewriteAll(context.Background(), instruction)}
	}
}
