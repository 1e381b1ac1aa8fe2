package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sageops/cmd/sageops/ui"
	"sageops/internal/gate"
	"sageops/internal/sage"
	"sageops/internal/workflow"
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.styles.Header.Render(" sageops · product console ")

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.topicInput.View())
	b.WriteString("\n")
	b.WriteString(m.renderGateLine())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.instrInput.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderGateLine shows the advisory research-readiness status.
func (m Model) renderGateLine() string {
	label := m.styles.Muted.Render("Research: ")
	switch m.gateRes.Status {
	case gate.StatusChecking:
		return label + m.styles.Info.Render(m.spinner.View()+" checking...")
	case gate.StatusFound:
		src := m.gateRes.SourceFile
		if src == "" {
			src = "found"
		}
		return label + m.styles.Success.Render("✓ "+src)
	case gate.StatusMissing:
		return label + m.styles.Warning.Render("none found")
	default:
		return label + m.styles.Muted.Render("–")
	}
}

// renderStatusLine shows the workflow state and any transient message.
func (m Model) renderStatusLine() string {
	var state string
	switch m.snap.State {
	case workflow.StateIdle:
		state = m.styles.Muted.Render("idle")
	case workflow.StateNeedsResearch:
		state = m.styles.Warning.Render("needs research")
	case workflow.StateRunningResearch:
		state = m.styles.Info.Render(m.spinner.View() + " researching...")
	case workflow.StateRunning:
		state = m.styles.Info.Render(m.spinner.View() + " generating...")
	case workflow.StateReview:
		state = m.styles.Badge.Render("REVIEW")
	case workflow.StateFinalizing:
		state = m.styles.Info.Render(m.spinner.View() + " saving...")
	case workflow.StateFinalized:
		state = m.styles.Success.Render("finalized")
	case workflow.StateError:
		state = m.styles.Error.Render("error")
	default:
		state = string(m.snap.State)
	}

	parts := []string{state}
	if m.snap.Message != "" {
		style := m.styles.Warning
		if m.snap.State == workflow.StateError {
			style = m.styles.Error
		}
		parts = append(parts, style.Render(m.snap.Message))
	}
	if m.actionErr != "" {
		parts = append(parts, m.styles.Error.Render(m.actionErr))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, "  "))
}

// renderDocument builds the viewport content for the current state.
func (m Model) renderDocument() string {
	doc := m.snap.Document
	if doc == nil {
		return m.renderPlaceholder()
	}

	var b strings.Builder

	if doc.QAStatus != "" {
		qa := m.styles.Success.Render("QA: pass")
		if doc.QAStatus == sage.QAWarn {
			qa = m.styles.Warning.Render("QA: warn")
		}
		b.WriteString(qa)
		if doc.ResearchSource != "" {
			b.WriteString(m.styles.Muted.Render("  grounded on " + doc.ResearchSource))
		}
		b.WriteString("\n\n")
	}

	for i, section := range doc.Sections {
		b.WriteString(m.renderUnitHeader(workflow.SectionRef(i), i, section.Title))
		b.WriteString(m.safeRenderMarkdown(section.Content))
		b.WriteString("\n")
	}
	if doc.SalesPage != "" {
		b.WriteString(m.renderUnitHeader(workflow.SalesPageRef, len(doc.Sections), "Sales Page"))
		b.WriteString(m.safeRenderMarkdown(doc.SalesPage))
		b.WriteString("\n")
	}
	return b.String()
}

// renderUnitHeader renders one unit's title line with selection and rewrite
// status markers.
func (m Model) renderUnitHeader(ref workflow.UnitRef, index int, title string) string {
	marker := "  "
	if m.focus == focusDocument && m.selected == index {
		marker = m.styles.Selected.Render("▸ ")
	}

	line := marker + m.styles.SectionTitle.Render(title)
	if m.snap.BusyUnits[ref] {
		line += "  " + m.styles.SectionBusy.Render(m.spinner.View()+" rewriting...")
	}
	if msg, ok := m.snap.UnitErrors[ref]; ok {
		line += "  " + m.styles.SectionError.Render(msg)
	}
	if instr, ok := m.snap.PendingInstr[ref]; ok && !m.snap.BusyUnits[ref] {
		line += "\n  " + m.styles.Muted.Render("pending: "+instr)
	}
	return line + "\n"
}

// renderPlaceholder fills the viewport when there is no document.
func (m Model) renderPlaceholder() string {
	switch m.snap.State {
	case workflow.StateNeedsResearch:
		return m.styles.Warning.Render("No research material for this topic.") + "\n\n" +
			m.styles.Body.Render("ctrl+r  run research first, then generate") + "\n" +
			m.styles.Body.Render("ctrl+p  proceed anyway (quality may suffer)")
	case workflow.StateRunningResearch, workflow.StateRunning:
		return m.styles.Info.Render(m.spinner.View() + " Working...")
	case workflow.StateFinalized:
		return m.styles.Success.Render("Saved to "+m.snap.SavedLocation) + "\n\n" +
			m.styles.Muted.Render("ctrl+x to start a new product")
	default:
		return ui.Logo(m.styles) + "\n\n" +
			m.styles.Muted.Render("Type a topic and press enter to generate a product.")
	}
}

// renderFooter shows the key bindings for the current focus.
func (m Model) renderFooter() string {
	bindings := fmt.Sprintf(
		"tab focus:%s · enter generate · ctrl+e rewrite unit · ctrl+g rewrite all · alt+e/alt+w edit unit · ctrl+s save · ctrl+x cancel · ctrl+c quit",
		m.focus,
	)
	return m.styles.Footer.Render(bindings)
}

// safeRenderMarkdown renders markdown with panic recovery; glamour can
// panic on some inputs, in which case plain text is good enough.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
