package dashboard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"sageops/internal/config"
	"sageops/internal/gate"
	"sageops/internal/logging"
	"sageops/internal/sage"
	"sageops/internal/workflow"
)

// Run wires the full stack - backend client, research gate, orchestrator,
// TUI - and blocks until the operator quits.
func Run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize("."); err != nil {
		return err
	}

	client := sage.NewHTTPClientWithConfig(sage.HTTPConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
	})

	// Gate notifications are pushed into a channel the TUI drains. The
	// notify callback must never block; if the TUI falls behind, drop the
	// oldest update in favor of the newest.
	gateEvents := make(chan gate.Result, 16)
	notify := func(r gate.Result) {
		select {
		case gateEvents <- r:
		default:
			select {
			case <-gateEvents:
			default:
			}
			select {
			case gateEvents <- r:
			default:
			}
		}
	}

	g := gate.New(client, cfg.GateDebounce(), cfg.GateLookupTimeout(), notify)
	defer g.Close()

	orch := workflow.New(client, g, workflow.Config{
		Market:      cfg.Product.Market,
		Price:       cfg.Product.Price,
		Sections:    cfg.Product.Sections,
		Language:    cfg.Product.Language,
		ErrorWindow: cfg.ErrorWindow(),
	})
	defer orch.Close()
	defer logging.CloseAll()

	logging.Boot("dashboard starting (backend=%s)", cfg.Backend.BaseURL)

	model := NewModel(orch, orch.Subscribe(), gateEvents)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
