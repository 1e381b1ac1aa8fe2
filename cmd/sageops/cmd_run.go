package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sageops/internal/config"
	"sageops/internal/gate"
	"sageops/internal/logging"
	"sageops/internal/sage"
	"sageops/internal/workflow"
)

var (
	runResearch bool
	runForce    bool
)

// runCmd produces and saves a product for one topic without the TUI.
var runCmd = &cobra.Command{
	Use:   "run [topic]",
	Short: "Generate and save a product for a topic (headless)",
	Long: `Runs the full productization workflow for a single topic:
research check, plan, execute, and save. The interactive review step is
skipped; the generated document is finalized as-is.

By default the run refuses to proceed without research material. Pass
--research to run a research pass first, or --force to proceed anyway.`,
	Args: cobra.ExactArgs(1),
	RunE: runHeadless,
}

// checkCmd reports research readiness for a topic.
var checkCmd = &cobra.Command{
	Use:   "check [topic]",
	Short: "Check whether research material exists for a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  checkTopic,
}

// loadCmd fetches a previously saved product.
var loadCmd = &cobra.Command{
	Use:   "load [location]",
	Short: "Print a previously saved product",
	Args:  cobra.ExactArgs(1),
	RunE:  loadProduct,
}

func init() {
	runCmd.Flags().BoolVar(&runResearch, "research", false, "Run a research pass first if material is missing")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Proceed without research material")
}

// buildWorkflow wires a client, gate, and orchestrator for headless use.
// The returned cleanup must be called when done.
func buildWorkflow(cfg *config.Config) (*workflow.Orchestrator, *gate.Gate, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := logging.Initialize("."); err != nil {
		return nil, nil, nil, err
	}
	client := sage.NewHTTPClientWithConfig(sage.HTTPConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
	})
	g := gate.New(client, cfg.GateDebounce(), cfg.GateLookupTimeout(), nil)
	orch := workflow.New(client, g, workflow.Config{
		Market:      cfg.Product.Market,
		Price:       cfg.Product.Price,
		Sections:    cfg.Product.Sections,
		Language:    cfg.Product.Language,
		ErrorWindow: cfg.ErrorWindow(),
	})
	cleanup := func() {
		orch.Close()
		g.Close()
		logging.CloseAll()
	}
	return orch, g, cleanup, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	topic := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, g, cleanup, err := buildWorkflow(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting headless run",
		zap.String("topic", topic),
		zap.Bool("research", runResearch),
		zap.Bool("force", runForce))

	orch.SetTopic(topic)
	g.CheckNow(ctx, topic)

	if err := orch.RequestGeneration(ctx, runForce); err != nil {
		return err
	}

	if orch.State() == workflow.StateNeedsResearch {
		if !runResearch {
			return fmt.Errorf("no research material for %q; rerun with --research or --force", topic)
		}
		logger.Info("running research pass first", zap.String("topic", topic))
		if err := orch.RunResearchFirst(ctx); err != nil {
			return err
		}
	}

	snap := orch.Snapshot()
	if snap.State != workflow.StateReview {
		return fmt.Errorf("generation failed: %s", snap.Message)
	}
	logger.Info("generation complete",
		zap.Int("sections", len(snap.Document.Sections)),
		zap.String("qa", snap.Document.QAStatus))
	if snap.Document.QAStatus == sage.QAWarn {
		logger.Warn("quality check reported warnings")
	}

	if err := orch.Finalize(ctx); err != nil {
		return err
	}
	snap = orch.Snapshot()
	if snap.State != workflow.StateFinalized {
		return fmt.Errorf("save failed: %s", snap.Message)
	}

	fmt.Println(snap.SavedLocation)
	return nil
}

func checkTopic(cmd *cobra.Command, args []string) error {
	topic := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	client := sage.NewHTTPClientWithConfig(sage.HTTPConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
	})

	result, err := client.ResearchCheck(cmd.Context(), topic)
	if err != nil {
		return err
	}
	if result.HasResearch {
		fmt.Printf("research found: %s\n", result.File)
		return nil
	}
	fmt.Println("no research material")
	return nil
}

func loadProduct(cmd *cobra.Command, args []string) error {
	location := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	client := sage.NewHTTPClientWithConfig(sage.HTTPConfig{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.BackendTimeout(),
	})

	product, err := client.Load(cmd.Context(), location)
	if err != nil {
		return err
	}
	for _, section := range product.Sections {
		fmt.Printf("# %s\n\n%s\n\n", section.Title, section.Content)
	}
	if product.SalesPage != "" {
		fmt.Printf("# Sales Page\n\n%s\n", product.SalesPage)
	}
	return nil
}
