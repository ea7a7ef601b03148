package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/archive"
	"github.com/jatanrathod13/researcher/internal/completion"
	"github.com/jatanrathod13/researcher/internal/server"
	"github.com/jatanrathod13/researcher/internal/session"
	"github.com/jatanrathod13/researcher/internal/telemetry"
	"github.com/jatanrathod13/researcher/internal/workflow"
	"github.com/jatanrathod13/researcher/provider"
	websearch "github.com/jatanrathod13/researcher/tools/web_search"
)

func main() {
	var root = &cobra.Command{Use: "researcher"}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the research HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, orch, err := buildOrchestrator(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr == "" {
				serveAddr = os.Getenv("RESEARCHER_HTTP_ADDR")
			}
			return server.New(cfg, orch).Start(serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")

	var outPath string
	var run = &cobra.Command{
		Use:   "run [topic...]",
		Short: "Research a topic once and write the report to a file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, orch, err := buildOrchestrator(cfgPath)
			if err != nil {
				return err
			}
			topic := strings.Join(args, " ")

			ctx := context.Background()
			if cfg.General.DefaultTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.General.DefaultTimeout)
				defer cancel()
			}

			sess, runCtx := orch.Sessions().Create(ctx, topic)
			orch.Run(runCtx, sess)
			orch.Sessions().Finish(sess.ID())

			snap := sess.SnapshotState()
			filename, _, body := workflow.Artifact(snap)
			if outPath != "" {
				filename = outPath
			}
			if err := os.WriteFile(filename, body, 0o644); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			log.Printf("session %s finished %s, report written to %s", sess.ID(), snap.Status, filename)
			if snap.Status == session.StatusFailed {
				return fmt.Errorf("research failed: %s", snap.Error)
			}
			return nil
		},
	}
	run.Flags().StringVar(&outPath, "out", "", "output file (default derived from report title)")

	root.AddCommand(serve, run)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildOrchestrator wires the shared dependency graph from configuration.
func buildOrchestrator(cfgPath string) (*config.Config, *workflow.Orchestrator, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	tele := telemetry.New(cfg.Telemetry, nil)

	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
	if err != nil {
		return nil, nil, err
	}

	searcher, err := websearch.FromConfig(cfg.Search)
	if err != nil {
		// research degrades to model knowledge only; keep going
		log.Printf("web search disabled: %v", err)
		searcher = nil
	}

	runner := completion.NewRunner(cfg, llm, searcher, tele)
	orch := workflow.New(cfg, runner, session.NewManager(), archive.New(cfg.Archive), tele)
	return cfg, orch, nil
}
