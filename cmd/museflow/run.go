package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/museworks/museflow/config"
	core "github.com/museworks/museflow/internal/agent/core"
	"github.com/museworks/museflow/internal/store"
	"github.com/museworks/museflow/mcp"
	"github.com/museworks/museflow/provider"
)

// runCMD executes one workflow run from the command line, useful for
// debugging a request end to end without the HTTP layer.
func runCMD() *cobra.Command {
	var cfgPath string
	var threadID string

	var run = &cobra.Command{
		Use:   "run [request...]",
		Short: "Run the planning workflow once for a request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			request := strings.Join(args, " ")

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}

			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}

			toolCmd := cfg.Tools.ServerCommand
			if len(toolCmd) == 0 {
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				toolCmd = []string{exe, "tools"}
			}

			if threadID == "" {
				threadID = uuid.NewString()
			}
			engine := core.NewEngine(
				llm,
				mcp.AgentGateway{G: mcp.NewGateway(toolCmd)},
				store.AgentCheckpoints{S: st},
				cfg.Agent.SnapshotDir,
				cfg.Agent.MaxToolRounds,
			)
			final, err := engine.Run(ctx, core.PlanState{InitialRequest: request}, threadID)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(final, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	run.Flags().StringVar(&threadID, "thread", "", "continuation id (resumes an interrupted run)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
