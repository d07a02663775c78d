package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/museworks/museflow/config"
	"github.com/museworks/museflow/mcp"
)

// toolsCMD serves the tool gateway over stdio. The serve and run commands
// launch this as a subprocess for each workflow step.
func toolsCMD() *cobra.Command {
	var cfgPath string
	var tools = &cobra.Command{
		Use:   "tools",
		Short: "Serve agent tools over stdio JSON-RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			srv, err := mcp.NewServer(cfg)
			if err != nil {
				return err
			}
			return srv.Serve(os.Stdin, os.Stdout)
		},
	}
	tools.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return tools
}
