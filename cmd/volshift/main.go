// Command volshift runs the volume migration workers and event intake.
//
// Usage:
//
//	volshift serve --config volshift.yaml
//	volshift migrate
//	volshift definition > state-machine.json
//	volshift dlq list --server http://localhost:8080 --unresolved
//	volshift dlq resolve dlq_0190a6f0c3b87c2e9d1f5a3b4c5d6e7f
//	volshift event send event.json
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/volshift/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	configPath string
}

// load reads the configuration and builds the process logger from it.
func (g *globals) load() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "volshift",
		Short:         "Grow or replace a running instance's volume without losing its data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to the YAML config file (default ./volshift.yaml)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newDefinitionCmd(g),
		newDLQCmd(g),
		newEventCmd(g),
	)
	return root
}
