package main

import (
	"github.com/spf13/cobra"

	"github.com/xraph/volshift/workflow"
)

func newDefinitionCmd(g *globals) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Print the state machine definition for the configured activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := g.load()
			if err != nil {
				return err
			}
			activities, err := cfg.Activities()
			if err != nil {
				return err
			}
			def := workflow.Definition{
				Comment:          comment,
				Activities:       activities,
				CleanupHeartbeat: 3 * cfg.Runtime.HeartbeatInterval,
			}
			if err := def.Validate(); err != nil {
				return err
			}
			doc, err := def.Render()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(doc); err != nil {
				return err
			}
			_, err = out.Write([]byte("\n"))
			return err
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "volshift volume migration", "state machine comment")
	return cmd
}
