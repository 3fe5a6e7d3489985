package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/volshift/client"
	"github.com/xraph/volshift/workflow"
)

type remoteFlags struct {
	server string
	apiKey string
}

func (r *remoteFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.server, "server", envOr("VOLSHIFT_SERVER", "http://localhost:8080"), "volshift server URL")
	cmd.PersistentFlags().StringVar(&r.apiKey, "api-key", os.Getenv("VOLSHIFT_HTTP_API_KEY"), "API key for the server")
}

func (r *remoteFlags) client() (*client.Client, error) {
	return client.New(r.server, client.WithAPIKey(r.apiKey), client.WithRetry(2, 250*time.Millisecond))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newDLQCmd(_ *globals) *cobra.Command {
	remote := &remoteFlags{}
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and resolve failed stages on a running server",
	}
	remote.bind(cmd)

	var (
		stage      string
		unresolved bool
		limit      int
		asJSON     bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List DLQ entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}
			opts := client.ListDLQOpts{Limit: limit, Unresolved: unresolved}
			if stage != "" {
				s, err := workflow.ParseStage(stage)
				if err != nil {
					return err
				}
				opts.Stage = s
			}
			entries, err := c.ListDLQ(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTAGE\tRESOURCE\tCODE\tFAILED\tRESOLVED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
					e.ID, e.Stage, e.ResourceID, e.Code, e.FailedAt.Format(time.RFC3339), e.Resolved())
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&stage, "stage", "", "only entries of this stage")
	list.Flags().BoolVar(&unresolved, "unresolved", false, "hide resolved entries")
	list.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one DLQ entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}
			entry, err := c.GetDLQ(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entry)
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve <id>...",
		Short: "Mark DLQ entries handled",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remote.client()
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, err := c.ResolveDLQ(cmd.Context(), id); err != nil {
					return fmt.Errorf("resolve %s: %w", id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "resolved", id)
			}
			return nil
		},
	}

	cmd.AddCommand(list, get, resolve)
	return cmd
}

func newEventCmd(_ *globals) *cobra.Command {
	remote := &remoteFlags{}
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send events to a running server",
	}
	remote.bind(cmd)

	send := &cobra.Command{
		Use:   "send <file|->",
		Short: "Post one EventBridge envelope and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rd io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				rd = f
			}
			raw, err := io.ReadAll(rd)
			if err != nil {
				return err
			}
			if !json.Valid(raw) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}
			c, err := remote.client()
			if err != nil {
				return err
			}
			outcome, err := c.PostEvent(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	cmd.AddCommand(send)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
