package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dtce-ai/dtce-rag/schema"
)

func newAskCommand(root *rootOptions) *cobra.Command {
	var (
		project string
		ns      string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:     "ask <question...>",
		Short:   "Answer a single question",
		Example: "  dtce-rag ask \"what is our wellness policy\"\n  dtce-rag ask --project 225001 \"what foundation type was used\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			serveMetrics(ctx, cfg.Metrics.Addr)

			ans := a.orch.ProcessQuery(ctx, schema.Query{
				RawText:         strings.Join(args, " "),
				ProjectFilter:   project,
				NamespaceFilter: ns,
			})
			if asJSON {
				return printJSON(cmd.OutOrStdout(), ans)
			}
			printAnswer(cmd.OutOrStdout(), ans)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "restrict the search to a six-digit project number")
	cmd.Flags().StringVar(&ns, "namespace", "", "restrict the search to one namespace (folder)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}
