package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/nodeflow/server"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var nodeID, portID string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one data output of a document",
		Long: `Resolve pulls the value of a single data output port, evaluating every
upstream node it depends on, and prints the value with the pass record.`,
		Example: "  nodeflow resolve -d counter.yaml --node inc --port Sum",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.runtime(true)
			if err != nil {
				return err
			}
			return rt.app.RunTask(cmd.Context(), func(ctx context.Context) error {
				v, meta, err := rt.engine.ResolveSingleOutput(ctx, rt.graph, nodeID, portID)
				if meta == nil {
					return err
				}
				if perr := printJSON(cmd.OutOrStdout(), server.ResolveResponse{
					Value: server.JSONSafe(v),
					Meta:  server.SafeMeta(meta),
				}); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "node id")
	cmd.Flags().StringVar(&portID, "port", "", "output port id")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("port")
	return cmd
}
