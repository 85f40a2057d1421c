package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/nodeflow/server"
	"github.com/kbukum/nodeflow/sse"
	"github.com/kbukum/nodeflow/version"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the debug API for an editor",
		Long: `Serve exposes resolution, execution flows, breakpoints and the global
store over HTTP. A document given with --document is loaded at startup;
editors replace it with PUT /v1/graph.`,
		Example: "  nodeflow serve -d counter.yaml --port 7420",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.runtime(false)
			if err != nil {
				return err
			}
			cfg := rt.app.Cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Server.Validate(); err != nil {
				return err
			}

			rt.app.OnReady(func(ctx context.Context) error {
				srv := server.New(cfg.Server, rt.app.Logger)
				srv.ApplyMiddleware(rt.metrics)
				srv.RegisterDefaultEndpoints(cfg.Name, version.Get().Short(), rt.app.HealthCheckers()...)

				hub := sse.NewHub()
				go hub.Run()

				api := server.NewAPI(rt.engine, rt.loader, rt.app.Logger).
					WithEvents(hub).
					WithPersistentStore(cfg.Store.Persistent())
				api.Register(srv.GinEngine())
				if rt.doc != nil {
					api.Use(rt.doc, rt.graph)
				}
				if err := srv.Start(ctx); err != nil {
					hub.Stop()
					return err
				}
				// Stop hooks run in reverse: event streams end before the
				// server drains its connections.
				rt.app.OnStop(srv.Stop, func(context.Context) error {
					hub.Stop()
					return nil
				})
				return nil
			})
			return rt.app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
