// Package bootstrap runs the nodeflow process lifecycle: typed config
// defaults and validation, logger setup, start/ready/stop hooks, a health
// based ready check, and graceful shutdown on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStart(openStore)
//	app.OnStop(closeStore)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    return runFlow(ctx)
//	})
//
// Run serves until a signal arrives; RunTask runs a finite command and
// cancels it on a signal.
package bootstrap
