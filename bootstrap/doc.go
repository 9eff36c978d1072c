// Package bootstrap runs the service lifecycle: validate config, initialise
// logging, start components, run hooks, wait for a shutdown signal, then stop
// everything in reverse order within a graceful timeout.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(server)
//	app.OnReady(func(ctx context.Context) error { ... })
//	err = app.Run(ctx)
package bootstrap
