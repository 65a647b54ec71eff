package cli

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/secondbrain-backend/internal/app"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate, bootstrap the vector index and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.cfg.Validate(); err != nil {
				return rt.report("Invalid configuration", err)
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, rt.log, rt.cfg)
			if err != nil {
				return rt.report("App init failed", err)
			}
			defer a.Close()

			if !skipMigrate {
				if err := a.Migrate(); err != nil {
					return rt.report("Migration failed", err)
				}
			}
			if err := a.Bootstrap(ctx); err != nil {
				return rt.report("Bootstrap failed", err)
			}
			return rt.report("Server exited", a.Run(ctx))
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not auto-migrate tables at startup")
	return cmd
}
