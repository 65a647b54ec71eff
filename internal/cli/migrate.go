package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/yungbote/secondbrain-backend/internal/app"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(context.Background(), rt.log, rt.cfg)
			if err != nil {
				return rt.report("App init failed", err)
			}
			defer a.Close()
			if err := a.Migrate(); err != nil {
				return rt.report("Migration failed", err)
			}
			rt.log.Info("Migration complete")
			return nil
		},
	}
}
