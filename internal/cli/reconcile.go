package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/yungbote/secondbrain-backend/internal/app"
)

func newReconcileCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Settle document deletions left running by a crash",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, rt.log, rt.cfg)
			if err != nil {
				return rt.report("App init failed", err)
			}
			defer a.Close()

			res, err := a.Reconcile(ctx)
			if err != nil {
				return rt.report("Reconcile failed", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
