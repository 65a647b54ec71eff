package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/secondbrain-backend/internal/app"
	"github.com/yungbote/secondbrain-backend/internal/platform/envutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

type runtime struct {
	log *logger.Logger
	cfg app.Config
}

// NewRootCmd builds the CLI. Running it without a subcommand serves HTTP.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}
	var configFile string

	root := &cobra.Command{
		Use:           "secondbrain",
		Short:         "Second brain backend: ingest notes, search them and ask questions over them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
					return err
				}
			}
			log, err := logger.New(envutil.String("LOG_MODE", "development"))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cfg, err := app.LoadConfig(log)
			if err != nil {
				log.Sync()
				return fmt.Errorf("load config: %w", err)
			}
			rt.log = log
			rt.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.log != nil {
				rt.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML file with pipeline tunables (overrides CONFIG_FILE)")

	serve := newServeCmd(rt)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(rt), newReconcileCmd(rt))
	return root
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// report logs err before cobra prints it, so failures reach structured logs.
func (rt *runtime) report(msg string, err error) error {
	if err != nil && rt.log != nil {
		rt.log.Error(msg, "error", err)
	}
	return err
}
