package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/packmind/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the daily reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		serverCfg := cfg.Server
		if servePort != 0 {
			serverCfg.Port = servePort
		}
		api := server.New(env.Store, env.Artifacts, env.Trainer, env.Predictor, serverCfg, cfg.Auth)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return api.Start(ctx)
		})
		g.Go(func() error {
			return env.Reminder.Run(ctx)
		})

		err = g.Wait()
		if ctx.Err() != nil {
			zap.L().Info("shutdown complete")
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override configured HTTP port")
	rootCmd.AddCommand(serveCmd)
}
