package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var notifyOnce bool

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Run the daily reminder job once (--once) or as a scheduler loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if notifyOnce {
			return env.Reminder.RunOnce(ctx)
		}
		err = env.Reminder.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	notifyCmd.Flags().BoolVar(&notifyOnce, "once", false, "run a single reminder cycle and exit")
	rootCmd.AddCommand(notifyCmd)
}
