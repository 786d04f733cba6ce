package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	trainUserID int64
	trainGlobal bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a personal model (--user) or the shared global model (--global)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if trainGlobal == (trainUserID != 0) {
			return eris.New("specify exactly one of --user or --global")
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var trained bool
		if trainGlobal {
			trained, err = env.Trainer.TrainGlobal(cmd.Context())
		} else {
			trained, err = env.Trainer.TrainUser(cmd.Context(), trainUserID)
		}
		if err != nil {
			return err
		}
		if !trained {
			return eris.New("not enough data to train model")
		}
		zap.L().Info("training complete")
		return nil
	},
}

func init() {
	trainCmd.Flags().Int64Var(&trainUserID, "user", 0, "user id to train a personal model for")
	trainCmd.Flags().BoolVar(&trainGlobal, "global", false, "train the shared global model")
	rootCmd.AddCommand(trainCmd)
}
