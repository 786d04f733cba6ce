package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/importer"
)

var (
	importCSVPath  string
	importXLSXPath string
	importTrain    bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import labeled packing history from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (importCSVPath == "") == (importXLSXPath == "") {
			return eris.New("specify exactly one of --csv or --xlsx")
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(cmd.Context()); err != nil {
			return err
		}

		im := importer.New(env.Store)
		var counts importer.Counts
		if importCSVPath != "" {
			counts, err = im.ImportCSV(cmd.Context(), importCSVPath)
		} else {
			counts, err = im.ImportXLSX(cmd.Context(), importXLSXPath)
		}
		if err != nil {
			return err
		}

		zap.L().Info("import finished",
			zap.Int("rows", counts.Rows),
			zap.Int("users_created", counts.UsersCreated),
			zap.Int("items_created", counts.ItemsCreated),
			zap.Int("statuses", counts.Statuses))

		if !importTrain {
			return nil
		}

		// Retrain every scope the import may have touched.
		users, err := env.Store.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		for _, user := range users {
			trained, err := env.Trainer.TrainUser(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			if !trained {
				zap.L().Warn("skipped personal model, not enough data", zap.Int64("user_id", user.ID))
			}
		}
		if _, err := env.Trainer.TrainGlobal(cmd.Context()); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to a CSV history file")
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to an XLSX history file")
	importCmd.Flags().BoolVar(&importTrain, "train", false, "train models after importing")
	rootCmd.AddCommand(importCmd)
}
