package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/packmind/internal/model"
)

var (
	predictUserID  int64
	predictWeekday int
	predictHoliday bool
	predictWork    bool
	predictGym     bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a user's active items for a simulated day",
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictUserID == 0 {
			return eris.New("--user is required")
		}
		if predictWeekday < 0 || predictWeekday > 6 {
			return eris.New("--weekday must be 0 (Monday) .. 6 (Sunday)")
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Store.ListItems(cmd.Context(), predictUserID, true)
		if err != nil {
			return err
		}
		strategy, err := env.Predictor.Resolve(predictUserID)
		if err != nil {
			return err
		}

		features := model.ContextFeatures{
			Weekday:      predictWeekday,
			IsHoliday:    flagToInt(predictHoliday),
			HasWorkEvent: flagToInt(predictWork),
			HasGymEvent:  flagToInt(predictGym),
		}
		predictions := strategy.Predict(features, items)

		fmt.Printf("source: %s\n", strategy.Source)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM\tNEED\tFORGET\tSCORE")
		for _, p := range predictions {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\n", p.Name, p.NeedProbability, p.ForgetRisk, p.Score)
		}
		return w.Flush()
	},
}

func flagToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func init() {
	predictCmd.Flags().Int64Var(&predictUserID, "user", 0, "user id")
	predictCmd.Flags().IntVar(&predictWeekday, "weekday", 0, "weekday, 0=Monday .. 6=Sunday")
	predictCmd.Flags().BoolVar(&predictHoliday, "holiday", false, "the day is a holiday")
	predictCmd.Flags().BoolVar(&predictWork, "work", false, "the day has a work event")
	predictCmd.Flags().BoolVar(&predictGym, "gym", false, "the day has a gym event")
	rootCmd.AddCommand(predictCmd)
}
