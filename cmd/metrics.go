package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/packmind/internal/artifact"
)

var (
	metricsUserID int64
	metricsGlobal bool
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print stored training metrics for a model scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsGlobal == (metricsUserID != 0) {
			return eris.New("specify exactly one of --user or --global")
		}

		env, err := initApp(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		scope := artifact.ScopeUser(metricsUserID)
		if metricsGlobal {
			scope = artifact.ScopeGlobal()
		}

		m, ok, err := env.Artifacts.LoadMetrics(scope)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("no metrics for %s\n", scope)
			return nil
		}

		fmt.Printf("scope:     %s\n", scope)
		fmt.Printf("samples:   %d\n", m.NSamples)
		fmt.Printf("accuracy:  %.3f\n", m.Accuracy)
		fmt.Printf("precision: %.3f\n", m.Precision)
		fmt.Printf("recall:    %.3f\n", m.Recall)
		fmt.Printf("f1:        %.3f\n", m.F1)
		return nil
	},
}

func init() {
	metricsCmd.Flags().Int64Var(&metricsUserID, "user", 0, "user id of the personal scope")
	metricsCmd.Flags().BoolVar(&metricsGlobal, "global", false, "the shared global scope")
	rootCmd.AddCommand(metricsCmd)
}
