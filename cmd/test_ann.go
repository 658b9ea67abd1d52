package cmd

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/spf13/cobra"
)

var testANNCmd = &cobra.Command{
	Use:   "test-ann TEST_DATA",
	Short: "Test an artificial neural network",
	Long: `Test a trained network on a test data file and print the mean square error.

With --output a table with the classification of every sample is written.
The classes are selected by the class query of --conf in the taxonomy
database given with --db.

Examples:
  orchid test-ann --ann orchids.ann test.tsv
  orchid test-ann --ann orchids.ann --conf orchids.yml --db photos.db -o results.tsv test.tsv`,
	Args: cobra.ExactArgs(1),
	RunE: runTestANN,
}

func init() {
	rootCmd.AddCommand(testANNCmd)

	testANNCmd.Flags().String("ann", "", "A trained artificial neural network")
	testANNCmd.Flags().String("db", "", "Taxonomy database, required with --output")
	testANNCmd.Flags().StringP("output", "o", "", "Output file for the classification of each sample")
	testANNCmd.Flags().String("conf", "", "Path to a YAML file with the class query")
	testANNCmd.Flags().Float64("error", constants.DefaultMaxError, "Maximum mean square error for classification")
	_ = testANNCmd.MarkFlagRequired("ann")
}

func runTestANN(cmd *cobra.Command, args []string) error {
	output := mustGetString(cmd, "output")
	dbPath := mustGetString(cmd, "db")
	if output != "" && dbPath == "" {
		return errors.New("option --output must be used together with --db")
	}

	logger, err := newLogger(config.Load())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync

	cfg, err := loadTrainerConfig(mustGetString(cmd, "conf"))
	if err != nil {
		return err
	}
	tester, err := trainer.NewTestANN(cfg, logger)
	if err != nil {
		return err
	}

	mse, err := tester.Test(mustGetString(cmd, "ann"), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("MSE: %g\n", mse)

	if output == "" {
		return nil
	}
	res, err := tester.ExportResults(cmd.Context(), output, dbPath, mustGetFloat64(cmd, "error"))
	if err != nil {
		return err
	}
	fmt.Printf("Correct: %d/%d (%.3f)\n", res.Correct, res.Total, res.Fraction)
	return nil
}
