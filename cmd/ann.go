package cmd

import (
	"fmt"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var annCmd = &cobra.Command{
	Use:   "ann TRAIN_DATA",
	Short: "Train an artificial neural network",
	Long: `Train an artificial neural network on a training data file.

Training parameters are read from the ann section of the YAML file given
with --conf. --epochs and --error override the configured values.

Examples:
  orchid ann --conf orchids.yml -o orchids.ann train.tsv
  orchid ann --epochs 5000 --error 0.001 -o orchids.ann train.tsv`,
	Args: cobra.ExactArgs(1),
	RunE: runANN,
}

func init() {
	rootCmd.AddCommand(annCmd)

	annCmd.Flags().String("conf", "", "Path to a YAML file with ANN training parameters")
	annCmd.Flags().Int("epochs", 0, "Maximum number of epochs, overrides --conf")
	annCmd.Flags().Float64("error", 0, "Desired mean square error on training data, overrides --conf")
	annCmd.Flags().StringP("output", "o", "", "Output file for the network, overwritten if it exists")
	annCmd.Flags().Int("seed", 0, "Seed for the initial weights (0 picks a random seed)")
	_ = annCmd.MarkFlagRequired("output")
}

func runANN(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(config.Load())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync

	cfg, err := loadTrainerConfig(mustGetString(cmd, "conf"))
	if err != nil {
		return err
	}
	overrides := trainer.Overrides{
		Epochs: optionalInt(cmd, "epochs"),
		Error:  optionalFloat64(cmd, "error"),
	}
	maker, err := trainer.NewMakeANN(cfg, overrides, logger)
	if err != nil {
		return err
	}
	if seed := mustGetInt(cmd, "seed"); seed > 0 {
		maker.Seed = uint64(seed)
	}

	summary, err := maker.Train(cmd.Context(), args[0], mustGetString(cmd, "output"))
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		return err
	}

	fmt.Printf("Epochs: %d\n", summary.Epochs)
	fmt.Printf("MSE:    %g\n", summary.MSE)
	return nil
}
