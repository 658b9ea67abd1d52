package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dataCmd = &cobra.Command{
	Use:   "data PATH",
	Short: "Create a tab separated file with training data",
	Long: `Create a tab separated file with training data for the photos under PATH.

Preprocessing steps, features to extract and the class query are read from
the YAML file given with --conf. The taxonomy database selects the photos
and their classes.

Examples:
  orchid data --conf orchids.yml -o train.tsv ~/photos
  orchid data --conf orchids.yml --db taxa.db -o train.tsv ~/photos`,
	Args: cobra.ExactArgs(1),
	RunE: runData,
}

func init() {
	rootCmd.AddCommand(dataCmd)

	dataCmd.Flags().String("conf", "", "Path to a YAML file with feature extraction parameters")
	dataCmd.Flags().String("db", "", "Taxonomy database (defaults to photos.db in PATH)")
	dataCmd.Flags().StringP("output", "o", "", "Output file for training data, overwritten if it exists")
	dataCmd.Flags().Int("workers", 0, "Number of photos processed in parallel (default: CPU bound pool size)")
	_ = dataCmd.MarkFlagRequired("conf")
	_ = dataCmd.MarkFlagRequired("output")
}

func runData(cmd *cobra.Command, args []string) error {
	basePath := args[0]
	dbPath := mustGetString(cmd, "db")
	if dbPath == "" {
		dbPath = filepath.Join(basePath, "photos.db")
	}

	logger, err := newLogger(config.Load())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync

	cfg, err := config.LoadTrainer(mustGetString(cmd, "conf"))
	if err != nil {
		return err
	}
	maker, err := trainer.NewMakeTrainData(cfg, basePath, dbPath, logger)
	if err != nil {
		return err
	}
	if workers := mustGetInt(cmd, "workers"); workers > 0 {
		maker.Workers = workers
	}

	res, err := maker.Export(cmd.Context(), mustGetString(cmd, "output"))
	if err != nil {
		logger.Error("training data export failed", zap.Error(err))
		return err
	}

	fmt.Printf("Photos:  %d\n", res.Photos)
	fmt.Printf("Classes: %d\n", res.Classes)
	fmt.Printf("Columns: %d\n", res.Columns)
	if len(res.Failed) > 0 {
		fmt.Printf("Failed:  %d\n", len(res.Failed))
		for _, f := range res.Failed {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}
