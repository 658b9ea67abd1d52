package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify IMAGE",
	Short: "Classify an image",
	Long: `Classify an image with a trained network.

The classes are selected by the class query of --conf in the taxonomy
database given with --db and printed best first.

Examples:
  orchid classify --ann orchids.ann --conf orchids.yml --db photos.db flower.jpg
  orchid classify --ann orchids.ann --conf orchids.yml --db photos.db --json flower.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("ann", "", "Path to a trained artificial neural network file")
	classifyCmd.Flags().String("conf", "", "Path to a YAML file with the class query")
	classifyCmd.Flags().String("db", "", "Taxonomy database")
	classifyCmd.Flags().Float64("error", constants.DefaultMaxError, "Maximum error for classification")
	classifyCmd.Flags().Bool("json", false, "Output as JSON")
	for _, name := range []string{"ann", "conf", "db"} {
		_ = classifyCmd.MarkFlagRequired(name)
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadTrainer(mustGetString(cmd, "conf"))
	if err != nil {
		return err
	}
	classifier, err := trainer.NewImageClassifier(cmd.Context(), cfg, mustGetString(cmd, "ann"), mustGetString(cmd, "db"))
	if err != nil {
		return err
	}

	ranked, err := classifier.Classify(args[0], mustGetFloat64(cmd, "error"))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}
	fmt.Printf("Image is classified as %s\n", codeword.Join(ranked))
	return nil
}
