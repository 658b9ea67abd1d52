package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "orchid",
	Short: "Identify orchids on photos with a trained neural network",
	Long: `Orchid extracts phenotypes from orchid photos, trains artificial neural
networks on them and classifies new photos. The web server lets visitors
upload photos and identify them with a trained network.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Print debug messages")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// newLogger builds the command logger from LOG_LEVEL, or debug level with --debug.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	return logging.New(level)
}

// loadTrainerConfig reads a trainer configuration. An empty path yields an
// empty configuration for commands where --conf is optional.
func loadTrainerConfig(path string) (*config.TrainerConfig, error) {
	if path == "" {
		return &config.TrainerConfig{}, nil
	}
	return config.LoadTrainer(path)
}
