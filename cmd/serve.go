package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/database/postgres"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/kozaktomas/orchid/internal/web"
	"github.com/kozaktomas/orchid/internal/web/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Orchid web server.
Visitors upload orchid photos, browse them and identify them with the
network configured by ORCHID_TRAINER_CONFIG, ORCHID_ANN and ORCHID_TAXA_DB.
Without a network the identification endpoints are disabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default: WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default: WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (default: WEB_SESSION_SECRET)")
}

// applyServeFlags lets flags override the environment configuration.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}
}

// loadIdentifier loads the trained network used by the web server. It
// returns nil when no network is configured.
func loadIdentifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (handlers.Identifier, error) {
	if !cfg.Classifier.Enabled() {
		logger.Warn("classifier not configured, identification disabled")
		return nil, nil
	}
	trainerCfg, err := config.LoadTrainer(cfg.Classifier.TrainerConfig)
	if err != nil {
		return nil, err
	}
	classifier, err := trainer.NewImageClassifier(ctx, trainerCfg, cfg.Classifier.ANN, cfg.Classifier.TaxaDB)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	logger.Info("classifier loaded",
		zap.String("ann", cfg.Classifier.ANN),
		zap.Int("classes", len(classifier.Classes())))
	return classifier, nil
}

// saveHNSWIndex saves the phenotype HNSW index to disk during shutdown.
func saveHNSWIndex(logger *zap.Logger) {
	if rebuilder := database.GetPhenotypeHNSWRebuilder(); rebuilder != nil {
		if err := rebuilder.SaveHNSWIndex(); err != nil {
			logger.Warn("failed to save phenotype index", zap.Error(err))
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Web.SessionSecret == "" {
		logger.Warn("WEB_SESSION_SECRET not set, session cookies use a development secret")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to PostgreSQL")
	pool, err := postgres.Initialize(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	identifier, err := loadIdentifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Media.Dir, 0o755); err != nil { //nolint:gosec // media is public
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	server := web.NewServer(cfg, postgres.NewSessionRepository(pool), identifier, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down")
		saveHNSWIndex(logger)

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Orchid on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
