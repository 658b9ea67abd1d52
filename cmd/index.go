package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/database/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Phenotype index commands",
	Long:  `Commands for the HNSW index of photo phenotypes used by similarity search.`,
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the phenotype index from PostgreSQL",
	Long: `Rebuild the in-memory HNSW index from the stored phenotypes and save it
to HNSW_INDEX_PATH, so the next server start loads it instead of building it.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

var indexSimilarCmd = &cobra.Command{
	Use:   "similar PHOTO_ID",
	Short: "Find photos with a similar phenotype",
	Long: `Find the photos nearest to a photo by cosine distance of their phenotypes.
Lower distance values indicate more similar photos. The photo must have
been identified before, which stores its phenotype.

Examples:
  orchid index similar 42
  orchid index similar 42 --limit 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexSimilar,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexSimilarCmd)

	indexSimilarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Maximum number of results")
	indexSimilarCmd.Flags().Bool("json", false, "Output as JSON")
}

// initStorage connects to PostgreSQL and registers the repositories.
func initStorage(cmd *cobra.Command) (*postgres.Pool, *zap.Logger, error) {
	cfg := config.Load()
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Initialize(cmd.Context(), &cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return pool, logger, nil
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	pool, logger, err := initStorage(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer logger.Sync() //nolint:errcheck // stderr sync

	rebuilder := database.GetPhenotypeHNSWRebuilder()
	if rebuilder == nil || !rebuilder.IsHNSWEnabled() {
		return errors.New("phenotype index is not available")
	}
	if err := rebuilder.RebuildHNSW(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Indexed phenotypes: %d\n", rebuilder.HNSWCount())
	return nil
}

// SimilarPhoto is a similar photo result
type SimilarPhoto struct {
	PhotoID      int64   `json:"photo_id"`
	OriginalName string  `json:"original_name"`
	Distance     float64 `json:"distance"`
	Similarity   float64 `json:"similarity"` // 1 - distance, for easier interpretation
}

func runIndexSimilar(cmd *cobra.Command, args []string) error {
	photoID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || photoID <= 0 {
		return fmt.Errorf("invalid photo id %q", args[0])
	}
	limit := mustGetInt(cmd, "limit")

	pool, logger, err := initStorage(cmd)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer logger.Sync() //nolint:errcheck // stderr sync

	ctx := cmd.Context()
	phenotypes, err := database.GetPhenotypeReader(ctx)
	if err != nil {
		return err
	}
	photos, err := database.GetPhotoReader(ctx)
	if err != nil {
		return err
	}

	stored, err := phenotypes.Get(ctx, photoID)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("photo %d has no phenotype, identify it first", photoID)
	}
	matches, distances, err := phenotypes.FindSimilar(ctx, stored.Phenotype, limit+1)
	if err != nil {
		return err
	}

	results := make([]SimilarPhoto, 0, limit)
	for i, m := range matches {
		if m.PhotoID == photoID || len(results) == limit {
			continue
		}
		r := SimilarPhoto{PhotoID: m.PhotoID, Distance: distances[i], Similarity: 1 - distances[i]}
		if p, err := photos.Get(ctx, m.PhotoID); err == nil && p != nil {
			r.OriginalName = p.OriginalName
		}
		results = append(results, r)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHOTO\tNAME\tDISTANCE\tSIMILARITY")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\n", r.PhotoID, r.OriginalName, r.Distance, r.Similarity)
	}
	return w.Flush()
}
