// Package trainer runs the trainer tasks: exporting training data,
// training and testing networks, and classifying photos.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/taxonomy"
)

// ErrNoTestData is returned when results are exported before a test ran.
var ErrNoTestData = errors.New("test data is not set")

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("cannot open %s (no such file)", path)
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("cannot open %s (no such directory)", path)
	}
	return nil
}

func validate(cfg *config.TrainerConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing trainer configuration", config.ErrConfiguration)
	}
	return cfg.Validate()
}

// queryClasses returns the classes selected by the class query of cfg.
func queryClasses(ctx context.Context, cfg *config.TrainerConfig, dbPath string) ([]string, error) {
	q, err := cfg.RequireClassQuery()
	if err != nil {
		return nil, err
	}
	db, err := taxonomy.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	classes, err := db.Classes(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes found for query %s", q)
	}
	return classes, nil
}

func newCodewords(classes []string) *codeword.Set {
	return codeword.New(classes, constants.CodewordNegative, constants.CodewordPositive)
}
