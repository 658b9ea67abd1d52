package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/orchid/internal/features"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultRanks are the directory levels of a photo tree, outermost first.
var DefaultRanks = []string{"genus", "section", "species"}

// ImportResult summarizes an import.
type ImportResult struct {
	Photos  int // photos added
	Taxa    int // taxa added
	Skipped int // image files not at the depth of the last rank
}

var (
	titleCaser = cases.Title(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// NormalizeName cleans a taxon name: Unicode NFC, surrounding whitespace
// and underscores removed, genus names capitalized and every other rank
// lower case.
func NormalizeName(name string, level int) string {
	name = norm.NFC.String(strings.TrimSpace(strings.ReplaceAll(name, "_", " ")))
	if level == 0 {
		return titleCaser.String(name)
	}
	return lowerCaser.String(name)
}

// Import adds every image below root to the database. Each directory level
// below root names a taxon of the corresponding rank, so with the default
// ranks photos are found at root/Genus/Section/Species/photo.jpg. Photos
// and taxa already in the database are left unchanged.
func (d *DB) Import(ctx context.Context, root string, ranks []string) (*ImportResult, error) {
	if len(ranks) == 0 {
		ranks = DefaultRanks
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	im := &importer{tx: tx, ranks: map[string]int64{}, taxa: map[taxonKey]int64{}}
	result := &ImportResult{}

	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !features.IsImageFile(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		dirs := strings.Split(rel, "/")
		dirs = dirs[:len(dirs)-1]
		if len(dirs) != len(ranks) {
			result.Skipped++
			return nil
		}

		photoID, added, err := im.photo(ctx, rel)
		if err != nil {
			return err
		}
		if added {
			result.Photos++
		}

		var parent *int64
		for level, dir := range dirs {
			taxonID, added, err := im.taxon(ctx, ranks[level], NormalizeName(dir, level), parent)
			if err != nil {
				return err
			}
			if added {
				result.Taxa++
			}
			if err := im.link(ctx, photoID, taxonID); err != nil {
				return err
			}
			parent = &taxonID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", root, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return result, nil
}

type taxonKey struct {
	rank   int64
	name   string
	parent int64
}

type importer struct {
	tx    *sql.Tx
	ranks map[string]int64
	taxa  map[taxonKey]int64
}

func (im *importer) photo(ctx context.Context, path string) (int64, bool, error) {
	var id int64
	err := im.tx.QueryRowContext(ctx, "SELECT id FROM photos WHERE path = ?", path).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}
	res, err := im.tx.ExecContext(ctx, "INSERT INTO photos (path) VALUES (?)", path)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert photo %s: %w", path, err)
	}
	id, err = res.LastInsertId()
	return id, true, err
}

func (im *importer) rank(ctx context.Context, name string) (int64, error) {
	if id, ok := im.ranks[name]; ok {
		return id, nil
	}
	var id int64
	err := im.tx.QueryRowContext(ctx, "SELECT id FROM ranks WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		var res sql.Result
		res, err = im.tx.ExecContext(ctx, "INSERT INTO ranks (name) VALUES (?)", name)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve rank %s: %w", name, err)
	}
	im.ranks[name] = id
	return id, nil
}

func (im *importer) taxon(ctx context.Context, rankName, name string, parent *int64) (int64, bool, error) {
	rankID, err := im.rank(ctx, rankName)
	if err != nil {
		return 0, false, err
	}
	key := taxonKey{rank: rankID, name: name}
	if parent != nil {
		key.parent = *parent
	}
	if id, ok := im.taxa[key]; ok {
		return id, false, nil
	}

	var id int64
	if parent == nil {
		err = im.tx.QueryRowContext(ctx,
			"SELECT id FROM taxa WHERE rank_id = ? AND name = ? AND parent_id IS NULL", rankID, name).Scan(&id)
	} else {
		err = im.tx.QueryRowContext(ctx,
			"SELECT id FROM taxa WHERE rank_id = ? AND name = ? AND parent_id = ?", rankID, name, *parent).Scan(&id)
	}
	added := false
	if errors.Is(err, sql.ErrNoRows) {
		var res sql.Result
		res, err = im.tx.ExecContext(ctx, "INSERT INTO taxa (rank_id, name, parent_id) VALUES (?, ?, ?)", rankID, name, parent)
		if err == nil {
			id, err = res.LastInsertId()
			added = true
		}
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve taxon %s %s: %w", rankName, name, err)
	}
	im.taxa[key] = id
	return id, added, nil
}

func (im *importer) link(ctx context.Context, photoID, taxonID int64) error {
	var n int
	err := im.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM photos_taxa WHERE photo_id = ? AND taxon_id = ?", photoID, taxonID).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = im.tx.ExecContext(ctx, "INSERT INTO photos_taxa (photo_id, taxon_id) VALUES (?, ?)", photoID, taxonID)
	return err
}
