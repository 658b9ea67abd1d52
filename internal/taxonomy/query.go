package taxonomy

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kozaktomas/orchid/internal/config"
)

// PhotoClass pairs a photo path with its class name.
type PhotoClass struct {
	Path  string
	Class string
}

// classJoins builds the joins and arguments that restrict photos to the
// where filters of q and attach the taxon at the class rank as tc.
func classJoins(q *config.ClassQuery) (string, []any) {
	var sb strings.Builder
	var args []any

	for i, rank := range slices.Sorted(maps.Keys(q.Where)) {
		fmt.Fprintf(&sb, " JOIN photos_taxa pt%[1]d ON pt%[1]d.photo_id = p.id"+
			" JOIN taxa t%[1]d ON t%[1]d.id = pt%[1]d.taxon_id"+
			" JOIN ranks r%[1]d ON r%[1]d.id = t%[1]d.rank_id AND r%[1]d.name = ? AND t%[1]d.name = ?", i)
		args = append(args, rank, q.Where[rank])
	}

	sb.WriteString(" JOIN photos_taxa ptc ON ptc.photo_id = p.id" +
		" JOIN taxa tc ON tc.id = ptc.taxon_id" +
		" JOIN ranks rc ON rc.id = tc.rank_id" +
		" WHERE rc.name = ?")
	args = append(args, q.Class)

	return sb.String(), args
}

// ImagesClasses returns every photo matching the where filters of q
// together with its taxon name at the class rank, ordered by class.
func (d *DB) ImagesClasses(ctx context.Context, q *config.ClassQuery) ([]PhotoClass, error) {
	joins, args := classJoins(q)
	rows, err := d.db.QueryContext(ctx, "SELECT p.path, tc.name FROM photos p"+joins+" ORDER BY tc.name, p.path", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos for %s: %w", q, err)
	}
	defer rows.Close()

	var result []PhotoClass
	for rows.Next() {
		var pc PhotoClass
		if err := rows.Scan(&pc.Path, &pc.Class); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		result = append(result, pc)
	}
	return result, rows.Err()
}

// Classes returns the distinct class names selected by q, ordered.
func (d *DB) Classes(ctx context.Context, q *config.ClassQuery) ([]string, error) {
	joins, args := classJoins(q)
	rows, err := d.db.QueryContext(ctx, "SELECT DISTINCT tc.name FROM photos p"+joins+" ORDER BY tc.name", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes for %s: %w", q, err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, name)
	}
	return classes, rows.Err()
}

