package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// Sort keys accepted by SortRows.
var SortKeys = []string{"total", "keyword", "score", "max", "mean", "rank"}

// SortRows returns a sorted copy of rows. Ties keep their original order.
// Rows without a rank sort after ranked rows in either direction.
func SortRows(rows []aggregate.Row, key string, desc bool) ([]aggregate.Row, error) {
	var less func(a, b aggregate.Row) bool
	switch strings.ToLower(key) {
	case "", "total":
		less = func(a, b aggregate.Row) bool { return a.TotalOccurrences < b.TotalOccurrences }
	case "keyword":
		less = func(a, b aggregate.Row) bool { return strings.ToLower(a.Phrase) < strings.ToLower(b.Phrase) }
	case "score":
		less = func(a, b aggregate.Row) bool { return a.Score < b.Score }
	case "max":
		less = func(a, b aggregate.Row) bool { return a.MaxOccurrence < b.MaxOccurrence }
	case "mean":
		less = func(a, b aggregate.Row) bool { return a.MeanTop3 < b.MeanTop3 }
	case "rank":
		out := append([]aggregate.Row(nil), rows...)
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Rank, out[j].Rank
			switch {
			case a == nil || b == nil:
				return a != nil && b == nil
			case desc:
				return *a > *b
			default:
				return *a < *b
			}
		})
		return out, nil
	default:
		return nil, fmt.Errorf("unknown sort key %q (valid: %s)", key, strings.Join(SortKeys, ", "))
	}

	out := append([]aggregate.Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// Top returns at most n rows; n <= 0 returns all.
func Top(rows []aggregate.Row, n int) []aggregate.Row {
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}

// FormatScore renders a score with the shortest exact representation.
func FormatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatMean renders mean_top_3 with two decimals.
func FormatMean(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// FormatRank renders a rank, or "" when the phrase has none.
func FormatRank(rank *int) string {
	if rank == nil {
		return ""
	}
	return strconv.Itoa(*rank)
}
