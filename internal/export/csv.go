package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// utf8BOM lets spreadsheet tools detect the encoding of accented phrases.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVHeader returns the column names of the CSV export.
func CSVHeader() []string {
	header := []string{
		"keyword", "score", "total_occurrences", "max_occurrence",
		"max_source", "rank", "mean_top_3",
	}
	for i := 1; i <= aggregate.CompetitorSlots; i++ {
		header = append(header, "competitor_"+strconv.Itoa(i))
	}
	return append(header, "own_url")
}

// WriteCSV writes rows as UTF-8 CSV with a byte order mark.
func WriteCSV(w io.Writer, rows []aggregate.Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(csvRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(r aggregate.Row) []string {
	rec := []string{
		r.Phrase,
		FormatScore(r.Score),
		strconv.Itoa(r.TotalOccurrences),
		strconv.Itoa(r.MaxOccurrence),
		r.MaxSource,
		FormatRank(r.Rank),
		FormatMean(r.MeanTop3),
	}
	for _, n := range r.Occurrences {
		rec = append(rec, strconv.Itoa(n))
	}
	return rec
}
