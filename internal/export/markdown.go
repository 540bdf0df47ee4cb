package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/database"
)

// WriteMarkdown writes a report of run with its sources and the all-phrase,
// 2-word and 3-word tables. rows is the presentation order; top limits each
// table (0 = all).
func WriteMarkdown(w io.Writer, run *database.Run, rows []aggregate.Row, top int) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Summary(run))
	bw.WriteString("\n")

	if len(run.Sources) > 0 {
		bw.WriteString("## Sources\n\n")
		for _, s := range run.Sources {
			bw.WriteString(sourceLine(s))
			bw.WriteString("\n")
		}
		bw.WriteString("\n")
	}

	writeTable(bw, "Keywords", Top(rows, top))
	writeTable(bw, "Two-word phrases", Top(aggregate.FilterByWordCount(rows, 2), top))
	writeTable(bw, "Three-word phrases", Top(aggregate.FilterByWordCount(rows, 3), top))
	return bw.Flush()
}

// Summary renders the run header as Markdown.
func Summary(run *database.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Keyword report: %s\n\n", escapeCell(run.Label()))
	fmt.Fprintf(&b, "- **Run:** `%s`\n", run.ID)
	fmt.Fprintf(&b, "- **Mode:** %s\n", run.Mode)
	if run.Query != "" {
		fmt.Fprintf(&b, "- **Query:** %s\n", run.Query)
	}
	if run.Location != "" {
		fmt.Fprintf(&b, "- **Location:** %s\n", run.Location)
	}
	if run.OwnURL != "" {
		fmt.Fprintf(&b, "- **Own URL:** <%s>\n", run.OwnURL)
	}
	if run.Language != "" {
		fmt.Fprintf(&b, "- **Language:** %s\n", run.Language)
	}
	if !run.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Date:** %s\n", run.CreatedAt.Format("2006-01-02 15:04 MST"))
	}

	ok, failed := 0, 0
	for _, s := range run.Sources {
		if s.Status == database.StatusOK {
			ok++
		} else {
			failed++
		}
	}
	fmt.Fprintf(&b, "- **Sources:** %d analyzed, %d failed\n", ok, failed)
	fmt.Fprintf(&b, "- **Keywords:** %d\n", len(run.Rows))
	return b.String()
}

// SlotLabel names a slot for display: "#1".."#10" for competitors, "own"
// for the own source.
func SlotLabel(slot int) string {
	if slot == aggregate.OwnSlot {
		return "own"
	}
	return fmt.Sprintf("#%d", slot+1)
}

func sourceLine(s database.Source) string {
	label := s.URL
	if label == "" {
		label = "pasted text"
	}
	line := fmt.Sprintf("- %s %s: %s", SlotLabel(s.Slot), label, s.Status)
	if s.Status == database.StatusOK {
		line += fmt.Sprintf(" (%d words, %d keywords)", s.WordCount, s.KeywordCount)
	} else if s.Error != "" {
		line += " (" + s.Error + ")"
	}
	return line
}

func writeTable(w *bufio.Writer, title string, rows []aggregate.Row) {
	fmt.Fprintf(w, "## %s\n\n", title)
	if len(rows) == 0 {
		w.WriteString("_None._\n\n")
		return
	}
	w.WriteString("| Keyword | Score | Total | Max | Max source | Rank | Mean top 3 | Own |\n")
	w.WriteString("|---|---:|---:|---:|---|---:|---:|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(w, "| %s | %s | %d | %d | %s | %s | %s | %d |\n",
			escapeCell(r.Phrase),
			FormatScore(r.Score),
			r.TotalOccurrences,
			r.MaxOccurrence,
			escapeCell(r.MaxSource),
			FormatRank(r.Rank),
			FormatMean(r.MeanTop3),
			r.Occurrences[aggregate.OwnSlot],
		)
	}
	w.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
