package export

import (
	"fmt"

	"github.com/gingfrederik/docx"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/database"
)

// SaveDOCX writes a Word report of run to path. top limits each section
// (0 = all).
func SaveDOCX(path string, run *database.Run, rows []aggregate.Row, top int) error {
	f := docx.NewFile()

	titleRun := f.AddParagraph().AddText("Keyword report: " + run.Label())
	titleRun.Size(20)

	meta := fmt.Sprintf("Run %s | Mode: %s | Language: %s", run.ID, run.Mode, run.Language)
	if !run.CreatedAt.IsZero() {
		meta += " | " + run.CreatedAt.Format("2006-01-02 15:04 MST")
	}
	metaRun := f.AddParagraph().AddText(meta)
	metaRun.Size(10)
	metaRun.Color("808080")
	f.AddParagraph()

	if len(run.Sources) > 0 {
		f.AddParagraph().AddText("Sources").Size(16)
		for _, s := range run.Sources {
			r := f.AddParagraph().AddText(sourceLine(s))
			r.Size(10)
			if s.Status != database.StatusOK {
				r.Color("C00000")
			}
		}
		f.AddParagraph()
	}

	addSection(f, "Keywords", Top(rows, top))
	addSection(f, "Two-word phrases", Top(aggregate.FilterByWordCount(rows, 2), top))
	addSection(f, "Three-word phrases", Top(aggregate.FilterByWordCount(rows, 3), top))

	return f.Save(path)
}

func addSection(f *docx.File, title string, rows []aggregate.Row) {
	f.AddParagraph().AddText(title).Size(16)
	if len(rows) == 0 {
		f.AddParagraph().AddText("None.")
		f.AddParagraph()
		return
	}
	for i, r := range rows {
		p := f.AddParagraph()
		p.AddText(fmt.Sprintf("%d. %s", i+1, r.Phrase)).Size(12)
		detail := p.AddText(fmt.Sprintf("  total %d, max %d, score %s, mean top 3 %s, own %d",
			r.TotalOccurrences, r.MaxOccurrence, FormatScore(r.Score), FormatMean(r.MeanTop3),
			r.Occurrences[aggregate.OwnSlot]))
		detail.Size(10)
		detail.Color("808080")
	}
	f.AddParagraph()
}
