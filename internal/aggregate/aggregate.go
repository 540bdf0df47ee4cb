package aggregate

import (
	"sort"
	"strings"
)

const (
	// CompetitorSlots is the number of ranked SERP results tracked per phrase.
	CompetitorSlots = 10
	// OwnSlot is the slot reserved for the user's own URL or pasted text.
	OwnSlot = CompetitorSlots
	// SlotCount is the width of every occurrence vector.
	SlotCount = CompetitorSlots + 1
)

// Keyword is a single (phrase, score) pair returned by an extractor.
// Lower scores are more relevant.
type Keyword struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}

// Record is the consolidated view of one phrase across all analyzed sources.
type Record struct {
	Phrase           string
	Score            float64
	Rank             *int
	Occurrences      [SlotCount]int
	TotalOccurrences int
	MaxOccurrence    int
	MaxSource        string
}

// Table accumulates records in first-insertion order. The zero value is not
// usable; call NewTable.
type Table struct {
	records map[string]*Record
	order   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{records: make(map[string]*Record)}
}

// Len returns the number of distinct phrases.
func (t *Table) Len() int {
	return len(t.order)
}

// Get returns the record for a phrase, or nil.
func (t *Table) Get(phrase string) *Record {
	return t.records[phrase]
}

// Records returns the records in insertion order.
func (t *Table) Records() []*Record {
	out := make([]*Record, len(t.order))
	for i, p := range t.order {
		out[i] = t.records[p]
	}
	return out
}

// ProcessSource folds one source's keywords into the table.
//
// Each phrase is counted as a case-insensitive, non-overlapping substring of
// fullText. The count overwrites the source's slot and is added to the total.
// Score and rank are set once, by the first source that introduces a phrase.
// Out-of-range slots and empty phrases are ignored.
func (t *Table) ProcessSource(slot int, sourceID string, rank *int, fullText string, keywords []Keyword) {
	if slot < 0 || slot >= SlotCount {
		return
	}

	lowered := strings.ToLower(fullText)
	for _, kw := range keywords {
		if kw.Phrase == "" {
			continue
		}

		occurrence := countLowered(lowered, kw.Phrase)

		rec, ok := t.records[kw.Phrase]
		if !ok {
			rec = &Record{Phrase: kw.Phrase, Score: kw.Score, Rank: copyRank(rank)}
			t.records[kw.Phrase] = rec
			t.order = append(t.order, kw.Phrase)
		}

		rec.Occurrences[slot] = occurrence
		rec.TotalOccurrences += occurrence
		if occurrence > rec.MaxOccurrence {
			rec.MaxOccurrence = occurrence
			rec.MaxSource = sourceID
		}
	}
}

// CountOccurrences counts non-overlapping case-insensitive occurrences of
// phrase in text. Matches are plain substrings, so "chat" also matches inside
// "chaton".
func CountOccurrences(text, phrase string) int {
	return countLowered(strings.ToLower(text), phrase)
}

func countLowered(lowered, phrase string) int {
	if lowered == "" || phrase == "" {
		return 0
	}
	return strings.Count(lowered, strings.ToLower(phrase))
}

func copyRank(rank *int) *int {
	if rank == nil {
		return nil
	}
	r := *rank
	return &r
}

// Row is a finalized record with its derived reporting fields.
type Row struct {
	Record
	MeanTop3 float64
}

// Report is the finalized, ordered output of an aggregation pass.
type Report struct {
	Rows       []Row
	TwoWords   []Row
	ThreeWords []Row
}

// Finalize orders records by total occurrences, highest first, keeping
// insertion order among ties, and derives the 2-word and 3-word views.
func (t *Table) Finalize() *Report {
	rows := make([]Row, len(t.order))
	for i, p := range t.order {
		rec := t.records[p]
		rows[i] = Row{Record: *rec, MeanTop3: MeanTop3(rec.Occurrences)}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalOccurrences > rows[j].TotalOccurrences
	})

	return NewReport(rows)
}

// NewReport wraps already-ordered rows, e.g. rows loaded from a saved run.
func NewReport(rows []Row) *Report {
	return &Report{
		Rows:       rows,
		TwoWords:   FilterByWordCount(rows, 2),
		ThreeWords: FilterByWordCount(rows, 3),
	}
}

// MeanTop3 averages the first three competitor slots.
func MeanTop3(occ [SlotCount]int) float64 {
	return float64(occ[0]+occ[1]+occ[2]) / 3
}

// FilterByWordCount keeps rows whose phrase has exactly n whitespace-separated
// tokens, preserving order.
func FilterByWordCount(rows []Row, n int) []Row {
	out := []Row{}
	for _, r := range rows {
		if len(strings.Fields(r.Phrase)) == n {
			out = append(out, r)
		}
	}
	return out
}
