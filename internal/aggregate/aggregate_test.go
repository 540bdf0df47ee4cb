package aggregate

import (
	"reflect"
	"strings"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestSingleSourceCounts(t *testing.T) {
	table := NewTable()
	table.ProcessSource(0, "https://a.com", intPtr(0), "chat chat chien", []Keyword{
		{Phrase: "chat", Score: 0.1},
		{Phrase: "chien", Score: 0.2},
	})

	chat := table.Get("chat")
	if chat == nil {
		t.Fatal("expected record for 'chat'")
	}
	if chat.Occurrences[0] != 2 || chat.TotalOccurrences != 2 {
		t.Errorf("expected chat occurrences[0]=2 total=2, got %d/%d", chat.Occurrences[0], chat.TotalOccurrences)
	}
	if chat.Score != 0.1 {
		t.Errorf("expected chat score 0.1, got %v", chat.Score)
	}

	chien := table.Get("chien")
	if chien == nil {
		t.Fatal("expected record for 'chien'")
	}
	if chien.Occurrences[0] != 1 || chien.TotalOccurrences != 1 {
		t.Errorf("expected chien occurrences[0]=1 total=1, got %d/%d", chien.Occurrences[0], chien.TotalOccurrences)
	}
	if chien.Score != 0.2 {
		t.Errorf("expected chien score 0.2, got %v", chien.Score)
	}
	for i := 1; i < SlotCount; i++ {
		if chat.Occurrences[i] != 0 || chien.Occurrences[i] != 0 {
			t.Errorf("expected slot %d to stay zero", i)
		}
	}
}

func TestFirstWriterWinsAcrossSources(t *testing.T) {
	table := NewTable()
	table.ProcessSource(0, "https://competitor.com", intPtr(0), "pomme", []Keyword{{Phrase: "pomme", Score: 0.5}})
	table.ProcessSource(OwnSlot, "https://mine.com", nil, "pomme pomme", []Keyword{{Phrase: "pomme", Score: 0.9}})

	rec := table.Get("pomme")
	if rec == nil {
		t.Fatal("expected record for 'pomme'")
	}
	if rec.Score != 0.5 {
		t.Errorf("expected first-writer score 0.5, got %v", rec.Score)
	}
	if rec.Rank == nil || *rec.Rank != 0 {
		t.Errorf("expected rank 0, got %v", rec.Rank)
	}
	want := [SlotCount]int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2}
	if rec.Occurrences != want {
		t.Errorf("expected occurrences %v, got %v", want, rec.Occurrences)
	}
	if rec.TotalOccurrences != 3 {
		t.Errorf("expected total 3, got %d", rec.TotalOccurrences)
	}
	if rec.MaxOccurrence != 2 || rec.MaxSource != "https://mine.com" {
		t.Errorf("expected max 2 from own URL, got %d from %q", rec.MaxOccurrence, rec.MaxSource)
	}
}

func TestOwnSourceIntroducesPhraseWithoutRank(t *testing.T) {
	table := NewTable()
	table.ProcessSource(OwnSlot, "https://mine.com", nil, "poire", []Keyword{{Phrase: "poire", Score: 0.3}})
	table.ProcessSource(2, "https://c.com", intPtr(2), "poire", []Keyword{{Phrase: "poire", Score: 0.1}})

	rec := table.Get("poire")
	if rec.Rank != nil {
		t.Errorf("expected absent rank, got %d", *rec.Rank)
	}
	if rec.Score != 0.3 {
		t.Errorf("expected score 0.3, got %v", rec.Score)
	}
}

func TestEmptyTextGivesZeroOccurrences(t *testing.T) {
	table := NewTable()
	table.ProcessSource(3, "https://empty.com", intPtr(3), "", []Keyword{
		{Phrase: "alpha", Score: 0.1},
		{Phrase: "beta gamma", Score: 0.2},
	})

	if table.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", table.Len())
	}
	for _, rec := range table.Records() {
		if rec.Occurrences[3] != 0 || rec.TotalOccurrences != 0 {
			t.Errorf("expected zero occurrences for %q", rec.Phrase)
		}
		if rec.MaxSource != "" {
			t.Errorf("expected empty max source for %q, got %q", rec.Phrase, rec.MaxSource)
		}
	}
}

func TestMaxTieKeepsEarliestSource(t *testing.T) {
	table := NewTable()
	table.ProcessSource(0, "first", intPtr(0), "seo seo", []Keyword{{Phrase: "seo", Score: 0.1}})
	table.ProcessSource(1, "second", intPtr(1), "SEO Seo", []Keyword{{Phrase: "seo", Score: 0.1}})

	rec := table.Get("seo")
	if rec.MaxOccurrence != 2 || rec.MaxSource != "first" {
		t.Errorf("expected max 2 from 'first', got %d from %q", rec.MaxOccurrence, rec.MaxSource)
	}
}

func TestSlotIsOverwrittenNotSummed(t *testing.T) {
	table := NewTable()
	table.ProcessSource(4, "x", intPtr(4), "mot mot mot", []Keyword{{Phrase: "mot", Score: 0.1}})
	table.ProcessSource(4, "x", intPtr(4), "mot", []Keyword{{Phrase: "mot", Score: 0.1}})

	rec := table.Get("mot")
	if rec.Occurrences[4] != 1 {
		t.Errorf("expected slot overwritten to 1, got %d", rec.Occurrences[4])
	}
}

func TestCaseSensitiveKeysCaseInsensitiveCounts(t *testing.T) {
	table := NewTable()
	table.ProcessSource(0, "a", intPtr(0), "Paris paris PARIS", []Keyword{
		{Phrase: "Paris", Score: 0.1},
		{Phrase: "paris", Score: 0.2},
	})

	if table.Len() != 2 {
		t.Fatalf("expected 2 distinct records, got %d", table.Len())
	}
	if table.Get("Paris").TotalOccurrences != 3 || table.Get("paris").TotalOccurrences != 3 {
		t.Error("expected both renderings to count 3 occurrences")
	}
}

func TestCountOccurrencesSubstringSemantics(t *testing.T) {
	cases := []struct {
		text, phrase string
		want         int
	}{
		{"chat chaton", "chat", 2},
		{"aaaa", "aa", 2},
		{"Référencement naturel", "référencement", 1},
		{"", "x", 0},
		{"abc", "", 0},
	}
	for _, c := range cases {
		if got := CountOccurrences(c.text, c.phrase); got != c.want {
			t.Errorf("CountOccurrences(%q, %q) = %d, want %d", c.text, c.phrase, got, c.want)
		}
	}
}

func TestInvalidInputIsIgnored(t *testing.T) {
	table := NewTable()
	table.ProcessSource(-1, "a", nil, "text", []Keyword{{Phrase: "text", Score: 0.1}})
	table.ProcessSource(SlotCount, "a", nil, "text", []Keyword{{Phrase: "text", Score: 0.1}})
	table.ProcessSource(0, "a", intPtr(0), "text", []Keyword{{Phrase: "", Score: 0.1}})
	table.ProcessSource(0, "a", intPtr(0), "text", nil)

	if table.Len() != 0 {
		t.Errorf("expected empty table, got %d records", table.Len())
	}
}

func TestFinalizeStableOrder(t *testing.T) {
	table := NewTable()
	table.ProcessSource(0, "s", intPtr(0), "a a a a a b b b b b c c c", []Keyword{
		{Phrase: "a", Score: 0.1},
		{Phrase: "b", Score: 0.2},
		{Phrase: "c", Score: 0.3},
	})
	// c first, to check that ties do not depend on score or phrase order
	table2 := NewTable()
	table2.ProcessSource(0, "s", intPtr(0), "c c c a a a a a b b b b b", []Keyword{
		{Phrase: "c", Score: 0.3},
		{Phrase: "a", Score: 0.1},
		{Phrase: "b", Score: 0.2},
	})

	if got := phrases(table.Finalize().Rows); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", got)
	}
	if got := phrases(table2.Finalize().Rows); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected [a b c], got %v", got)
	}
}

func TestFinalizeDeterministic(t *testing.T) {
	build := func() *Report {
		table := NewTable()
		table.ProcessSource(0, "u0", intPtr(0), "seo local seo agence seo", []Keyword{
			{Phrase: "seo", Score: 0.05},
			{Phrase: "seo local", Score: 0.1},
			{Phrase: "agence", Score: 0.3},
		})
		table.ProcessSource(1, "u1", intPtr(1), "agence web agence seo local", []Keyword{
			{Phrase: "agence web", Score: 0.2},
			{Phrase: "agence", Score: 0.4},
			{Phrase: "agence seo local", Score: 0.6},
		})
		table.ProcessSource(OwnSlot, "mine", nil, "mon agence web", []Keyword{
			{Phrase: "agence web", Score: 0.7},
		})
		return table.Finalize()
	}

	first := build()
	for i := 0; i < 20; i++ {
		if !reflect.DeepEqual(first, build()) {
			t.Fatal("expected identical reports for identical inputs")
		}
	}
}

func TestFinalizeInvariants(t *testing.T) {
	table := NewTable()
	texts := []string{
		"marketing digital et marketing de contenu",
		"le marketing digital change",
		"contenu contenu contenu digital",
	}
	kws := []Keyword{
		{Phrase: "marketing digital", Score: 0.1},
		{Phrase: "contenu", Score: 0.2},
		{Phrase: "marketing de contenu", Score: 0.3},
		{Phrase: "digital", Score: 0.4},
	}
	for i, text := range texts {
		table.ProcessSource(i, string(rune('a'+i)), intPtr(i), text, kws)
	}
	table.ProcessSource(OwnSlot, "own", nil, "digital digital digital digital", kws)

	report := table.Finalize()
	for _, row := range report.Rows {
		sum, max := 0, 0
		for _, n := range row.Occurrences {
			sum += n
			if n > max {
				max = n
			}
		}
		if sum != row.TotalOccurrences {
			t.Errorf("%q: total %d != sum %d", row.Phrase, row.TotalOccurrences, sum)
		}
		if max != row.MaxOccurrence {
			t.Errorf("%q: max %d != max slot %d", row.Phrase, row.MaxOccurrence, max)
		}
		want := float64(row.Occurrences[0]+row.Occurrences[1]+row.Occurrences[2]) / 3
		if row.MeanTop3 != want {
			t.Errorf("%q: mean top 3 %v != %v", row.Phrase, row.MeanTop3, want)
		}
	}

	if rec := table.Get("digital"); rec.MaxSource != "own" {
		t.Errorf("expected own URL to hold max for 'digital', got %q", rec.MaxSource)
	}
	if rec := table.Get("contenu"); rec.MaxSource != "c" {
		t.Errorf("expected slot 2 source to hold max for 'contenu', got %q", rec.MaxSource)
	}

	seen := map[string]bool{}
	for _, r := range report.TwoWords {
		if len(strings.Fields(r.Phrase)) != 2 {
			t.Errorf("two-word view holds %q", r.Phrase)
		}
		seen[r.Phrase] = true
	}
	for _, r := range report.ThreeWords {
		if len(strings.Fields(r.Phrase)) != 3 {
			t.Errorf("three-word view holds %q", r.Phrase)
		}
		if seen[r.Phrase] {
			t.Errorf("%q appears in both views", r.Phrase)
		}
	}
	if got := phrases(report.TwoWords); !reflect.DeepEqual(got, []string{"marketing digital"}) {
		t.Errorf("unexpected two-word view %v", got)
	}
	if got := phrases(report.ThreeWords); !reflect.DeepEqual(got, []string{"marketing de contenu"}) {
		t.Errorf("unexpected three-word view %v", got)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	rows := []Row{
		{Record: Record{Phrase: "b c"}},
		{Record: Record{Phrase: "a"}},
		{Record: Record{Phrase: "a  b"}},
		{Record: Record{Phrase: "x y z"}},
	}
	if got := phrases(FilterByWordCount(rows, 2)); !reflect.DeepEqual(got, []string{"b c", "a  b"}) {
		t.Errorf("unexpected filter result %v", got)
	}
	if got := FilterByWordCount(nil, 2); got == nil || len(got) != 0 {
		t.Error("expected empty non-nil slice")
	}
}

func phrases(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Phrase
	}
	return out
}
