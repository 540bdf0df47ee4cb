package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/database"
)

func ptr(n int) *int { return &n }

func sampleRows() []aggregate.Row {
	table := aggregate.NewTable()
	table.ProcessSource(0, "https://a.fr", ptr(0), "agence seo à paris, agence seo", []aggregate.Keyword{
		{Phrase: "agence seo", Score: 0.0123},
		{Phrase: "agence seo paris", Score: 0.2},
	})
	table.ProcessSource(1, "https://b.fr", ptr(1), "référencement | paris", []aggregate.Keyword{
		{Phrase: "référencement", Score: 0.05},
	})
	table.ProcessSource(aggregate.OwnSlot, "https://me.fr", nil, "audit audit audit", []aggregate.Keyword{
		{Phrase: "audit", Score: 0.5},
	})
	return table.Finalize().Rows
}

func sampleRun() *database.Run {
	return &database.Run{
		ID:        "01JTESTRUN",
		Mode:      database.ModeSERP,
		Query:     "agence seo",
		Location:  "Paris, France",
		OwnURL:    "https://me.fr",
		Language:  "fr",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Sources: []database.Source{
			{Slot: 0, URL: "https://a.fr", Status: database.StatusOK, WordCount: 6, KeywordCount: 2},
			{Slot: 1, URL: "https://b.fr", Status: database.StatusFailed, Error: "HTTP 403 Forbidden"},
			{Slot: aggregate.OwnSlot, URL: "https://me.fr", Status: database.StatusOK, WordCount: 3, KeywordCount: 1},
		},
		Rows: sampleRows(),
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data := buf.Bytes()
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("expected UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV back: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(records))
	}

	header := records[0]
	if len(header) != 18 || header[0] != "keyword" || header[7] != "competitor_1" || header[16] != "competitor_10" || header[17] != "own_url" {
		t.Errorf("unexpected header: %v", header)
	}

	byPhrase := map[string][]string{}
	for _, r := range records[1:] {
		byPhrase[r[0]] = r
	}
	audit := byPhrase["audit"]
	if audit == nil {
		t.Fatal("expected audit row")
	}
	if audit[0] != "audit" || audit[2] != "3" || audit[4] != "https://me.fr" || audit[5] != "" || audit[17] != "3" {
		t.Errorf("unexpected audit row: %v", audit)
	}
	seo := byPhrase["agence seo"]
	if seo[1] != "0.0123" || seo[5] != "0" || seo[6] != "0.67" || seo[7] != "2" {
		t.Errorf("unexpected agence seo row: %v", seo)
	}
	if byPhrase["référencement"] == nil {
		t.Error("expected accented phrase preserved")
	}
}

func TestSortRows(t *testing.T) {
	rows := sampleRows()

	tests := []struct {
		key   string
		desc  bool
		first string
	}{
		{"total", true, "audit"},
		{"keyword", false, "agence seo"},
		{"keyword", true, "référencement"},
		{"score", false, "agence seo"},
		{"score", true, "audit"},
		{"max", true, "audit"},
		{"mean", true, "agence seo"},
		{"rank", false, "agence seo"},
		{"rank", true, "référencement"},
	}
	for _, tt := range tests {
		got, err := SortRows(rows, tt.key, tt.desc)
		if err != nil {
			t.Fatalf("SortRows(%s): %v", tt.key, err)
		}
		if got[0].Phrase != tt.first {
			t.Errorf("SortRows(%s, desc=%v): expected %q first, got %q", tt.key, tt.desc, tt.first, got[0].Phrase)
		}
	}

	byRank, _ := SortRows(rows, "rank", true)
	if byRank[len(byRank)-1].Rank != nil {
		t.Error("expected unranked rows last")
	}
	if rows[0].Phrase != "audit" {
		t.Error("expected SortRows to leave input untouched")
	}
	if _, err := SortRows(rows, "bogus", false); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestTop(t *testing.T) {
	rows := sampleRows()
	if len(Top(rows, 0)) != 4 || len(Top(rows, 2)) != 2 || len(Top(rows, 10)) != 4 {
		t.Error("unexpected Top lengths")
	}
}

func TestFormat(t *testing.T) {
	if FormatScore(0.5) != "0.5" || FormatScore(0.0123) != "0.0123" {
		t.Error("unexpected score format")
	}
	if FormatMean(2.0/3) != "0.67" || FormatMean(0) != "0.00" {
		t.Error("unexpected mean format")
	}
	if FormatRank(nil) != "" || FormatRank(ptr(3)) != "3" {
		t.Error("unexpected rank format")
	}
	if SlotLabel(0) != "#1" || SlotLabel(aggregate.OwnSlot) != "own" {
		t.Error("unexpected slot label")
	}
}

func TestWriteMarkdown(t *testing.T) {
	run := sampleRun()
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, run, run.Rows, 0); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Keyword report: agence seo",
		"- **Location:** Paris, France",
		"- **Sources:** 2 analyzed, 1 failed",
		"- #2 https://b.fr: failed (HTTP 403 Forbidden)",
		"- own https://me.fr: ok (3 words, 1 keywords)",
		"## Two-word phrases",
		"| agence seo | 0.0123 | 2 | 2 | https://a.fr | 0 | 0.67 | 0 |",
		"## Three-word phrases",
		"| agence seo paris |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected markdown to contain %q\n%s", want, out)
		}
	}
}

func TestWriteMarkdownEmptyViews(t *testing.T) {
	run := &database.Run{ID: "x", Mode: database.ModeText}
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, run, nil, 0); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	if !strings.Contains(buf.String(), "# Keyword report: pasted text") || strings.Count(buf.String(), "_None._") != 3 {
		t.Errorf("unexpected markdown:\n%s", buf.String())
	}
}

func TestSaveDOCX(t *testing.T) {
	run := sampleRun()
	path := filepath.Join(t.TempDir(), "report.docx")
	if err := SaveDOCX(path, run, run.Rows, 2); err != nil {
		t.Fatalf("SaveDOCX: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading docx: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("expected a zip container")
	}
}
