package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
	"github.com/TobiSchelling/kwscout/internal/analysis"
	"github.com/TobiSchelling/kwscout/internal/content"
	"github.com/TobiSchelling/kwscout/internal/database"
	"github.com/TobiSchelling/kwscout/internal/export"
	"github.com/TobiSchelling/kwscout/internal/serp"
)

// outputFlags select how a run is displayed and exported.
type outputFlags struct {
	csvPath  string
	mdPath   string
	docxPath string
	top      int
	view     string
	sort     string
	asc      bool
}

func (o *outputFlags) register(cmd *cobra.Command, withFiles bool) {
	if withFiles {
		cmd.Flags().StringVar(&o.csvPath, "csv", "", "Write the full table as CSV to this path")
		cmd.Flags().StringVar(&o.mdPath, "md", "", "Write a Markdown report to this path")
		cmd.Flags().StringVar(&o.docxPath, "docx", "", "Write a Word report to this path")
	}
	cmd.Flags().IntVar(&o.top, "top", 20, "Rows to print (0 = all)")
	cmd.Flags().StringVar(&o.view, "view", "all", "Phrases to print: all, 2 or 3 words")
	cmd.Flags().StringVar(&o.sort, "sort", "total", "Sort key: "+strings.Join(export.SortKeys, ", "))
	cmd.Flags().BoolVar(&o.asc, "asc", false, "Sort ascending")
}

// rows returns run's rows in the requested order, before view filtering.
func (o *outputFlags) rows(run *database.Run) ([]aggregate.Row, error) {
	return export.SortRows(run.Rows, o.sort, !o.asc)
}

func (o *outputFlags) viewRows(rows []aggregate.Row) ([]aggregate.Row, error) {
	switch o.view {
	case "", "all":
		return rows, nil
	case "2":
		return aggregate.FilterByWordCount(rows, 2), nil
	case "3":
		return aggregate.FilterByWordCount(rows, 3), nil
	default:
		return nil, fmt.Errorf("invalid --view %q (valid: all, 2, 3)", o.view)
	}
}

// show prints the run and writes any requested export files.
func (o *outputFlags) show(w io.Writer, run *database.Run) error {
	rows, err := o.rows(run)
	if err != nil {
		return err
	}
	viewed, err := o.viewRows(rows)
	if err != nil {
		return err
	}

	printSources(w, run.Sources)
	fmt.Fprintln(w)
	printRows(w, export.Top(viewed, o.top))
	if o.top > 0 && len(viewed) > o.top {
		fmt.Fprintf(w, "\n(%d of %d phrases shown; use --top 0 for all)\n", o.top, len(viewed))
	}

	return writeExports(run, rows, o.csvPath, o.mdPath, o.docxPath)
}

func writeExports(run *database.Run, rows []aggregate.Row, csvPath, mdPath, docxPath string) error {
	if csvPath != "" {
		if err := writeFile(csvPath, func(w io.Writer) error { return export.WriteCSV(w, rows) }); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		fmt.Printf("Wrote %s\n", csvPath)
	}
	if mdPath != "" {
		if err := writeFile(mdPath, func(w io.Writer) error { return export.WriteMarkdown(w, run, rows, 0) }); err != nil {
			return fmt.Errorf("writing Markdown: %w", err)
		}
		fmt.Printf("Wrote %s\n", mdPath)
	}
	if docxPath != "" {
		if err := export.SaveDOCX(docxPath, run, rows, 0); err != nil {
			return fmt.Errorf("writing DOCX: %w", err)
		}
		fmt.Printf("Wrote %s\n", docxPath)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSources(w io.Writer, sources []database.Source) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSOURCE\tSTATUS\tWORDS\tKEYWORDS")
	for _, s := range sources {
		label := s.URL
		if label == "" {
			label = analysis.PastedTextID
		}
		status := s.Status
		if s.Error != "" {
			status += ": " + s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", export.SlotLabel(s.Slot), label, status, s.WordCount, s.KeywordCount)
	}
	tw.Flush()
}

func printRows(w io.Writer, rows []aggregate.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No keywords.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEYWORD\tSCORE\tTOTAL\tMAX\tRANK\tMEAN3\tOWN")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\n",
			r.Phrase,
			export.FormatScore(r.Score),
			r.TotalOccurrences,
			r.MaxOccurrence,
			export.FormatRank(r.Rank),
			export.FormatMean(r.MeanTop3),
			r.Occurrences[aggregate.OwnSlot],
		)
	}
	tw.Flush()
}

// --- analyze command ---

var (
	analyzeReq    analysis.Request
	analyzeFile   string
	analyzeNoSave bool
	analyzeOut    outputFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract and compare keywords for text, a URL or a search query",
	Example: `  kwscout analyze --text "Notre agence SEO à Paris..."
  kwscout analyze --url https://example.com/page --csv keywords.csv
  kwscout analyze --query "agence seo" --location "Paris, France" --url https://example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := analyzeReq
		if analyzeFile != "" {
			if req.Text != "" {
				return errors.New("use either --text or --file, not both")
			}
			text, err := readInputFile(analyzeFile)
			if err != nil {
				return err
			}
			req.Text = text
		}
		if _, err := analyzeOut.viewRows(nil); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := analysis.New(cfg, nil)
		res, err := pipe.Run(ctx, req)
		if res != nil {
			for i, step := range res.Steps {
				fmt.Printf("Step %d/%d: %s\n", i+1, len(res.Steps), step.Name)
				if step.Err != nil {
					fmt.Printf("  Error: %v\n", step.Err)
				} else {
					fmt.Printf("  %s\n", step.Summary)
				}
			}
			fmt.Println()
		}
		if err != nil {
			if res != nil && res.Run != nil && len(res.Run.Sources) > 0 {
				printSources(os.Stdout, res.Run.Sources)
			}
			return explain(err)
		}

		run := res.Run
		if err := analyzeOut.show(os.Stdout, run); err != nil {
			return err
		}

		if analyzeNoSave {
			return nil
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(run); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Printf("\nSaved run %s. Open it with: kwscout runs show %s\n", run.ID, run.ID)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReq.Text, "text", "", "Text to analyze as your own content")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "Read your own content from a text or HTML file (- for stdin)")
	analyzeCmd.Flags().StringVar(&analyzeReq.URL, "url", "", "Your page URL")
	analyzeCmd.Flags().StringVar(&analyzeReq.Query, "query", "", "Search query whose top results are compared")
	analyzeCmd.Flags().StringVar(&analyzeReq.Location, "location", "", "Search location (defaults to serp.location)")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "Do not store the run in the database")
	analyzeOut.register(analyzeCmd, true)
}

// readInputFile reads plain text, or the main text of an HTML file.
func readInputFile(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		abs, _ := filepath.Abs(path)
		doc, err := content.CleanHTML(string(data), "file://"+abs)
		if err != nil {
			return "", fmt.Errorf("cleaning %s: %w", path, err)
		}
		return doc.Text, nil
	default:
		return string(data), nil
	}
}

// explain adds a hint to errors the user can fix.
func explain(err error) error {
	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return fmt.Errorf("%w (use --text, --file, --url or --query)", err)
	case errors.Is(err, serp.ErrMissingCredential):
		return fmt.Errorf("%w: export %s or set serp.provider to googlenews", err, cfg.SERP.APIKeyEnv)
	case errors.Is(err, content.ErrMissingCredential):
		return fmt.Errorf("%w: export %s or set content.provider to readability", err, cfg.Content.APIKeyEnv)
	default:
		return err
	}
}
