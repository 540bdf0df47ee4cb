package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kwscout/internal/export"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage saved analysis runs",
}

var runsLimit int

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs saved. Start one with: kwscout analyze")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDATE\tMODE\tLANG\tKEYWORDS\tLABEL")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.Language, r.KeywordCount, r.Label())
		}
		return tw.Flush()
	},
}

var runsShowOut outputFlags

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := loadRun(args[0])
		if err != nil {
			return err
		}
		fmt.Print(export.Summary(run))
		fmt.Println()
		return runsShowOut.show(os.Stdout, run)
	},
}

var runsExportOut outputFlags

var runsExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a saved run to CSV, Markdown or Word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := runsExportOut
		if o.csvPath == "" && o.mdPath == "" && o.docxPath == "" {
			return fmt.Errorf("nothing to export: pass --csv, --md or --docx")
		}
		run, err := loadRun(args[0])
		if err != nil {
			return err
		}
		rows, err := o.rows(run)
		if err != nil {
			return err
		}
		return writeExports(run, rows, o.csvPath, o.mdPath, o.docxPath)
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(args[0]); err != nil {
			return fmt.Errorf("deleting run %s: %w", args[0], err)
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list (0 = all)")
	runsShowOut.register(runsShowCmd, true)
	runsExportCmd.Flags().StringVar(&runsExportOut.csvPath, "csv", "", "Write the full table as CSV to this path")
	runsExportCmd.Flags().StringVar(&runsExportOut.mdPath, "md", "", "Write a Markdown report to this path")
	runsExportCmd.Flags().StringVar(&runsExportOut.docxPath, "docx", "", "Write a Word report to this path")
	runsExportCmd.Flags().StringVar(&runsExportOut.sort, "sort", "total", "Sort key: total, keyword, score, max, mean, rank")
	runsExportCmd.Flags().BoolVar(&runsExportOut.asc, "asc", false, "Sort ascending")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}
