package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/report"
	"github.com/aidanlsb/ferry/internal/ui"
)

var (
	reportRunID string
	reportRuns  bool
	reportAll   bool
	reportLimit int
)

// reportData is the --json payload of report for a single run.
type reportData struct {
	Run         *report.Run         `json:"run"`
	Methods     map[string]int      `json:"methods"`
	BrokenLinks []report.Resolution `json:"broken_links"`
	Resolutions []report.Resolution `json:"resolutions,omitempty"`
	Warnings    []report.Message    `json:"warnings"`
	Failures    []report.Message    `json:"failures"`
}

var reportCmd = &cobra.Command{
	Use:   "report [vault]",
	Short: "Review recorded export runs",
	Long: heredoc.Doc(`
		Show what an earlier export did: how each wikilink was resolved, which
		links stayed broken, and which files failed. Without --run the most
		recent run is shown.

		Runs are recorded in <vault>/.ferry/history.db unless export.history_db
		points elsewhere or is set to "off".
	`),
	Example: heredoc.Doc(`
		ferry report ~/notes
		ferry report --runs --limit 5
		ferry report --run 4f6c... --all --json
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := vaultArg(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}

		path := historyPath(getConfig(), root)
		if path == "" {
			return handleError(ErrHistoryDisabled, errors.New("run history is disabled (export.history_db = \"off\")"), "")
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return handleError(ErrNoRuns, report.ErrNoRuns, "Run 'ferry export' first")
		}
		store, err := report.Open(path)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		defer store.Close()

		ctx := cmd.Context()
		if reportRuns {
			runs, err := store.Runs(ctx, reportLimit)
			if err != nil {
				return handleError(ErrDatabaseError, err, "")
			}
			if isJSONOutput() {
				if runs == nil {
					runs = []report.Run{}
				}
				outputSuccess(runs, &Meta{Count: len(runs)})
				return nil
			}
			printRuns(runs)
			return nil
		}

		var run *report.Run
		if reportRunID != "" {
			run, err = store.GetRun(ctx, reportRunID)
		} else {
			run, err = store.LatestRun(ctx)
		}
		switch {
		case errors.Is(err, report.ErrNoRuns):
			return handleError(ErrNoRuns, err, "Run 'ferry export' first")
		case errors.Is(err, report.ErrRunNotFound):
			return handleError(ErrRunNotFound, err, "Run 'ferry report --runs' to list run IDs")
		case err != nil:
			return handleError(ErrDatabaseError, err, "")
		}

		data, err := loadReport(cmd, store, run)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(data, nil)
			return nil
		}
		printReport(data)
		return nil
	},
}

func loadReport(cmd *cobra.Command, store *report.Store, run *report.Run) (*reportData, error) {
	ctx := cmd.Context()
	data := &reportData{Run: run}
	var err error
	if data.Methods, err = store.MethodCounts(ctx, run.ID); err != nil {
		return nil, err
	}
	if data.BrokenLinks, err = store.BrokenLinks(ctx, run.ID); err != nil {
		return nil, err
	}
	if reportAll {
		if data.Resolutions, err = store.Resolutions(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	if data.Warnings, err = store.Warnings(ctx, run.ID); err != nil {
		return nil, err
	}
	if data.Failures, err = store.Failures(ctx, run.ID); err != nil {
		return nil, err
	}
	if data.BrokenLinks == nil {
		data.BrokenLinks = []report.Resolution{}
	}
	if data.Warnings == nil {
		data.Warnings = []report.Message{}
	}
	if data.Failures == nil {
		data.Failures = []report.Message{}
	}
	return data, nil
}

func printRuns(runs []report.Run) {
	if len(runs) == 0 {
		fmt.Println(ui.Info("No runs recorded"))
		return
	}
	tbl := ui.NewResultsTable(ui.NewDisplayContext(), ui.RunLayout).WithHeaders()
	for i, r := range runs {
		tbl.AddRow(ui.ResultRow{Num: i + 1, Cells: []string{
			r.ID,
			formatTime(r.StartedAt),
			fmt.Sprint(r.Files),
			fmt.Sprint(r.Warnings),
			fmt.Sprint(r.Errors),
		}})
	}
	fmt.Println(tbl.Render())
}

func printReport(d *reportData) {
	r := d.Run
	fmt.Printf("%s %s\n", ui.Header("Run"), ui.FilePath(r.ID))

	summary := ui.NewTable(2)
	summary.AddField("Vault", r.Vault)
	summary.AddField("Started", formatTime(r.StartedAt))
	if r.FinishedAt != nil {
		summary.AddField("Finished", formatTime(*r.FinishedAt))
	} else {
		summary.AddField("Finished", ui.Warning("never (interrupted)"))
	}
	summary.AddField("Notes", fmt.Sprint(r.Files))
	summary.AddField("Problems", ui.ErrorWarningCounts(r.Errors, r.Warnings))
	fmt.Print(summary.String())

	if len(d.Methods) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Resolution methods"))
		methods := make([]string, 0, len(d.Methods))
		for m := range d.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		counts := ui.NewTable(2)
		for _, m := range methods {
			counts.AddRow("  "+m, fmt.Sprint(d.Methods[m]))
		}
		fmt.Print(counts.String())
	}

	display := ui.NewDisplayContext()
	if len(d.Resolutions) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Links ") + ui.Hint(ui.Count(len(d.Resolutions), "link", "links")))
		tbl := ui.NewResultsTable(display, ui.ResolutionLayout)
		for i, res := range d.Resolutions {
			tbl.AddRow(ui.ResultRow{Num: i + 1, Cells: []string{
				res.Source,
				res.Original,
				res.ResolvedPath,
				ui.Method(res.Method, res.Confidence),
			}})
		}
		fmt.Println(tbl.Render())
	}

	if len(d.BrokenLinks) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Broken links ") + ui.Hint(ui.Count(len(d.BrokenLinks), "link", "links")))
		tbl := ui.NewResultsTable(display, ui.BrokenLinkLayout)
		for i, b := range d.BrokenLinks {
			tbl.AddRow(ui.ResultRow{Num: i + 1, Cells: []string{b.Source, b.Original}})
		}
		fmt.Println(tbl.Render())
	}

	if len(d.Failures) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Failures"))
		for _, f := range d.Failures {
			fmt.Println("  " + ui.Error(f.Message))
		}
	}
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Show this run instead of the latest")
	reportCmd.Flags().BoolVar(&reportRuns, "runs", false, "List recorded runs")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "Include every link resolution, not just broken ones")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum runs listed with --runs (0 for all)")
	rootCmd.AddCommand(reportCmd)
}
