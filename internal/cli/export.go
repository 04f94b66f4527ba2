package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/assist"
	"github.com/aidanlsb/ferry/internal/export"
	"github.com/aidanlsb/ferry/internal/ui"
)

var (
	exportOutput       string
	exportPackageName  string
	exportRequireVault bool
)

// exportData is the --json payload of export and check.
type exportData struct {
	RunID           string           `json:"run_id,omitempty"`
	OutputPath      string           `json:"output_path,omitempty"`
	FilesProcessed  int              `json:"files_processed"`
	AssetsProcessed int              `json:"assets_processed"`
	Warnings        []string         `json:"warnings"`
	Errors          []string         `json:"errors"`
	BrokenLinks     []string         `json:"broken_links"`
	Vault           export.VaultInfo `json:"vault"`
	Assist          *assist.Stats    `json:"assist,omitempty"`
}

func newExportData(res *export.Result, stats *assist.Stats) exportData {
	return exportData{
		RunID:           res.RunID,
		OutputPath:      res.OutputPath,
		FilesProcessed:  res.FilesProcessed,
		AssetsProcessed: res.AssetsProcessed,
		Warnings:        nonNil(res.Warnings),
		Errors:          nonNil(res.Errors),
		BrokenLinks:     nonNil(res.BrokenLinks),
		Vault:           res.Vault,
		Assist:          stats,
	}
}

var exportCmd = &cobra.Command{
	Use:   "export [vault]",
	Short: "Convert a vault into a markdown bundle",
	Long: heredoc.Doc(`
		Convert every note of a vault into plain markdown and write a bundle:
		one file per note under the same folders, referenced attachments under
		assets/, and a manifest.json describing the run.

		Per-file problems never stop the export; they are listed at the end
		and recorded in the run history. The bundle goes to
		<vault>-export next to the vault unless --output or export.output
		says otherwise.
	`),
	Example: heredoc.Doc(`
		ferry export ~/notes
		ferry export ~/notes -o /tmp/bundle --ai
		ferry export --json
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := vaultArg(args)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		if err := requireVault(root); err != nil {
			return handleError(ErrVaultNotFound, err, "Pass the vault directory as the first argument")
		}

		c := getConfig()
		out := exportOutput
		if out == "" {
			out = c.Export.Output
		}
		name := exportPackageName
		if name == "" {
			name = c.Export.PackageName
		}
		opts := export.Options{
			VaultPath:          root,
			OutputPath:         out,
			PackageName:        name,
			RequireObsidianDir: exportRequireVault || c.Export.RequireObsidianDir,
		}
		return runExport(cmd, opts)
	},
}

// runExport runs the pipeline with progress on stderr and reports the
// result. export and check share it.
func runExport(cmd *cobra.Command, opts export.Options) error {
	c := getConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var spinner *ui.Spinner
	if !isJSONOutput() {
		spinner = ui.NewSpinner("Exporting vault")
		spinner.Start()
		defer spinner.Stop()
		opts.Progress = spinner.SetMessage
	}

	p, err := newExporter(c, opts.VaultPath, !opts.ValidateOnly)
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	defer p.close()
	warnings := p.warnings

	res, err := p.exporter.Run(ctx, opts)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil && (res == nil || !errors.Is(err, context.Canceled)) {
		return handleError(exportErrorCode(err), err, "")
	}

	if !res.Vault.IsObsidian {
		warnings = append(warnings, notObsidianWarning())
	}

	if isJSONOutput() {
		if err != nil {
			outputError(ErrExportCancelled, err.Error(), newExportData(res, p.assistStats()), "")
			return errReported
		}
		outputSuccessWithWarnings(newExportData(res, p.assistStats()), warnings, &Meta{
			Count:      res.FilesProcessed,
			DurationMs: res.Duration.Milliseconds(),
		})
		return nil
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.Warning(w.Message))
	}
	printExportSummary(res, p.assistStats())
	return err
}

func printExportSummary(res *export.Result, stats *assist.Stats) {
	if res.OutputPath != "" {
		fmt.Println(ui.Successf("Exported %d notes and %d assets to %s",
			res.FilesProcessed, res.AssetsProcessed, ui.FilePath(res.OutputPath)))
	} else {
		fmt.Println(ui.Infof("Processed %d notes", res.FilesProcessed))
	}

	summary := ui.NewTable(2)
	summary.AddField("Vault", res.Vault.Root)
	summary.AddField("Notes", fmt.Sprint(res.Vault.TotalFiles))
	summary.AddField("Attachments", fmt.Sprint(res.Vault.TotalAssets))
	summary.AddField("Links", fmt.Sprint(res.Vault.TotalLinks))
	if res.RunID != "" {
		summary.AddField("Run", res.RunID)
	}
	if stats != nil {
		summary.AddField("Assistance", fmt.Sprintf("%d provider calls, %d cache hits, %d rate limited",
			stats.ProviderCalls, stats.CacheHits, stats.RateLimited))
	}
	summary.AddField("Took", res.Duration.Round(time.Millisecond).String())
	fmt.Print(summary.String())

	printBrokenLinks(res.BrokenLinks)
	if len(res.Warnings) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Warnings ") + ui.Hint(ui.Count(len(res.Warnings), "warning", "warnings")))
		list := ui.NewList()
		for _, w := range res.Warnings {
			list.Add(w)
		}
		fmt.Print(list.String())
	}
	if len(res.Errors) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Errors ") + ui.Hint(ui.Count(len(res.Errors), "error", "errors")))
		for _, e := range res.Errors {
			fmt.Println("  " + ui.Error(e))
		}
	}
}

func printBrokenLinks(broken []string) {
	if len(broken) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(ui.Header("Broken links ") + ui.Hint(ui.Count(len(broken), "link", "links")))
	list := ui.NewList()
	for _, b := range broken {
		list.Add(b)
	}
	fmt.Print(list.String())
}

func notObsidianWarning() Warning {
	return Warning{
		Code:    WarnNotObsidian,
		Message: "no .obsidian directory; treated as a plain markdown folder",
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Bundle directory (default: <vault>-export next to the vault)")
	exportCmd.Flags().StringVar(&exportPackageName, "name", "", "Package name written to the manifest")
	exportCmd.Flags().BoolVar(&exportRequireVault, "require-obsidian", false, "Fail when the directory has no .obsidian folder")
	rootCmd.AddCommand(exportCmd)
}
