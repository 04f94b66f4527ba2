package cli

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/export"
	"github.com/aidanlsb/ferry/internal/ui"
)

var checkStrict bool

var checkCmd = &cobra.Command{
	Use:   "check [vault]",
	Short: "List broken wikilinks without exporting",
	Long: heredoc.Doc(`
		Scan a vault and list every wikilink the index cannot resolve. Nothing
		is written and the assistant is never consulted, so the list shows
		what a plain export would leave as literal [[...]] text.

		With --strict the command fails when any link is broken, which makes
		it usable as a pre-commit or CI check.
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
		p, err := newExporter(c, root, false)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		defer p.close()

		res, err := p.exporter.Run(cmd.Context(), export.Options{
			VaultPath:          root,
			ValidateOnly:       true,
			RequireObsidianDir: c.Export.RequireObsidianDir,
		})
		if err != nil {
			return handleError(exportErrorCode(err), err, "")
		}
		broken := len(res.BrokenLinks)

		if isJSONOutput() {
			data := newExportData(res, p.assistStats())
			if checkStrict && broken > 0 {
				outputError(ErrBrokenLinks, fmt.Sprintf("%d broken links", broken), data, "Fix or remove the listed links")
				return errReported
			}
			warnings := make([]Warning, 0, broken+1)
			if !res.Vault.IsObsidian {
				warnings = append(warnings, notObsidianWarning())
			}
			for _, b := range res.BrokenLinks {
				warnings = append(warnings, Warning{Code: WarnBrokenLink, Message: b})
			}
			outputSuccessWithWarnings(data, warnings, &Meta{Count: broken})
			return nil
		}

		fmt.Printf("%s %s\n", ui.Header("Vault"), ui.FilePath(res.Vault.Root))
		fmt.Println(ui.Hint(fmt.Sprintf("%d notes, %d attachments, %d links", res.Vault.TotalFiles, res.Vault.TotalAssets, res.Vault.TotalLinks)))
		if !res.Vault.IsObsidian {
			fmt.Println(ui.Warning("no .obsidian directory; treating it as a plain folder"))
		}
		if broken == 0 {
			fmt.Println(ui.Success("No broken links"))
			return nil
		}
		printBrokenLinks(res.BrokenLinks)
		if checkStrict {
			return fmt.Errorf("%d broken links", broken)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit non-zero when any link is broken")
	rootCmd.AddCommand(checkCmd)
}
