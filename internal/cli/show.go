package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/markdown"
	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/transform"
	"github.com/aidanlsb/ferry/internal/ui"
	"github.com/aidanlsb/ferry/internal/vault"
)

var (
	showVault string
	showRaw   bool
)

// showData is the --json payload of show.
type showData struct {
	Path     string         `json:"path"`
	Markdown string         `json:"markdown"`
	Metadata map[string]any `json:"metadata"`
	Assets   []string       `json:"assets"`
	Warnings []string       `json:"warnings"`
}

var showCmd = &cobra.Command{
	Use:   "show <note>",
	Short: "Preview the converted markdown of one note",
	Long: heredoc.Doc(`
		Convert a single note exactly as export would and print the result.
		The output is rendered for the terminal unless --raw is given, in
		which case the markdown (with its frontmatter) is printed verbatim.

		The note path may be absolute or relative to --vault.
	`),
	Example: heredoc.Doc(`
		ferry show Projects/Plan.md --vault ~/notes
		ferry show Home.md --raw > home.md
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := vaultArg([]string{showVault})
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		if err := requireVault(root); err != nil {
			return handleError(ErrVaultNotFound, err, "Pass the vault directory with --vault")
		}

		note := args[0]
		if !filepath.IsAbs(note) {
			note = filepath.Join(root, note)
		}
		if err := paths.ValidateWithinVault(root, note); err != nil {
			return handleError(ErrFileOutsideVault, fmt.Errorf("%s is outside the vault %s", args[0], root), "")
		}

		fsys := vault.NewOSFileSystem()
		raw, err := fsys.ReadFile(note)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return handleError(ErrFileNotFound, fmt.Errorf("note not found: %s", args[0]), "")
			}
			return handleError(ErrFileReadError, err, "")
		}
		idx, err := vault.BuildIndex(fsys, root)
		if err != nil {
			return handleError(ErrIndexFailed, err, "")
		}

		c := getConfig()
		logs := newLogProvider(c)
		fb, _, err := newFallback(c, logs)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		var res *resolver.Resolver
		if fb != nil {
			res = resolver.New(resolver.WithFallback(fb))
		} else {
			res = resolver.New()
		}
		tr := transform.Default(res,
			transform.WithFileExists(fsys.FileExists),
			transform.WithLogger(logging.ModuleLogger(logs, logging.TransformModule)),
		)
		content := tr.Transform(cmd.Context(), note, raw, idx)

		if isJSONOutput() {
			assets := make([]string, 0, len(content.Assets))
			for _, a := range content.Assets {
				assets = append(assets, idx.Rel(a))
			}
			outputSuccess(showData{
				Path:     idx.Rel(note),
				Markdown: content.Markdown,
				Metadata: content.Metadata,
				Assets:   assets,
				Warnings: nonNil(content.Warnings),
			}, nil)
			return nil
		}

		for _, w := range content.Warnings {
			fmt.Fprintln(os.Stderr, ui.Warning(w))
		}
		if showRaw {
			out, err := markdown.RenderFrontmatter(content.Metadata, content.Markdown)
			if err != nil {
				return handleError(ErrInternal, err, "")
			}
			fmt.Print(out)
			return nil
		}

		rendered, err := ui.RenderMarkdown(content.Markdown, ui.NewDisplayContext().AvailableWidth(ui.MarkdownRenderMargin*2))
		if err != nil {
			return handleError(ErrInternal, err, "Try --raw")
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showVault, "vault", ".", "Vault directory")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the converted markdown without terminal rendering")
	rootCmd.AddCommand(showCmd)
}
