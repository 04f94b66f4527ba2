package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/transform"
	"github.com/aidanlsb/ferry/internal/ui"
	"github.com/aidanlsb/ferry/internal/vault"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

var (
	resolveVault string
	resolveFrom  string
)

// resolveData is the --json payload of resolve.
type resolveData struct {
	Link         string  `json:"link"`
	Target       string  `json:"target"`
	Header       string  `json:"header,omitempty"`
	BlockID      string  `json:"block_id,omitempty"`
	ResolvedPath string  `json:"resolved_path,omitempty"`
	Method       string  `json:"method"`
	Confidence   float64 `json:"confidence"`
	Markdown     string  `json:"markdown"`

	// LowConfidence is set when the match fell under ai.fallback_threshold
	// and the fallback was asked as well. Fallback holds its answer.
	LowConfidence bool            `json:"low_confidence,omitempty"`
	Fallback      *resolveOutcome `json:"fallback,omitempty"`
}

// resolveOutcome is the fallback's answer for a low-confidence match.
type resolveOutcome struct {
	ResolvedPath string  `json:"resolved_path"`
	Method       string  `json:"method"`
	Confidence   float64 `json:"confidence"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <link>",
	Short: "Show how a wikilink would be resolved",
	Long: heredoc.Doc(`
		Resolve a single wikilink against a vault and show the matched file,
		the method that matched it, its confidence, and the markdown an
		export would write in its place.

		The brackets are optional: 'Plan' and '[[Plan]]' are the same link.
		Prefix with '!' to resolve an embed.

		With assistance on, a match whose confidence is under
		ai.fallback_threshold is also put to the fallback and both answers
		are shown.
	`),
	Example: heredoc.Doc(`
		ferry resolve "[[Projects/Plan#Goals|the plan]]" --vault ~/notes
		ferry resolve "![[diagram.png]]"
		ferry resolve roadmap --ai --from Home.md
	`),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		link, ok := parseLinkArg(args[0])
		if !ok {
			return handleError(ErrLinkInvalid, fmt.Errorf("not a wikilink: %q", args[0]), "Use the form [[target#header^block|alias]]")
		}

		root, err := vaultArg([]string{resolveVault})
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		if err := requireVault(root); err != nil {
			return handleError(ErrVaultNotFound, err, "Pass the vault directory with --vault")
		}
		idx, err := vault.BuildIndex(vault.NewOSFileSystem(), root)
		if err != nil {
			return handleError(ErrIndexFailed, err, "")
		}

		c := getConfig()
		logs := newLogProvider(c)
		fb, assistant, err := newFallback(c, logs)
		if err != nil {
			return handleError(ErrConfigInvalid, err, "")
		}
		res := resolver.New()
		if fb != nil {
			res = resolver.New(resolver.WithFallback(fb))
		}
		tr := transform.Default(res, transform.WithLogger(logging.ModuleLogger(logs, logging.TransformModule)))

		from := filepath.ToSlash(resolveFrom)
		r := tr.Resolve(cmd.Context(), link, idx, from)
		data := resolveData{
			Link:       link.Original,
			Target:     link.Target,
			Header:     link.Header,
			BlockID:    link.BlockID,
			Method:     string(r.Method),
			Confidence: r.Confidence,
			Markdown:   transform.Rewrite(r),
		}
		if r.Path != "" {
			data.ResolvedPath = idx.Rel(r.Path)
		}

		var warnings []Warning
		if fb != nil && !assistant.IsAvailable() {
			warnings = append(warnings, assistUnavailableWarning())
		}
		if res.HasFallback() && !r.IsBroken() && r.Method != resolver.MethodAsset && fb.ShouldUseFallback(r) {
			data.LowConfidence = true
			if alt := fb.ResolveWikilink(cmd.Context(), link, idx.RelativePaths(), from); alt != nil {
				data.Fallback = &resolveOutcome{
					ResolvedPath: alt.Path,
					Method:       string(alt.Method),
					Confidence:   alt.Confidence,
				}
			}
		}

		if isJSONOutput() {
			if r.IsBroken() && !link.IsSameNote() {
				outputError(ErrLinkUnresolved, fmt.Sprintf("target '%s' not found", link.Target), data, "Run 'ferry check' to list every broken link")
				return errReported
			}
			outputSuccessWithWarnings(data, warnings, nil)
			return nil
		}

		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, ui.Warning(w.Message))
		}
		printResolution(data)
		if r.IsBroken() && !link.IsSameNote() {
			return fmt.Errorf("target '%s' not found", link.Target)
		}
		return nil
	},
}

func printResolution(d resolveData) {
	fmt.Println(ui.Link(d.Link, d.ResolvedPath))
	tbl := ui.NewTable(2)
	tbl.AddField("method", ui.Method(d.Method, d.Confidence))
	if d.Header != "" {
		tbl.AddField("header", d.Header)
	}
	if d.BlockID != "" {
		tbl.AddField("block", d.BlockID)
	}
	tbl.AddField("markdown", d.Markdown)
	if d.LowConfidence {
		alt := ui.Hint("no answer")
		if d.Fallback != nil {
			alt = ui.FilePath(d.Fallback.ResolvedPath) + " " + ui.Method(d.Fallback.Method, d.Fallback.Confidence)
		}
		tbl.AddField("fallback", alt)
	}
	fmt.Print(tbl.String())
}

// parseLinkArg accepts a wikilink with or without its brackets.
func parseLinkArg(arg string) (wikilink.Link, bool) {
	s := strings.TrimSpace(arg)
	if l, ok := wikilink.Parse(s); ok {
		return l, true
	}
	prefix := ""
	if strings.HasPrefix(s, "!") {
		prefix, s = "!", s[1:]
	}
	return wikilink.Parse(prefix + "[[" + s + "]]")
}

func init() {
	resolveCmd.Flags().StringVar(&resolveVault, "vault", ".", "Vault directory")
	resolveCmd.Flags().StringVar(&resolveFrom, "from", "", "Vault-relative note the link appears in")
	rootCmd.AddCommand(resolveCmd)
}
