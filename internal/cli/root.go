// Package cli implements the command-line interface.
package cli

import (
	"errors"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/config"
	"github.com/aidanlsb/ferry/internal/ui"
)

var (
	// Global flags
	configPath   string
	aiFlag       bool
	logLevelFlag string

	// Resolved values
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "Ferry - convert Obsidian vaults into portable markdown bundles",
	Long: heredoc.Doc(`
		Ferry converts an Obsidian vault into a self-contained bundle of plain
		markdown. Wikilinks become markdown links, embeds become images,
		callouts become blockquotes, and every referenced attachment is copied
		alongside a manifest.

		Links the vault index cannot resolve can optionally be handed to the
		claude CLI (--ai). Every export is recorded so broken links can be
		reviewed later with 'ferry report'.
	`),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "completion", "help", "version", "config":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return reportError(ErrConfigInvalid, fmt.Errorf("failed to load config: %w", err), "Run 'ferry config path' to locate the config file")
		}
		applyFlagOverrides(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return reportError(ErrConfigInvalid, err, "Fix the config file or the overriding flags")
		}
		cfg = loaded

		ui.ConfigureTheme(cfg.UI.Accent)
		ui.ConfigureMarkdownCodeTheme(cfg.UI.CodeTheme)
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), ui.Error(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for agent/script use)")
	rootCmd.PersistentFlags().BoolVar(&aiFlag, "ai", false, "Resolve unresolvable links with the claude CLI (overrides ai.enabled)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostic log level: trace, debug, info, warn, error")
}

// applyFlagOverrides lets explicitly set global flags win over the file
// and the environment.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ai") {
		c.AI.Enabled = aiFlag
	}
	if flags.Changed("log-level") {
		c.Log.Level = logLevelFlag
	}
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}
