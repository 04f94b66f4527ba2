package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/aidanlsb/ferry/internal/config"
	"github.com/aidanlsb/ferry/internal/ui"
)

// resolveConfigPath returns --config when set, else the default location.
func resolveConfigPath() string {
	if p := strings.TrimSpace(configPath); p != "" {
		return p
	}
	return config.DefaultPath()
}

func configData(c *config.Config, path string, exists bool) map[string]interface{} {
	return map[string]interface{}{
		"config_path": path,
		"exists":      exists,
		"ai": map[string]interface{}{
			"enabled":               c.AI.Enabled,
			"provider":              c.AI.Provider,
			"model":                 c.AI.Model,
			"min_confidence":        c.AI.MinConfidence,
			"fallback_threshold":    c.AI.FallbackThreshold,
			"rate_limit_per_minute": c.AI.RateLimitPerMinute,
			"cache_enabled":         c.AI.CacheEnabled,
			"timeout":               c.AI.Timeout,
		},
		"export": map[string]interface{}{
			"output":               c.Export.Output,
			"history_db":           c.Export.HistoryDB,
			"require_obsidian_dir": c.Export.RequireObsidianDir,
			"package_name":         c.Export.PackageName,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"ui": map[string]interface{}{
			"accent":     strings.TrimSpace(c.UI.Accent),
			"code_theme": strings.TrimSpace(c.UI.CodeTheme),
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	_, statErr := os.Stat(path)
	exists := statErr == nil

	c, err := config.Load(path)
	if err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}
	applyFlagOverrides(cmd, c)
	if err := c.Validate(); err != nil {
		return handleError(ErrConfigInvalid, err, "")
	}

	if isJSONOutput() {
		outputSuccess(configData(c, path, exists), nil)
		return nil
	}

	if exists {
		fmt.Printf("%s %s\n", ui.Header("config:"), ui.FilePath(path))
	} else {
		fmt.Printf("%s %s %s\n", ui.Header("config:"), path, ui.Hint("(not created; showing defaults)"))
	}

	tbl := ui.NewTable(2)
	tbl.AddRow("ai.enabled", fmt.Sprint(c.AI.Enabled))
	tbl.AddRow("ai.model", c.AI.Model)
	tbl.AddRow("ai.min_confidence", fmt.Sprint(c.AI.MinConfidence))
	tbl.AddRow("ai.fallback_threshold", fmt.Sprint(c.AI.FallbackThreshold))
	tbl.AddRow("ai.rate_limit_per_minute", fmt.Sprint(c.AI.RateLimitPerMinute))
	tbl.AddRow("ai.cache_enabled", fmt.Sprint(c.AI.CacheEnabled))
	tbl.AddRow("ai.timeout", c.AI.Timeout)
	if v := c.Export.Output; v != "" {
		tbl.AddRow("export.output", v)
	}
	if v := c.Export.HistoryDB; v != "" {
		tbl.AddRow("export.history_db", v)
	}
	tbl.AddRow("export.require_obsidian_dir", fmt.Sprint(c.Export.RequireObsidianDir))
	if v := c.Export.PackageName; v != "" {
		tbl.AddRow("export.package_name", v)
	}
	tbl.AddRow("log.level", c.Log.Level)
	tbl.AddRow("log.format", c.Log.Format)
	if v := strings.TrimSpace(c.UI.Accent); v != "" {
		tbl.AddRow("ui.accent", v)
	}
	if v := strings.TrimSpace(c.UI.CodeTheme); v != "" {
		tbl.AddRow("ui.code_theme", v)
	}
	fmt.Print(tbl.String())
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the ferry config.toml",
	Long: heredoc.Doc(`
		Show the effective configuration: the config file merged over the
		defaults, with FERRY_* environment variables and global flags applied.
	`),
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a commented default config.toml if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return handleError(ErrFileReadError, err, "")
		}

		created, err := config.CreateDefault(path)
		if err != nil {
			return handleError(ErrFileWriteError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"config_path": path,
				"created":     created,
			}, nil)
			return nil
		}

		if created {
			fmt.Println(ui.Successf("Created %s", ui.FilePath(path)))
		} else {
			fmt.Println(ui.Infof("Config already exists: %s", ui.FilePath(path)))
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := resolveConfigPath()
		if isJSONOutput() {
			_, err := os.Stat(path)
			outputSuccess(map[string]interface{}{
				"config_path": path,
				"exists":      err == nil,
			}, nil)
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
