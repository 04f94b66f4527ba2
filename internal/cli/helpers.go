package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aidanlsb/ferry/internal/assist"
	"github.com/aidanlsb/ferry/internal/assist/claudecli"
	"github.com/aidanlsb/ferry/internal/config"
	"github.com/aidanlsb/ferry/internal/export"
	"github.com/aidanlsb/ferry/internal/fallback"
	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/logging/gologger"
	"github.com/aidanlsb/ferry/internal/report"
	"github.com/aidanlsb/ferry/internal/vault"
)

// newLogProvider builds the diagnostic logger. In --json mode logs stay
// off unless --log-level asks for them, so stdout carries only the
// envelope.
func newLogProvider(c *config.Config) logging.Provider {
	if isJSONOutput() && !rootCmd.PersistentFlags().Changed("log-level") {
		return nil
	}
	p, err := gologger.NewProvider(gologger.Config{Level: c.Log.Level, Format: c.Log.Format})
	if err != nil {
		return nil
	}
	return p
}

// newProvider builds the inference backend named by ai.provider.
var newProvider = func(c *config.Config, timeout time.Duration) assist.Provider {
	return claudecli.New(
		claudecli.WithModel(c.AI.Model),
		claudecli.WithTimeout(timeout),
	)
}

// newFallback wires the provider behind the assistant and the fallback
// parser. Both are nil when assistance is disabled.
func newFallback(c *config.Config, logs logging.Provider) (*fallback.Parser, *assist.Assistant, error) {
	if !c.AI.Enabled {
		return nil, nil, nil
	}
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	assistant := assist.New(newProvider(c, timeout),
		assist.WithCache(c.AI.CacheEnabled),
		assist.WithRateLimit(c.AI.RateLimitPerMinute),
		assist.WithMinConfidence(c.AI.MinConfidence),
		assist.WithLogger(logging.ModuleLogger(logs, logging.AssistModule)),
	)
	fb := fallback.New(assistant,
		fallback.WithConfidenceThreshold(c.AI.FallbackThreshold),
		fallback.WithCache(c.AI.CacheEnabled),
		fallback.WithLogger(logging.ModuleLogger(logs, logging.FallbackModule)),
	)
	return fb, assistant, nil
}

// assistUnavailableWarning is raised when assistance is on but the
// provider cannot run.
func assistUnavailableWarning() Warning {
	return Warning{
		Code:    WarnAssistUnavailable,
		Message: "ai.enabled is set but the claude CLI is not on PATH; links resolve without assistance",
	}
}

// historyPath returns where the run history lives for a vault, or "" when
// history is turned off.
func historyPath(c *config.Config, vaultRoot string) string {
	switch v := strings.TrimSpace(c.Export.HistoryDB); {
	case strings.EqualFold(v, "off"):
		return ""
	case v != "":
		return v
	default:
		return report.DefaultPath(vaultRoot)
	}
}

// openHistory opens the history store for a vault. A nil store with a nil
// error means history is turned off.
func openHistory(c *config.Config, vaultRoot string) (*report.Store, error) {
	path := historyPath(c, vaultRoot)
	if path == "" {
		return nil, nil
	}
	return report.Open(path)
}

// pipeline is an export pipeline plus the assistant behind it, if any.
type pipeline struct {
	exporter  *export.Exporter
	assistant *assist.Assistant
	close     func()
	warnings  []Warning
}

// assistStats returns the assistant's counters, or nil without assistance.
func (p *pipeline) assistStats() *assist.Stats {
	if p.assistant == nil {
		return nil
	}
	s := p.assistant.Stats()
	return &s
}

// newExporter assembles the export pipeline from config. The pipeline's
// close function releases the history store.
func newExporter(c *config.Config, vaultRoot string, withHistory bool) (*pipeline, error) {
	logs := newLogProvider(c)
	var warnings []Warning

	opts := []export.Option{
		export.WithLogger(logging.ModuleLogger(logs, logging.ExportModule)),
	}

	fb, assistant, err := newFallback(c, logs)
	if err != nil {
		return nil, err
	}
	if fb != nil {
		opts = append(opts, export.WithFallback(fb))
		if !assistant.IsAvailable() {
			warnings = append(warnings, assistUnavailableWarning())
		}
	}

	p := &pipeline{assistant: assistant, close: func() {}}
	if !withHistory {
		p.exporter, p.warnings = export.New(opts...), warnings
		return p, nil
	}
	store, err := openHistory(c, vaultRoot)
	if err != nil {
		warnings = append(warnings, Warning{
			Code:    WarnHistoryFailed,
			Message: fmt.Sprintf("run history disabled: %v", err),
		})
	} else if store != nil {
		opts = append(opts, export.WithHistory(store))
		p.close = func() { _ = store.Close() }
	}

	p.exporter, p.warnings = export.New(opts...), warnings
	return p, nil
}

// vaultArg returns the absolute vault path from the first positional
// argument, defaulting to the working directory.
func vaultArg(args []string) (string, error) {
	p := "."
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		p = args[0]
	}
	return filepath.Abs(p)
}

// requireVault checks that path is a directory.
func requireVault(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", vault.ErrVaultNotFound, path)
	}
	return nil
}

// exportErrorCode maps fatal export errors to stable codes.
func exportErrorCode(err error) string {
	switch {
	case errors.Is(err, vault.ErrVaultNotFound):
		return ErrVaultNotFound
	case errors.Is(err, vault.ErrNotObsidianVault):
		return ErrNotObsidianVault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrExportCancelled
	default:
		return ErrIndexFailed
	}
}
