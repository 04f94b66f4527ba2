// Package claudecli implements the assist.Provider port on top of the
// claude command-line tool.
package claudecli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/aidanlsb/ferry/internal/assist"
)

// Provider runs prompts through `claude -p`.
type Provider struct {
	binary  string
	model   string
	enabled bool
	timeout time.Duration

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the Claude model to use.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithBinary overrides the executable name or path.
func WithBinary(binary string) Option {
	return func(p *Provider) {
		if binary != "" {
			p.binary = binary
		}
	}
}

// WithEnabled turns the provider on or off without removing it.
func WithEnabled(enabled bool) Option {
	return func(p *Provider) { p.enabled = enabled }
}

// WithTimeout bounds each claude invocation. Zero means no bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// New creates a provider. It defaults to the haiku model.
func New(opts ...Option) *Provider {
	p := &Provider{
		binary:   "claude",
		model:    "haiku",
		enabled:  true,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// claudeResponse is the JSON envelope printed by `claude --output-format json`.
type claudeResponse struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	IsError    bool    `json:"is_error"`
	Result     string  `json:"result"`
	DurationMS int     `json:"duration_ms"`
	CostUSD    float64 `json:"total_cost_usd"`
}

// IsAvailable reports whether the provider is enabled and the CLI is on PATH.
func (p *Provider) IsAvailable() bool {
	if !p.enabled {
		return false
	}
	_, err := p.lookPath(p.binary)
	return err == nil
}

// Generate implements assist.Provider.
func (p *Provider) Generate(ctx context.Context, prompt assist.Prompt) (assist.Response, error) {
	args := []string{
		"-p", prompt.Text,
		"--output-format", "json",
		"--model", p.model,
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	output, err := p.run(ctx, p.binary, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return assist.Response{}, fmt.Errorf("claude CLI error: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return assist.Response{}, fmt.Errorf("claude CLI error: %w", err)
	}

	var response claudeResponse
	if err := json.Unmarshal(output, &response); err != nil {
		return assist.Response{}, fmt.Errorf("failed to parse claude response: %w", err)
	}
	if response.IsError {
		return assist.Response{}, fmt.Errorf("claude returned an error: %s", response.Result)
	}

	return p.parseResult(response.Result, prompt.Type), nil
}

func (p *Provider) parseResult(text string, kind assist.RequestType) assist.Response {
	cleaned := strings.TrimSpace(text)
	content := cleaned
	if kind == assist.WikilinkResolution {
		content = ExtractFilename(cleaned)
	}
	return assist.Response{
		Content:    content,
		Confidence: EstimateConfidence(cleaned),
		Reasoning:  fmt.Sprintf("claude %s response for %s", p.model, kind),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var (
	quotedNameRe = regexp.MustCompile("[\"'`]([^\"'`\\n]+\\.md)[\"'`]")
	pathNameRe   = regexp.MustCompile(`([\w\-./]+\.md)`)
	wordStartRe  = regexp.MustCompile(`^[\w\-]`)
)

// ExtractFilename pulls a markdown file name out of a free-text answer:
// a quoted name first, then a bare name.md token, then the first
// plausible word with ".md" appended. Otherwise the text is returned.
func ExtractFilename(text string) string {
	if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := pathNameRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, word := range strings.Fields(text) {
		if !wordStartRe.MatchString(word) {
			continue
		}
		if strings.HasSuffix(word, ".md") {
			return word
		}
		if len(word) > 3 {
			return word + ".md"
		}
	}
	return text
}

var confidenceTiers = []struct {
	value   float64
	phrases []string
}{
	{0.95, []string{"exact match", "definitely", "clearly", "certainly"}},
	{0.75, []string{"likely", "probably", "best match", "similar"}},
	{0.6, []string{"might", "could", "possibly"}},
	{0.3, []string{"not sure", "uncertain", "don't know", "unclear", "ambiguous"}},
}

// EstimateConfidence scores an answer by its hedging words, then by how
// short and specific it is.
func EstimateConfidence(text string) float64 {
	lower := strings.ToLower(text)
	for _, tier := range confidenceTiers {
		for _, phrase := range tier.phrases {
			if strings.Contains(lower, phrase) {
				return tier.value
			}
		}
	}
	switch {
	case len(text) <= 25 && strings.Contains(text, ".md"):
		return 0.85
	case len(text) <= 25 && strings.Contains(text, "."):
		return 0.8
	default:
		return 0.7
	}
}
