package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/ferry/internal/assist"
	"github.com/aidanlsb/ferry/internal/buildinfo"
	"github.com/aidanlsb/ferry/internal/config"
	"github.com/aidanlsb/ferry/internal/testutil"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	outputCh := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		outputCh <- buf.String()
	}()

	fn()

	os.Stdout = orig
	_ = w.Close()
	return <-outputCh
}

// resetFlags restores every flag to its default so commands can be run
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes ferry with args against an isolated config file.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil

	if !containsFlag(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "config.toml"))
	}

	var err error
	out := captureStdout(t, func() {
		rootCmd.SetArgs(args)
		err = rootCmd.Execute()
	})
	return out, err
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

type envelope struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Error    *ErrorInfo      `json:"error"`
	Warnings []Warning       `json:"warnings"`
	Meta     *Meta           `json:"meta"`
}

func decodeEnvelope(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return env
}

// stubProvider answers every prompt with the same response.
type stubProvider struct {
	available bool
	resp      assist.Response
	calls     int
}

func (p *stubProvider) IsAvailable() bool { return p.available }

func (p *stubProvider) Generate(context.Context, assist.Prompt) (assist.Response, error) {
	p.calls++
	return p.resp, nil
}

// useProvider makes every command built in this test use p.
func useProvider(t *testing.T, p assist.Provider) {
	t.Helper()
	orig := newProvider
	newProvider = func(*config.Config, time.Duration) assist.Provider { return p }
	t.Cleanup(func() { newProvider = orig })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleVault(t *testing.T) *testutil.TestVault {
	t.Helper()
	return testutil.NewTestVault(t).
		WithObsidianDir().
		WithFile("Home.md", "---\ntitle: Home\n---\nSee [[Projects/Plan|the plan]] and [[Ghost]].\n![[diagram.png]]\n").
		WithFile("Projects/Plan.md", "# Plan\n> [!tip]\n> start small\n").
		WithFile("attachments/diagram.png", "png").
		Build()
}

func TestExportCommandJSON(t *testing.T) {
	v := sampleVault(t)
	out := filepath.Join(t.TempDir(), "bundle")

	stdout, err := runCLI(t, "export", v.Path, "-o", out, "--json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	env := decodeEnvelope(t, stdout)
	if !env.OK {
		t.Fatalf("export failed: %+v", env.Error)
	}

	var data exportData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.FilesProcessed != 2 || data.AssetsProcessed != 1 {
		t.Errorf("data = %+v", data)
	}
	if len(data.BrokenLinks) != 1 || data.BrokenLinks[0] != "Home.md → [[Ghost]]" {
		t.Errorf("broken links = %v", data.BrokenLinks)
	}
	if data.RunID == "" || data.OutputPath != out {
		t.Errorf("run id = %q, output = %q", data.RunID, data.OutputPath)
	}
	if env.Meta == nil || env.Meta.Count != 2 {
		t.Errorf("meta = %+v", env.Meta)
	}

	bundle := testutil.OpenDir(t, out)
	bundle.AssertFileContains("Home.md", "See [the plan](Plan) and [[Ghost]].")
	bundle.AssertFileContains("Projects/Plan.md", "> 💡 **Tip:**")
	bundle.AssertFileNotContains("Home.md", "[[Projects/Plan")
	bundle.AssertFiles("Home.md", "Projects/Plan.md", "assets/attachments/diagram.png", "manifest.json")
	v.AssertFileExists(".ferry/history.db")
}

func TestExportCommandAssistStats(t *testing.T) {
	t.Run("counts provider calls", func(t *testing.T) {
		p := &stubProvider{available: true, resp: assist.Response{Content: "Nowhere.md", Confidence: 0.9}}
		useProvider(t, p)

		stdout, err := runCLI(t, "export", sampleVault(t).Path, "-o", filepath.Join(t.TempDir(), "bundle"), "--ai", "--json")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		var data exportData
		if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &data); err != nil {
			t.Fatal(err)
		}
		if data.Assist == nil {
			t.Fatal("assist stats missing from payload")
		}
		if data.Assist.ProviderCalls != p.calls || p.calls != 1 {
			t.Errorf("provider calls = %d, stub saw %d, want 1", data.Assist.ProviderCalls, p.calls)
		}
		if len(data.BrokenLinks) != 1 {
			t.Errorf("broken links = %v", data.BrokenLinks)
		}
	})

	t.Run("omitted without assistance", func(t *testing.T) {
		stdout, err := runCLI(t, "export", sampleVault(t).Path, "-o", filepath.Join(t.TempDir(), "bundle"), "--json")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		env := decodeEnvelope(t, stdout)
		if strings.Contains(string(env.Data), `"assist"`) {
			t.Errorf("unexpected assist stats: %s", env.Data)
		}
	})

	t.Run("unavailable provider warns", func(t *testing.T) {
		useProvider(t, &stubProvider{available: false})

		stdout, err := runCLI(t, "export", sampleVault(t).Path, "-o", filepath.Join(t.TempDir(), "bundle"), "--ai", "--json")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		env := decodeEnvelope(t, stdout)
		found := false
		for _, w := range env.Warnings {
			found = found || w.Code == WarnAssistUnavailable
		}
		if !found {
			t.Errorf("warnings = %+v, want %s", env.Warnings, WarnAssistUnavailable)
		}
	})

	t.Run("text summary", func(t *testing.T) {
		useProvider(t, &stubProvider{available: true, resp: assist.Response{Content: "Nowhere.md", Confidence: 0.9}})

		stdout, err := runCLI(t, "export", sampleVault(t).Path, "-o", filepath.Join(t.TempDir(), "bundle"), "--ai")
		if err != nil {
			t.Fatalf("export: %v", err)
		}
		if !strings.Contains(stdout, "1 provider calls, 0 cache hits, 0 rate limited") {
			t.Errorf("summary missing assistance counts:\n%s", stdout)
		}
	})
}

func TestExportCommandErrors(t *testing.T) {
	t.Run("missing vault", func(t *testing.T) {
		stdout, err := runCLI(t, "export", filepath.Join(t.TempDir(), "nope"), "--json")
		if err != nil {
			t.Fatalf("json errors are reported in the envelope, got %v", err)
		}
		env := decodeEnvelope(t, stdout)
		if env.OK || env.Error == nil || env.Error.Code != ErrVaultNotFound {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(cfgPath, []byte("[ai]\nmin_confidence = 3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		stdout, err := runCLI(t, "export", sampleVault(t).Path, "--json", "--config", cfgPath)
		if !errors.Is(err, errReported) {
			t.Fatalf("err = %v, want errReported", err)
		}
		env := decodeEnvelope(t, stdout)
		if env.Error == nil || env.Error.Code != ErrConfigInvalid {
			t.Errorf("envelope = %+v", env)
		}
	})
}

func TestCheckCommand(t *testing.T) {
	v := sampleVault(t)

	stdout, err := runCLI(t, "check", v.Path, "--json")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	env := decodeEnvelope(t, stdout)
	if !env.OK || env.Meta == nil || env.Meta.Count != 1 {
		t.Fatalf("envelope = %+v", env)
	}
	if len(env.Warnings) != 1 || env.Warnings[0].Code != WarnBrokenLink {
		t.Errorf("warnings = %+v", env.Warnings)
	}
	if v.FileExists(".ferry") {
		t.Error("check must not create run history")
	}

	stdout, err = runCLI(t, "check", v.Path, "--json", "--strict")
	if !errors.Is(err, errReported) {
		t.Fatalf("strict check err = %v", err)
	}
	env = decodeEnvelope(t, stdout)
	if env.OK || env.Error.Code != ErrBrokenLinks {
		t.Errorf("envelope = %+v", env)
	}

	clean := testutil.NewTestVault(t).WithFile("a.md", "[[b]]").WithFile("b.md", "").Build()
	stdout, err = runCLI(t, "check", clean.Path, "--strict")
	if err != nil {
		t.Fatalf("clean strict check: %v", err)
	}
	if !strings.Contains(stdout, "No broken links") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestResolveCommand(t *testing.T) {
	v := sampleVault(t)

	tests := []struct {
		name     string
		link     string
		method   string
		path     string
		markdown string
	}{
		{"bare name", "Plan", "filename", "Projects/Plan.md", "[Plan](Plan)"},
		{"exact path with alias", "[[Projects/Plan#Next Steps|next]]", "exact", "Projects/Plan.md", "[next](Plan#next-steps)"},
		{"attachment embed", "![[diagram.png]]", "asset", "attachments/diagram.png", "![diagram.png](diagram.png)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, err := runCLI(t, "resolve", tt.link, "--vault", v.Path, "--json")
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			env := decodeEnvelope(t, stdout)
			if !env.OK {
				t.Fatalf("envelope = %+v", env.Error)
			}
			var data resolveData
			if err := json.Unmarshal(env.Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.Method != tt.method || data.ResolvedPath != tt.path || data.Markdown != tt.markdown {
				t.Errorf("data = %+v", data)
			}
		})
	}

	t.Run("unresolved", func(t *testing.T) {
		stdout, err := runCLI(t, "resolve", "[[Ghost]]", "--vault", v.Path, "--json")
		if !errors.Is(err, errReported) {
			t.Fatalf("err = %v", err)
		}
		env := decodeEnvelope(t, stdout)
		if env.Error == nil || env.Error.Code != ErrLinkUnresolved {
			t.Errorf("envelope = %+v", env)
		}
	})

	t.Run("invalid link", func(t *testing.T) {
		stdout, _ := runCLI(t, "resolve", "[[]]", "--vault", v.Path, "--json")
		env := decodeEnvelope(t, stdout)
		if env.Error == nil || env.Error.Code != ErrLinkInvalid {
			t.Errorf("envelope = %+v", env)
		}
	})
}

func TestResolveCommandLowConfidence(t *testing.T) {
	v := sampleVault(t)

	tests := []struct {
		name     string
		config   string
		link     string
		low      bool
		fallback *resolveOutcome
		calls    int
	}{
		{
			name:     "filename match under threshold",
			config:   "[ai]\nenabled = true\nfallback_threshold = 0.95\n",
			link:     "Plan",
			low:      true,
			fallback: &resolveOutcome{ResolvedPath: "Projects/Plan.md", Method: "ai-fuzzy-match", Confidence: 0.8},
			calls:    1,
		},
		{
			name:   "filename match over default threshold",
			config: "[ai]\nenabled = true\n",
			link:   "Plan",
		},
		{
			name:   "exact match",
			config: "[ai]\nenabled = true\nfallback_threshold = 0.95\n",
			link:   "[[Projects/Plan]]",
		},
		{
			name:   "assistance off",
			config: "[ai]\nenabled = false\nfallback_threshold = 0.95\n",
			link:   "Plan",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &stubProvider{available: true, resp: assist.Response{Content: "Projects/Plan.md", Confidence: 0.8}}
			useProvider(t, p)

			stdout, err := runCLI(t, "resolve", tt.link, "--vault", v.Path, "--json", "--config", writeConfig(t, tt.config))
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			var data resolveData
			if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &data); err != nil {
				t.Fatal(err)
			}
			if data.ResolvedPath != "Projects/Plan.md" {
				t.Errorf("resolved path = %q", data.ResolvedPath)
			}
			if data.LowConfidence != tt.low {
				t.Errorf("low confidence = %v, want %v", data.LowConfidence, tt.low)
			}
			switch {
			case tt.fallback == nil && data.Fallback != nil:
				t.Errorf("fallback = %+v, want none", data.Fallback)
			case tt.fallback != nil && (data.Fallback == nil || *data.Fallback != *tt.fallback):
				t.Errorf("fallback = %+v, want %+v", data.Fallback, tt.fallback)
			}
			if p.calls != tt.calls {
				t.Errorf("provider calls = %d, want %d", p.calls, tt.calls)
			}
		})
	}
}

func TestShowCommand(t *testing.T) {
	v := sampleVault(t)

	stdout, err := runCLI(t, "show", "Home.md", "--vault", v.Path, "--raw")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"title: Home", "See [the plan](Plan) and [[Ghost]].", "![diagram.png](diagram.png)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}

	stdout, err = runCLI(t, "show", "Home.md", "--vault", v.Path, "--json")
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var data showData
	if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Path != "Home.md" || data.Metadata["title"] != "Home" || len(data.Warnings) != 1 {
		t.Errorf("data = %+v", data)
	}
	if len(data.Assets) != 1 || data.Assets[0] != "attachments/diagram.png" {
		t.Errorf("assets = %v", data.Assets)
	}

	t.Run("non-string frontmatter keys", func(t *testing.T) {
		scored := testutil.NewTestVault(t).
			WithFile("Scores.md", "---\nscores:\n  1: high\n  2: low\n---\nbody\n").
			Build()
		stdout, err := runCLI(t, "show", "Scores.md", "--vault", scored.Path, "--json")
		if err != nil {
			t.Fatalf("show --json: %v", err)
		}
		var data showData
		if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &data); err != nil {
			t.Fatal(err)
		}
		scores, ok := data.Metadata["scores"].(map[string]any)
		if !ok || scores["1"] != "high" || scores["2"] != "low" {
			t.Errorf("scores = %#v", data.Metadata["scores"])
		}
	})

	stdout, _ = runCLI(t, "show", "../outside.md", "--vault", v.Path, "--json")
	if env := decodeEnvelope(t, stdout); env.Error == nil || env.Error.Code != ErrFileOutsideVault {
		t.Errorf("envelope = %+v", env)
	}
	stdout, _ = runCLI(t, "show", "Missing.md", "--vault", v.Path, "--json")
	if env := decodeEnvelope(t, stdout); env.Error == nil || env.Error.Code != ErrFileNotFound {
		t.Errorf("envelope = %+v", env)
	}
}

func TestReportCommand(t *testing.T) {
	v := sampleVault(t)

	stdout, _ := runCLI(t, "report", v.Path, "--json")
	if env := decodeEnvelope(t, stdout); env.Error == nil || env.Error.Code != ErrNoRuns {
		t.Fatalf("report before export: %+v", env)
	}

	if _, err := runCLI(t, "export", v.Path, "-o", filepath.Join(t.TempDir(), "out"), "--json"); err != nil {
		t.Fatalf("export: %v", err)
	}

	stdout, err := runCLI(t, "report", v.Path, "--json", "--all")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var data struct {
		Run struct {
			ID    string `json:"id"`
			Files int    `json:"files"`
		} `json:"run"`
		Methods     map[string]int `json:"methods"`
		BrokenLinks []struct {
			Original string `json:"original"`
		} `json:"broken_links"`
		Resolutions []json.RawMessage `json:"resolutions"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Run.ID == "" || data.Run.Files != 2 {
		t.Errorf("run = %+v", data.Run)
	}
	if data.Methods["exact"] != 1 || data.Methods["failed"] != 1 || data.Methods["asset"] != 1 {
		t.Errorf("methods = %v", data.Methods)
	}
	if len(data.BrokenLinks) != 1 || data.BrokenLinks[0].Original != "[[Ghost]]" {
		t.Errorf("broken = %+v", data.BrokenLinks)
	}
	if len(data.Resolutions) != 3 {
		t.Errorf("resolutions = %d, want 3", len(data.Resolutions))
	}

	stdout, err = runCLI(t, "report", v.Path, "--runs", "--json")
	if err != nil {
		t.Fatalf("report --runs: %v", err)
	}
	if env := decodeEnvelope(t, stdout); env.Meta == nil || env.Meta.Count != 1 {
		t.Errorf("runs envelope = %+v", env)
	}

	stdout, _ = runCLI(t, "report", v.Path, "--run", "nope", "--json")
	if env := decodeEnvelope(t, stdout); env.Error == nil || env.Error.Code != ErrRunNotFound {
		t.Errorf("unknown run envelope = %+v", env)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ferry", "config.toml")

	stdout, err := runCLI(t, "config", "path", "--config", path)
	if err != nil || strings.TrimSpace(stdout) != path {
		t.Fatalf("config path = %q, %v", stdout, err)
	}

	stdout, err = runCLI(t, "config", "init", "--config", path, "--json")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	var created struct {
		Created bool `json:"created"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &created); err != nil || !created.Created {
		t.Fatalf("config init data = %s, %v", stdout, err)
	}

	stdout, err = runCLI(t, "config", "--config", path, "--ai", "--json")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var shown struct {
		Exists bool `json:"exists"`
		AI     struct {
			Enabled bool   `json:"enabled"`
			Model   string `json:"model"`
		} `json:"ai"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &shown); err != nil {
		t.Fatal(err)
	}
	if !shown.Exists || !shown.AI.Enabled || shown.AI.Model != "haiku" {
		t.Errorf("config = %+v", shown)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, err := runCLI(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info buildinfo.Info
	if err := json.Unmarshal(decodeEnvelope(t, stdout).Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.Version == "" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	var buf bytes.Buffer
	writeJSON(&buf, Response{OK: true, Data: map[string]any{"ch": make(chan int)}})

	env := decodeEnvelope(t, buf.String())
	if env.OK || env.Error == nil || env.Error.Code != ErrInternal {
		t.Fatalf("envelope = %+v", env)
	}
	if !strings.Contains(env.Error.Message, "failed to encode JSON output") {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestParseLinkArg(t *testing.T) {
	tests := []struct {
		in     string
		target string
		embed  bool
		ok     bool
	}{
		{"Plan", "Plan", false, true},
		{"[[Plan|p]]", "Plan", false, true},
		{"!diagram.png", "diagram.png", true, true},
		{"![[diagram.png]]", "diagram.png", true, true},
		{"[[]]", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, ok := parseLinkArg(tt.in)
			if ok != tt.ok || l.Target != tt.target || l.IsEmbed != tt.embed {
				t.Errorf("parseLinkArg(%q) = %+v, %v", tt.in, l, ok)
			}
		})
	}
}
