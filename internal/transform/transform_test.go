package transform

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/testutil"
	"github.com/aidanlsb/ferry/internal/vault"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

func testIndex() *vault.Index {
	return &vault.Index{
		Root: "/vault",
		ByStem: map[string]string{
			"Note":     "/vault/Note.md",
			"Other":    "/vault/Other.md",
			"Sub Note": "/vault/folder/Sub Note.md",
		},
		ByRelativePath: map[string]string{
			"Note.md":            "/vault/Note.md",
			"Other.md":           "/vault/Other.md",
			"folder/Sub Note.md": "/vault/folder/Sub Note.md",
		},
		AssetsByRelativePath: map[string]string{
			"attachments/diagram.png": "/vault/attachments/diagram.png",
		},
		AssetsByName: map[string]string{
			"diagram.png": "/vault/attachments/diagram.png",
		},
	}
}

func noFiles(string) bool { return false }

func newTestTransformer(opts ...Option) *Transformer {
	opts = append([]Option{WithFileExists(noFiles)}, opts...)
	return Default(resolver.New(), opts...)
}

func TestTransformLinks(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		want       string
		wantAssets []string
	}{
		{
			name: "plain link",
			in:   "See [[Other]].",
			want: "See [Other](Other).",
		},
		{
			name: "alias and header",
			in:   "[[Other#Section One|the section]]",
			want: "[the section](Other#section-one)",
		},
		{
			name: "block id",
			in:   "[[Other#^abc]]",
			want: "[Other](Other#abc)",
		},
		{
			name: "header and block id",
			in:   "[[Other#Part^abc]]",
			want: "[Other](Other#part#abc)",
		},
		{
			name: "path target",
			in:   "[[folder/Sub Note]]",
			want: "[folder/Sub Note](<Sub Note>)",
		},
		{
			name:       "embedded note",
			in:         "![[Other]]",
			want:       "![Other](Other.md)",
			wantAssets: []string{"/vault/Other.md"},
		},
		{
			name:       "link and embed of the same note",
			in:         "[[Other]] then ![[Other]]",
			want:       "[Other](Other) then ![Other](Other.md)",
			wantAssets: []string{"/vault/Other.md"},
		},
		{
			name: "every occurrence rewritten",
			in:   "[[Other]], [[Other]]\n[[Other]]",
			want: "[Other](Other), [Other](Other)\n[Other](Other)",
		},
		{
			name:       "attachment embed",
			in:         "![[diagram.png|Flow]]",
			want:       "![Flow](diagram.png)",
			wantAssets: []string{"/vault/attachments/diagram.png"},
		},
		{
			name: "same note heading",
			in:   "Jump to [[#Getting Started]]",
			want: "Jump to [Getting Started](#getting-started)",
		},
		{
			name: "code is left alone",
			in:   "`[[Other]]` and\n```\n[[Other]]\n```\n[[Other]]",
			want: "`[[Other]]` and\n```\n[[Other]]\n```\n[Other](Other)",
		},
		{
			name: "triple brackets are not links",
			in:   "[[[Other]]]",
			want: "[[[Other]]]",
		},
	}

	tr := newTestTransformer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Transform(context.Background(), "/vault/Note.md", tt.in, testIndex())
			if got.Markdown != tt.want {
				t.Errorf("Markdown = %q, want %q", got.Markdown, tt.want)
			}
			if len(got.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", got.Warnings)
			}
			if !reflect.DeepEqual(got.Assets, tt.wantAssets) {
				t.Errorf("Assets = %v, want %v", got.Assets, tt.wantAssets)
			}
		})
	}
}

func TestTransformBrokenLinks(t *testing.T) {
	tr := newTestTransformer()
	in := "See [[Missing|gone]] and [[Other]] and ![[nope.png]]"
	got := tr.Transform(context.Background(), "/vault/daily/Today.md", in, testIndex())

	want := "See [[Missing|gone]] and [Other](Other) and ![[nope.png]]"
	if got.Markdown != want {
		t.Errorf("Markdown = %q, want %q", got.Markdown, want)
	}
	wantWarnings := []string{
		"Broken wikilink '[[Missing|gone]]' in Today.md: target 'Missing' not found",
		"Broken wikilink '![[nope.png]]' in Today.md: target 'nope.png' not found",
	}
	if !reflect.DeepEqual(got.Warnings, wantWarnings) {
		t.Errorf("Warnings = %q, want %q", got.Warnings, wantWarnings)
	}
	if len(got.Assets) != 0 {
		t.Errorf("Assets = %v, want none", got.Assets)
	}
}

func TestTransformEmptyTargetLink(t *testing.T) {
	tr := newTestTransformer()
	got := tr.Transform(context.Background(), "/vault/Note.md", "Go [[|somewhere]] or [[#Top|up]]", testIndex())

	if want := "Go [[|somewhere]] or [up](#top)"; got.Markdown != want {
		t.Errorf("Markdown = %q, want %q", got.Markdown, want)
	}
	want := []string{"Broken wikilink '[[|somewhere]]' in Note.md: target '' not found"}
	if !reflect.DeepEqual(got.Warnings, want) {
		t.Errorf("Warnings = %q, want %q", got.Warnings, want)
	}
}

func TestTransformIndexNoteOnDisk(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile("index.md", "See [[Missing Note]] and [[index#Intro]].").
		Build()
	idx, err := vault.BuildIndex(vault.NewOSFileSystem(), v.Path)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}

	got := Default(resolver.New()).Transform(context.Background(), v.Abs("index.md"), v.ReadFile("index.md"), idx)

	if want := "See [[Missing Note]] and [index](index#intro)."; got.Markdown != want {
		t.Errorf("Markdown = %q, want %q", got.Markdown, want)
	}
	want := []string{"Broken wikilink '[[Missing Note]]' in index.md: target 'Missing Note' not found"}
	if !reflect.DeepEqual(got.Warnings, want) {
		t.Errorf("Warnings = %q, want %q", got.Warnings, want)
	}
}

func TestTransformFrontmatterAndNormalizers(t *testing.T) {
	tr := newTestTransformer()
	in := "---\ntitle: Plan\ntags: [a, b]\n---\n> [!tip] Remember\n> see [[Other]] ^key\n"
	got := tr.Transform(context.Background(), "/vault/Note.md", in, testIndex())

	want := "> 💡 **Remember:**\n> see [Other](Other) <!-- block: key -->\n"
	if got.Markdown != want {
		t.Errorf("Markdown = %q, want %q", got.Markdown, want)
	}
	if got.Metadata["title"] != "Plan" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if tags, ok := got.Metadata["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", got.Metadata["tags"])
	}
}

func TestTransformEmptyInput(t *testing.T) {
	got := newTestTransformer().Transform(context.Background(), "/vault/Note.md", "", testIndex())
	if got.Markdown != "" || len(got.Metadata) != 0 || len(got.Assets) != 0 || len(got.Warnings) != 0 {
		t.Errorf("got %+v, want empty content", got)
	}
	if got.OriginalPath != "/vault/Note.md" {
		t.Errorf("OriginalPath = %q", got.OriginalPath)
	}
}

func TestTransformMalformedFrontmatter(t *testing.T) {
	in := "---\ntitle: [unclosed\n---\n[[Other]]"
	got := newTestTransformer().Transform(context.Background(), "/vault/Note.md", in, testIndex())
	if len(got.Metadata) != 0 {
		t.Errorf("Metadata = %v, want empty", got.Metadata)
	}
	if !strings.HasSuffix(got.Markdown, "[Other](Other)") {
		t.Errorf("Markdown = %q", got.Markdown)
	}
}

func TestTransformImageAssets(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile("notes/Page.md", "").
		WithFile("notes/img/a.png", "png").
		WithFile("notes/img/b c.png", "png").
		Build()
	idx, err := vault.BuildIndex(vault.NewOSFileSystem(), v.Path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A real file next to the vault, reachable with "../".
	outside := filepath.Join(filepath.Dir(v.Path), "secret.png")
	if err := os.WriteFile(outside, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	in := strings.Join([]string{
		"![a](img/a.png)",
		"![escape](../../secret.png)",
		"![hosts](../../../../../../../../etc/hosts)",
		"![again](img/a.png)",
		"![space](img/b%20c.png)",
		"![remote](https://example.com/x.png)",
		"![absent](img/missing.png)",
		"`![code](img/a.png)`",
	}, "\n")

	tr := Default(resolver.New())
	got := tr.Transform(context.Background(), v.Abs("notes/Page.md"), in, idx)

	want := []string{
		filepath.Join(v.Path, "notes", "img", "a.png"),
		filepath.Join(v.Path, "notes", "img", "b c.png"),
	}
	if !reflect.DeepEqual(got.Assets, want) {
		t.Errorf("Assets = %v, want %v", got.Assets, want)
	}
}

func TestTransformObserver(t *testing.T) {
	var seen []resolver.Method
	tr := newTestTransformer(WithObserver(func(path string, r resolver.Resolved) {
		seen = append(seen, r.Method)
	}))
	tr.Transform(context.Background(), "/vault/Note.md", "[[Other]] [[Sub Note]] [[Nope]] ![[diagram.png]] [[#Top]]", testIndex())

	want := []resolver.Method{resolver.MethodExact, resolver.MethodFilename, resolver.MethodFailed, resolver.MethodAsset}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("observed %v, want %v", seen, want)
	}
}

type recordingResolver struct {
	currentFiles []string
}

func (r *recordingResolver) ResolveFrom(ctx context.Context, link wikilink.Link, idx *vault.Index, currentFile string) resolver.Resolved {
	r.currentFiles = append(r.currentFiles, currentFile)
	return resolver.Resolved{Link: link, Path: "/vault/Other (v2).md", Method: resolver.MethodAIFuzzy, Confidence: 0.8}
}

func TestTransformUsesResolverPort(t *testing.T) {
	rr := &recordingResolver{}
	tr := Default(rr, WithFileExists(noFiles))
	got := tr.Transform(context.Background(), "/vault/folder/Sub Note.md", "[[other thing]]", testIndex())

	if got.Markdown != "[other thing](<Other (v2)>)" {
		t.Errorf("Markdown = %q", got.Markdown)
	}
	if len(rr.currentFiles) != 1 || rr.currentFiles[0] != "folder/Sub Note.md" {
		t.Errorf("current files = %v", rr.currentFiles)
	}
}

func TestResolveAndRewrite(t *testing.T) {
	tr := newTestTransformer()
	idx := testIndex()

	tests := []struct {
		literal string
		method  resolver.Method
		want    string
	}{
		{"[[Other#Next Steps|later]]", resolver.MethodExact, "[later](Other#next-steps)"},
		{"[[Sub Note]]", resolver.MethodFilename, "[Sub Note](<Sub Note>)"},
		{"![[diagram.png|Figure]]", resolver.MethodAsset, "![Figure](diagram.png)"},
		{"[[Nope]]", resolver.MethodFailed, "[[Nope]]"},
		{"[[#Top]]", resolver.MethodFailed, "[Top](#top)"},
		{"[[|alias only]]", resolver.MethodFailed, "[[|alias only]]"},
	}
	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			link, ok := wikilink.Parse(tt.literal)
			if !ok {
				t.Fatalf("Parse(%q) failed", tt.literal)
			}
			res := tr.Resolve(context.Background(), link, idx, "Note.md")
			if res.Method != tt.method {
				t.Errorf("method = %q, want %q", res.Method, tt.method)
			}
			if got := Rewrite(res); got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
		})
	}
}
