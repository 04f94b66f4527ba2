package assist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeProvider struct {
	available bool
	resp      Response
	err       error
	panicMsg  string
	calls     int
	prompts   []Prompt
}

func (f *fakeProvider) IsAvailable() bool { return f.available }

func (f *fakeProvider) Generate(ctx context.Context, p Prompt) (Response, error) {
	f.calls++
	f.prompts = append(f.prompts, p)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.resp, f.err
}

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func linkRequest(content string) Request {
	return Request{
		Type:    WikilinkResolution,
		Content: content,
		Context: map[string]any{"vault_files": []string{"a.md"}, "current_file": "x.md"},
	}
}

func TestGetAssistanceUnavailable(t *testing.T) {
	ctx := context.Background()

	if New(nil).GetAssistance(ctx, linkRequest("[[a]]")) != nil {
		t.Error("nil provider must give no assistance")
	}

	p := &fakeProvider{available: false, resp: Response{Content: "a.md", Confidence: 1}}
	if New(p).GetAssistance(ctx, linkRequest("[[a]]")) != nil {
		t.Error("unavailable provider must give no assistance")
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times, want 0", p.calls)
	}
}

func TestGetAssistanceCaching(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.9}}
	a := New(p, WithRateLimit(1))

	first := a.GetAssistance(ctx, linkRequest("[[a]]"))
	if first == nil || first.Content != "a.md" {
		t.Fatalf("first = %+v", first)
	}

	// The window is full, but a cache hit bypasses the limit.
	second := a.GetAssistance(ctx, linkRequest("[[a]]"))
	if second == nil || second.Content != "a.md" {
		t.Fatalf("second = %+v, want cached response", second)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}

	// A different request is not cached and is rate limited.
	if got := a.GetAssistance(ctx, linkRequest("[[b]]")); got != nil {
		t.Errorf("expected rate limited nil, got %+v", got)
	}

	stats := a.Stats()
	if stats.CacheHits != 1 || stats.RateLimited != 1 || stats.ProviderCalls != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetAssistanceCacheDisabled(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.9}}
	a := New(p, WithCache(false))
	a.GetAssistance(ctx, linkRequest("[[a]]"))
	a.GetAssistance(ctx, linkRequest("[[a]]"))
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestGetAssistanceContextAffectsKey(t *testing.T) {
	ctx := context.Background()
	p := &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.9}}
	a := New(p)

	a.GetAssistance(ctx, Request{Type: WikilinkResolution, Content: "[[a]]", Context: map[string]any{"current_file": "one.md"}})
	a.GetAssistance(ctx, Request{Type: WikilinkResolution, Content: "[[a]]", Context: map[string]any{"current_file": "two.md"}})
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}

	a.GetAssistance(ctx, Request{Type: ComplexStructure, Content: "[[a]]", Context: map[string]any{"current_file": "one.md"}})
	if p.calls != 3 {
		t.Errorf("provider calls = %d, want 3 (type is part of the key)", p.calls)
	}
}

func TestGetAssistanceFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		provider *fakeProvider
		opts     []Option
	}{
		{"provider error", &fakeProvider{available: true, err: errors.New("boom")}, nil},
		{"provider panic", &fakeProvider{available: true, panicMsg: "kaboom"}, nil},
		{"low confidence", &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.5}}, nil},
		{"custom floor", &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.8}}, []Option{WithMinConfidence(0.9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.provider, tt.opts...)
			if got := a.GetAssistance(ctx, linkRequest("[[a]]")); got != nil {
				t.Errorf("got %+v, want nil", got)
			}
			// Failures are not cached: the provider is asked again.
			a.GetAssistance(ctx, linkRequest("[[a]]"))
			if tt.provider.calls != 2 {
				t.Errorf("provider calls = %d, want 2", tt.provider.calls)
			}
		})
	}
}

func TestGetAssistanceUnknownType(t *testing.T) {
	p := &fakeProvider{available: true, resp: Response{Content: "x", Confidence: 1}}
	a := New(p)
	if got := a.GetAssistance(context.Background(), Request{Type: "bogus"}); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
	if p.calls != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls)
	}
}

func TestRateLimitWindowSlides(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.9}}
	a := New(p, WithRateLimit(2), WithClock(clock.Now))

	links := []string{"[[a]]", "[[b]]", "[[c]]"}
	for i, link := range links[:2] {
		if a.GetAssistance(ctx, linkRequest(link)) == nil {
			t.Fatalf("request %d (%s) should pass", i, link)
		}
	}
	if a.GetAssistance(ctx, linkRequest(links[2])) != nil {
		t.Fatal("third distinct request within the minute should be limited")
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
	if got := a.Stats(); got.WindowCalls != 2 || got.RateLimited != 1 {
		t.Errorf("stats = %+v, want 2 calls in window and 1 limited", got)
	}

	clock.Advance(61 * time.Second)
	if got := a.Stats().WindowCalls; got != 0 {
		t.Errorf("window calls after a minute = %d, want 0", got)
	}
	if a.GetAssistance(ctx, linkRequest(links[2])) == nil {
		t.Fatal("request after the window should pass")
	}
}

func TestLimiterInWindow(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(3, time.Minute)
	l.now = clock.Now

	tests := []struct {
		name    string
		advance time.Duration
		allow   bool
		want    int
	}{
		{"first event", 0, true, 1},
		{"second event", 20 * time.Second, true, 2},
		{"first ages out", 45 * time.Second, false, 1},
		{"both age out", time.Minute, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Advance(tt.advance)
			if tt.allow && !l.Allow() {
				t.Fatal("Allow() = false, want true")
			}
			if got := l.InWindow(); got != tt.want {
				t.Errorf("InWindow() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetAssistanceAsync(t *testing.T) {
	p := &fakeProvider{available: true, resp: Response{Content: "a.md", Confidence: 0.9}}
	a := New(p)

	got := <-a.GetAssistanceAsync(context.Background(), linkRequest("[[a]]"))
	if got == nil || got.Content != "a.md" {
		t.Fatalf("got %+v", got)
	}

	none := New(nil)
	ch := none.GetAssistanceAsync(context.Background(), linkRequest("[[a]]"))
	if v := <-ch; v != nil {
		t.Errorf("got %+v, want nil", v)
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed after one value")
	}
}

func TestFormatPrompt(t *testing.T) {
	files := make([]string, 30)
	for i := range files {
		files[i] = "note" + string(rune('a'+i%26)) + ".md"
	}
	p, err := FormatPrompt(Request{
		Type:    WikilinkResolution,
		Content: "[[Projct]]",
		Context: map[string]any{"vault_files": files, "current_file": "home.md"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != WikilinkResolution {
		t.Errorf("type = %q", p.Type)
	}
	if got := strings.Count(p.Text, "\n- "); got != MaxPromptFiles {
		t.Errorf("listed %d files, want %d", got, MaxPromptFiles)
	}
	if !strings.Contains(p.Text, "Wikilink: [[Projct]]") || !strings.Contains(p.Text, "Current file: home.md") {
		t.Errorf("prompt missing request details:\n%s", p.Text)
	}

	s, _ := FormatPrompt(Request{Type: ComplexStructure, Content: "> > x"})
	if !strings.Contains(s.Text, "Parse type: unknown") || !strings.Contains(s.Text, "JSON") {
		t.Errorf("structure prompt:\n%s", s.Text)
	}

	amb, _ := FormatPrompt(Request{Type: AmbiguousSyntax, Content: "[[[x]]]", Context: map[string]any{"syntax_type": "triple_bracket"}})
	if !strings.Contains(amb.Text, "Syntax type: triple_bracket") {
		t.Errorf("ambiguous prompt:\n%s", amb.Text)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
		key  string
	}{
		{"bare", `{"type":"callout"}`, true, "type"},
		{"fenced", "Here:\n```json\n{\"type\": \"list\"}\n```", true, "type"},
		{"surrounded", `Sure! {"a": 1} hope that helps`, true, "a"},
		{"not json", "just words", false, ""},
		{"broken", `{"a": }`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok {
				if _, present := got[tt.key]; !present {
					t.Errorf("missing key %q in %v", tt.key, got)
				}
			}
		})
	}
}
