// Package assist provides cached, rate-limited access to a language-model
// provider for link resolution and parsing help. Every failure mode
// (unavailable provider, rate limit, provider error, low confidence) is
// reported as "no assistance" rather than an error.
package assist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aidanlsb/ferry/internal/logging"
)

// RequestType selects the prompt used for a request.
type RequestType string

const (
	WikilinkResolution RequestType = "wikilink_resolution"
	ComplexStructure   RequestType = "complex_structure"
	AmbiguousSyntax    RequestType = "ambiguous_syntax"
)

// Request asks the assistant for help with one piece of content.
type Request struct {
	Type    RequestType
	Content string
	Context map[string]any
}

// Response is a provider answer with its confidence in [0, 1].
type Response struct {
	Content    string
	Confidence float64
	Reasoning  string
}

// Prompt is what the assistant sends to a provider.
type Prompt struct {
	Type RequestType
	Text string
}

// Provider runs inference.
type Provider interface {
	IsAvailable() bool
	Generate(ctx context.Context, prompt Prompt) (Response, error)
}

// Defaults.
const (
	DefaultRateLimitPerMinute = 60
	DefaultMinConfidence      = 0.6
)

// Stats counts what happened to requests over the assistant's lifetime.
type Stats struct {
	ProviderCalls int `json:"provider_calls"`
	CacheHits     int `json:"cache_hits"`
	RateLimited   int `json:"rate_limited"`
	LowConfidence int `json:"low_confidence"`
	Failures      int `json:"failures"`

	// WindowCalls is the number of provider calls in the current rate
	// limit window. It stays zero when the limit is off.
	WindowCalls int `json:"window_calls"`
}

// Assistant wraps a Provider with a response cache, a sliding-window rate
// limit, and a confidence floor. State is per instance.
type Assistant struct {
	provider      Provider
	cacheEnabled  bool
	minConfidence float64
	logger        logging.Logger

	mu      sync.Mutex
	cache   map[string]Response
	limiter *Limiter
	stats   Stats
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithCache enables or disables the response cache (default enabled).
func WithCache(enabled bool) Option {
	return func(a *Assistant) { a.cacheEnabled = enabled }
}

// WithRateLimit sets the number of provider calls allowed per rolling
// minute. Zero or less disables the limit.
func WithRateLimit(perMinute int) Option {
	return func(a *Assistant) { a.limiter.max = perMinute }
}

// WithMinConfidence sets the confidence floor below which responses are
// discarded.
func WithMinConfidence(v float64) Option {
	return func(a *Assistant) { a.minConfidence = v }
}

// WithClock replaces the rate limiter's clock.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.limiter.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Assistant) { a.logger = logging.OrNoOp(l) }
}

// New creates an Assistant. A nil provider yields a permanently unavailable
// assistant.
func New(provider Provider, opts ...Option) *Assistant {
	a := &Assistant{
		provider:      provider,
		cacheEnabled:  true,
		minConfidence: DefaultMinConfidence,
		logger:        logging.NoOp(),
		cache:         make(map[string]Response),
		limiter:       NewLimiter(DefaultRateLimitPerMinute, time.Minute),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsAvailable reports whether a configured provider is ready.
func (a *Assistant) IsAvailable() bool {
	return a != nil && a.provider != nil && a.provider.IsAvailable()
}

// GetAssistance returns a response, or nil when no assistance is available.
// Cache hits skip both the rate limit and the provider.
func (a *Assistant) GetAssistance(ctx context.Context, req Request) *Response {
	if !a.IsAvailable() {
		return nil
	}

	key := cacheKey(req)
	a.mu.Lock()
	if a.cacheEnabled {
		if cached, ok := a.cache[key]; ok {
			a.stats.CacheHits++
			a.mu.Unlock()
			return &cached
		}
	}
	if !a.limiter.Allow() {
		a.stats.RateLimited++
		a.mu.Unlock()
		a.logger.Debug("assist: rate limit reached", "type", req.Type)
		return nil
	}
	a.stats.ProviderCalls++
	a.mu.Unlock()

	prompt, err := FormatPrompt(req)
	if err != nil {
		a.fail(req, err)
		return nil
	}

	resp, err := a.generate(ctx, prompt)
	if err != nil {
		a.fail(req, err)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if resp.Confidence < a.minConfidence {
		a.stats.LowConfidence++
		return nil
	}
	if a.cacheEnabled {
		a.cache[key] = resp
	}
	return &resp
}

// GetAssistanceAsync runs GetAssistance on its own goroutine. The channel
// receives exactly one value and is then closed.
func (a *Assistant) GetAssistanceAsync(ctx context.Context, req Request) <-chan *Response {
	ch := make(chan *Response, 1)
	go func() {
		defer close(ch)
		ch <- a.GetAssistance(ctx, req)
	}()
	return ch
}

// Stats returns a snapshot of request counters.
func (a *Assistant) Stats() Stats {
	if a == nil {
		return Stats{}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.WindowCalls = a.limiter.InWindow()
	return s
}

// generate calls the provider, converting a panic into an error.
func (a *Assistant) generate(ctx context.Context, prompt Prompt) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return a.provider.Generate(ctx, prompt)
}

func (a *Assistant) fail(req Request, err error) {
	a.mu.Lock()
	a.stats.Failures++
	a.mu.Unlock()
	a.logger.Debug("assist: provider request failed", "type", req.Type, "error", err)
}

// cacheKey hashes type, content, and context. encoding/json sorts map keys,
// so equal contexts produce equal keys.
func cacheKey(req Request) string {
	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		ctxJSON = []byte(fmt.Sprintf("%v", req.Context))
	}
	sum := sha256.Sum256([]byte(string(req.Type) + ":" + req.Content + ":" + string(ctxJSON)))
	return hex.EncodeToString(sum[:])
}
