// Package textgen drafts usernames and welcome emails with an external
// text-generation service. Every operation degrades to a deterministic local
// result, so callers never wait on or fail because of the service.
package textgen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/time/rate"
)

// DefaultModel is the model used when none is configured
const DefaultModel = "gemini-3-flash-preview"

// Generator produces text for a prompt
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Assistant wraps a Generator with prompts, rate limiting and fallbacks
type Assistant struct {
	gen     Generator
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures an Assistant
type Option func(*Assistant)

// WithModel overrides the model identifier
func WithModel(model string) Option {
	return func(a *Assistant) {
		if model != "" {
			a.model = model
		}
	}
}

// WithRateLimit caps outbound calls; calls over the limit use the fallback.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Assistant) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// NewAssistant creates an Assistant. gen may be nil when no credential is
// configured, in which case only the local fallbacks are used.
func NewAssistant(gen Generator, opts ...Option) *Assistant {
	a := &Assistant{
		gen:    gen,
		model:  DefaultModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether a text-generation service is configured
func (a *Assistant) Available() bool {
	return a.gen != nil
}

// SuggestUsername proposes a linux username for fullName
func (a *Assistant) SuggestUsername(ctx context.Context, fullName string) string {
	fallback := FallbackUsername(fullName)

	prompt := fmt.Sprintf(`Suggest a standard linux system username for %q.
Return ONLY the username string (lowercase, alphanumeric).
Prefer the format: firstinitial.lastname or firstname.lastname.`, fullName)

	text, ok := a.generate(ctx, "suggest_username", prompt)
	if !ok {
		return fallback
	}
	if suggested := sanitizeUsername(text); suggested != "" {
		return suggested
	}
	return fallback
}

// GenerateWelcomeEmail drafts a welcome email for a newly provisioned account
func (a *Assistant) GenerateWelcomeEmail(ctx context.Context, fullName, username, serverName string) string {
	prompt := fmt.Sprintf(`Write a professional and concise welcome email for a new user on a Linux server.

Details:
- Name: %s
- Username: %s
- Server: %s
- Context: This is an internal company server.

The email should include placeholders for their temporary password and instructions to change it upon first login via SSH.
Keep the tone helpful and technical.`, fullName, username, serverName)

	text, ok := a.generate(ctx, "welcome_email", prompt)
	if !ok {
		return FallbackWelcomeEmail(fullName, username, serverName)
	}
	return strings.TrimSpace(text)
}

// generate calls the service, reporting false whenever the fallback should be used
func (a *Assistant) generate(ctx context.Context, op, prompt string) (string, bool) {
	if a.gen == nil {
		return "", false
	}
	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Info("text generation rate limited, using fallback", slog.String("op", op))
		return "", false
	}

	text, err := a.gen.Generate(ctx, a.model, prompt)
	if err != nil {
		a.logger.Warn("text generation failed, using fallback", slog.String("op", op), slog.Any("error", err))
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// FallbackUsername lowercases name and strips all whitespace
func FallbackUsername(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, name)
}

// sanitizeUsername keeps the first non-empty line of a model answer and
// strips quoting the model tends to add.
func sanitizeUsername(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`\"'")
		if line != "" {
			return FallbackUsername(line)
		}
	}
	return ""
}
