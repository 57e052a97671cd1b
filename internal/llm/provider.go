// Package llm writes optional natural-language briefings over a snapshot.
// Providers may only cite source URLs taken from the snapshot itself.
package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
	"github.com/ppiankov/gdeltwatch/internal/stats"
)

// maxPromptURLs caps the allowlist rendered into a prompt
const maxPromptURLs = 20

const systemPrompt = "You are a news desk analyst writing short briefings about recent GDELT events with strict adherence to evidence constraints."

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize generates a briefing of the snapshot with strict evidence mode
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for a briefing
type SummarizeRequest struct {
	Snapshot *model.Snapshot

	// EvidenceURLs is the allowlist of URLs the model may cite
	EvidenceURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the provider's output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", or "" for disabled
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration

	MaxTokens   int
	Temperature float32

	// StrictEvidence rejects responses that cite URLs outside the allowlist
	StrictEvidence bool

	// MaxSourceURLs bounds the allowlist taken from the snapshot
	MaxSourceURLs int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the disabled default configuration
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxTokens:      800,
		Temperature:    0.2,
		StrictEvidence: true,
		MaxSourceURLs:  maxPromptURLs,
	}
}

// CitationLeakError means a response cited a URL outside the allowlist
type CitationLeakError struct {
	URL string
}

func (e *CitationLeakError) Error() string {
	return "citation leak: response cited disallowed URL: " + e.URL
}

// EvidenceURLs returns up to limit distinct source URLs in event order
func EvidenceURLs(events []model.NormalizedEvent, limit int) []string {
	seen := make(map[string]struct{})
	urls := []string{}
	for i := range events {
		u := strings.TrimSpace(events[i].SourceURL)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls
}

// BuildPrompt constructs the default briefing prompt
func BuildPrompt(snapshot *model.Snapshot, evidenceURLs []string) string {
	var events []model.NormalizedEvent
	var refreshed time.Time
	var window time.Duration
	if snapshot != nil {
		events = snapshot.Events
		refreshed = snapshot.RefreshedAt
		window = snapshot.Window
	}
	summary := stats.Summarize(events)

	var b strings.Builder
	fmt.Fprintf(&b, `You are briefing an analyst on events recorded by GDELT in the last %s (as of %s UTC).

CRITICAL RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. DO NOT infer, speculate, or cite external sources beyond this list.
3. Describe what the event records say happened. Event records are machine-coded from news and may be noisy; say so when counts are small.
4. Do not invent numbers; use only the figures below.

Snapshot:
- Events: %d
- Events with coordinates: %d
`, window, refreshed.UTC().Format("2006-01-02 15:04"), joinURLs(evidenceURLs), summary.Total, summary.WithCoordinates)

	b.WriteString("\nTop event types:\n")
	writeCounts(&b, summary.EventTypes, 5)

	b.WriteString("\nTop countries:\n")
	writeCounts(&b, summary.TopCountries, 5)

	b.WriteString("\nMost frequent source domains:\n")
	writeCounts(&b, summary.SourceDomains, 5)

	b.WriteString("\nIntensity (Goldstein scale):\n")
	for _, bin := range summary.Intensity {
		fmt.Fprintf(&b, "- %s: %d\n", bin.Label, bin.Count)
	}

	b.WriteString("\nProvide a 3-5 sentence briefing of the main developments.")
	return b.String()
}

func writeCounts(b *strings.Builder, counts []stats.Count, limit int) {
	if len(counts) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for i, c := range counts {
		if i >= limit {
			break
		}
		fmt.Fprintf(b, "- %s: %d\n", c.Label, c.Count)
	}
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No source URLs available)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= maxPromptURLs {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-maxPromptURLs)
			break
		}
		b.WriteString("\n- " + u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"]+`)

// extractURLs returns the distinct URLs found in text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// checkCitations extracts cited URLs and, in strict mode, rejects any not
// in the allowlist
func checkCitations(summary string, allowed []string, strict bool) ([]string, error) {
	cited := extractURLs(summary)
	if !strict {
		return cited, nil
	}
	for _, u := range cited {
		if !contains(allowed, u) {
			return nil, &CitationLeakError{URL: u}
		}
	}
	return cited, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c Config) modelOr(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

func (c Config) maxTokensOr(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 800
}

func (c Config) timeoutOr(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

func promptFor(req SummarizeRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Snapshot, req.EvidenceURLs)
}
