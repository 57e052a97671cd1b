package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/logging"
	"github.com/ppiankov/gdeltwatch/internal/model"
)

// Summarizer produces briefings with the configured provider. A disabled
// summarizer returns nil briefings.
type Summarizer struct {
	provider Provider
	config   Config
	clock    func() time.Time
}

// NewSummarizer creates a summarizer; an empty provider disables it
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider, or ""
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

func (s *Summarizer) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}

// GenerateBriefing summarizes the snapshot. Provider failures and citation
// leaks are reported as warnings on the briefing, not as errors, so a
// briefing problem never fails the caller's refresh or export.
func (s *Summarizer) GenerateBriefing(ctx context.Context, snapshot *model.Snapshot) (*model.Briefing, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	briefing := &model.Briefing{
		Provider:       s.provider.Name(),
		Model:          s.config.Model,
		StrictEvidence: s.config.StrictEvidence,
		GeneratedAt:    s.now(),
	}
	if snapshot != nil {
		briefing.SnapshotAt = snapshot.RefreshedAt
	}

	if !s.provider.IsAvailable(ctx) {
		briefing.Warnings = append(briefing.Warnings, fmt.Sprintf("LLM provider %s is not available (check API key or connectivity)", briefing.Provider))
		return briefing, nil
	}
	briefing.Enabled = true

	if snapshot.Empty() {
		briefing.Warnings = append(briefing.Warnings, "No events in snapshot; nothing to brief")
		return briefing, nil
	}

	limit := s.config.MaxSourceURLs
	if limit <= 0 {
		limit = maxPromptURLs
	}
	briefing.EvidenceURLs = EvidenceURLs(snapshot.Events, limit)

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Snapshot:     snapshot,
		EvidenceURLs: briefing.EvidenceURLs,
		Model:        s.config.Model,
		MaxTokens:    s.config.MaxTokens,
	})
	if err != nil {
		var leak *CitationLeakError
		if errors.As(err, &leak) {
			briefing.Warnings = append(briefing.Warnings, "Briefing rejected: "+err.Error())
		} else {
			briefing.Warnings = append(briefing.Warnings, "Briefing generation failed: "+err.Error())
		}
		logging.Ctx(ctx).Warn().Err(err).Str("provider", briefing.Provider).Msg("briefing failed")
		return briefing, nil
	}

	briefing.SummaryMD = resp.Summary
	briefing.CitedURLs = resp.CitedURLs
	if resp.Model != "" {
		briefing.Model = resp.Model
	}
	briefing.Warnings = append(briefing.Warnings, fmt.Sprintf("Tokens used: %d", resp.TokensUsed))
	if s.config.StrictEvidence {
		briefing.Warnings = append(briefing.Warnings, fmt.Sprintf("Verified %d citations against %d allowed source URLs", len(resp.CitedURLs), len(briefing.EvidenceURLs)))
	}

	logging.Ctx(ctx).Info().Str("provider", briefing.Provider).Str("model", briefing.Model).Int("tokens", resp.TokensUsed).Msg("briefing generated")
	return briefing, nil
}

// RenderMarkdown renders a briefing as a standalone markdown document
func RenderMarkdown(b *model.Briefing) string {
	if b == nil || !b.Enabled {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("# GDELT Briefing\n\n")
	sb.WriteString("> **GENERATED CONTENT**: written by a language model from machine-coded event records. ")
	sb.WriteString("Event counts and exports are determined independently of this text.\n\n")

	fmt.Fprintf(&sb, "- **Provider**: %s\n", b.Provider)
	if b.Model != "" {
		fmt.Fprintf(&sb, "- **Model**: %s\n", b.Model)
	}
	fmt.Fprintf(&sb, "- **Strict Evidence Mode**: %t\n", b.StrictEvidence)
	if !b.SnapshotAt.IsZero() {
		fmt.Fprintf(&sb, "- **Snapshot**: %s UTC\n", b.SnapshotAt.UTC().Format("2006-01-02 15:04:05"))
	}
	sb.WriteString("\n")

	if b.SummaryMD != "" {
		sb.WriteString(b.SummaryMD)
		sb.WriteString("\n")
	} else {
		sb.WriteString("_No briefing generated._\n")
	}

	if len(b.CitedURLs) > 0 {
		sb.WriteString("\n## Sources\n\n")
		for _, u := range b.CitedURLs {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}

	if len(b.Warnings) > 0 {
		sb.WriteString("\n## Notes\n\n")
		for _, w := range b.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}

	return sb.String()
}
