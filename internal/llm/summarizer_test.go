package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	response  *SummarizeResponse
	err       error
	lastReq   SummarizeRequest
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func fp(v float64) *float64 { return &v }

func testSnapshot() *model.Snapshot {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.Snapshot{
		RefreshedAt: at,
		Window:      15 * time.Minute,
		Cutoff:      at.Add(-15 * time.Minute),
		Events: []model.NormalizedEvent{
			{EventID: "1", Date: at, EventType: "Fight", Country: "UP", Latitude: fp(50.45), Longitude: fp(30.52), Intensity: fp(-10), SourceURL: "https://example.com/1"},
			{EventID: "2", Date: at, EventType: "Protest", Country: "FR", Intensity: fp(-6.5), SourceURL: "https://example.com/2"},
			{EventID: "3", Date: at, EventType: "Fight", Country: "UP", SourceURL: "https://example.com/1"},
			{EventID: "4", Date: at, EventType: "Consult", Country: "US"},
		},
	}
}

func TestNewSummarizer_DisabledProvider(t *testing.T) {
	summarizer, err := NewSummarizer(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summarizer.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if summarizer.ProviderName() != "" {
		t.Error("Expected empty provider name when disabled")
	}

	briefing, err := summarizer.GenerateBriefing(context.Background(), testSnapshot())
	if err != nil || briefing != nil {
		t.Errorf("Expected nil briefing when disabled, got %v / %v", briefing, err)
	}
}

func TestNewSummarizer_UnknownProvider(t *testing.T) {
	if _, err := NewSummarizer(Config{Provider: "palm"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestSummarizer_GenerateBriefing_ProviderUnavailable(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: false},
		config:   Config{StrictEvidence: true},
	}

	briefing, err := summarizer.GenerateBriefing(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if briefing == nil || briefing.Enabled {
		t.Fatalf("Expected disabled briefing, got %+v", briefing)
	}
	if len(briefing.Warnings) == 0 || !strings.Contains(briefing.Warnings[0], "not available") {
		t.Errorf("Expected availability warning, got %v", briefing.Warnings)
	}
}

func TestSummarizer_GenerateBriefing_Success(t *testing.T) {
	mock := &MockProvider{
		name:      "test-provider",
		available: true,
		response: &SummarizeResponse{
			Summary:    "Fighting around Kyiv dominated.",
			CitedURLs:  []string{"https://example.com/1"},
			Model:      "test-model",
			TokensUsed: 150,
		},
	}
	generatedAt := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
	summarizer := &Summarizer{
		provider: mock,
		config:   Config{Model: "test-model", StrictEvidence: true, MaxSourceURLs: 20},
		clock:    func() time.Time { return generatedAt },
	}

	snapshot := testSnapshot()
	briefing, err := summarizer.GenerateBriefing(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !briefing.Enabled || briefing.Provider != "test-provider" || briefing.Model != "test-model" {
		t.Errorf("Unexpected briefing header: %+v", briefing)
	}
	if briefing.SummaryMD != "Fighting around Kyiv dominated." {
		t.Errorf("Unexpected summary %q", briefing.SummaryMD)
	}
	if !briefing.GeneratedAt.Equal(generatedAt) || !briefing.SnapshotAt.Equal(snapshot.RefreshedAt) {
		t.Errorf("Unexpected timestamps %v / %v", briefing.GeneratedAt, briefing.SnapshotAt)
	}

	// Allowlist is the distinct source URLs in event order
	want := []string{"https://example.com/1", "https://example.com/2"}
	if strings.Join(mock.lastReq.EvidenceURLs, " ") != strings.Join(want, " ") {
		t.Errorf("Unexpected allowlist %v", mock.lastReq.EvidenceURLs)
	}

	var foundTokens, foundCitations bool
	for _, w := range briefing.Warnings {
		foundTokens = foundTokens || strings.Contains(w, "Tokens used: 150")
		foundCitations = foundCitations || strings.Contains(w, "Verified 1 citations")
	}
	if !foundTokens || !foundCitations {
		t.Errorf("Expected token and citation notes, got %v", briefing.Warnings)
	}

	if len(snapshot.Events) != 4 {
		t.Error("Expected snapshot to be left untouched")
	}
}

func TestSummarizer_GenerateBriefing_EmptySnapshot(t *testing.T) {
	mock := &MockProvider{name: "test-provider", available: true, err: errors.New("should not be called")}
	summarizer := &Summarizer{provider: mock, config: Config{StrictEvidence: true}}

	briefing, err := summarizer.GenerateBriefing(context.Background(), &model.Snapshot{Events: []model.NormalizedEvent{}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if briefing.SummaryMD != "" || len(briefing.Warnings) != 1 || !strings.Contains(briefing.Warnings[0], "No events") {
		t.Errorf("Unexpected briefing %+v", briefing)
	}
	if mock.lastReq.Snapshot != nil {
		t.Error("Expected provider not to be called")
	}
}

func TestSummarizer_GenerateBriefing_ProviderError(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: true, err: errors.New("API rate limit exceeded")},
		config:   Config{StrictEvidence: true},
	}

	briefing, err := summarizer.GenerateBriefing(context.Background(), testSnapshot())
	if err != nil {
		t.Errorf("Expected graceful degradation, got %v", err)
	}
	if !briefing.Enabled || briefing.SummaryMD != "" {
		t.Errorf("Unexpected briefing %+v", briefing)
	}
	if len(briefing.Warnings) == 0 || !strings.Contains(briefing.Warnings[0], "failed") || !strings.Contains(briefing.Warnings[0], "rate limit") {
		t.Errorf("Expected warning to mention error: %v", briefing.Warnings)
	}
}

func TestSummarizer_GenerateBriefing_CitationLeak(t *testing.T) {
	summarizer := &Summarizer{
		provider: &MockProvider{name: "test-provider", available: true, err: &CitationLeakError{URL: "https://evil.example"}},
		config:   Config{StrictEvidence: true},
	}

	briefing, err := summarizer.GenerateBriefing(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(briefing.Warnings) == 0 || !strings.HasPrefix(briefing.Warnings[0], "Briefing rejected") {
		t.Errorf("Expected rejection warning, got %v", briefing.Warnings)
	}
}

func TestRenderMarkdown(t *testing.T) {
	if RenderMarkdown(nil) != "" {
		t.Error("Expected empty markdown for nil briefing")
	}
	if RenderMarkdown(&model.Briefing{Enabled: false}) != "" {
		t.Error("Expected empty markdown when disabled")
	}

	md := RenderMarkdown(&model.Briefing{
		Enabled:        true,
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		StrictEvidence: true,
		SummaryMD:      "Protests spread across Paris.",
		CitedURLs:      []string{"https://example.com/2"},
		Warnings:       []string{"Tokens used: 150"},
		SnapshotAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	for _, section := range []string{
		"# GDELT Briefing",
		"GENERATED CONTENT",
		"determined independently",
		"**Provider**: openai",
		"**Model**: gpt-4o-mini",
		"**Strict Evidence Mode**: true",
		"2024-03-01 12:00:00 UTC",
		"Protests spread across Paris.",
		"## Sources",
		"https://example.com/2",
		"## Notes",
		"Tokens used: 150",
	} {
		if !strings.Contains(md, section) {
			t.Errorf("Expected markdown to contain %q", section)
		}
	}

	md = RenderMarkdown(&model.Briefing{Enabled: true, Provider: "ollama"})
	if !strings.Contains(md, "No briefing generated") {
		t.Error("Expected message about no briefing")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testSnapshot(), []string{"https://example.com/1", "https://example.com/2"})

	for _, element := range []string{
		"CRITICAL RULES",
		"MUST ONLY cite URLs from this allowed list",
		"https://example.com/1",
		"DO NOT infer, speculate",
		"last 15m0s",
		"2024-03-01 12:00 UTC",
		"Events: 4",
		"Events with coordinates: 1",
		"- Fight: 2",
		"- UP: 1",
		"- Very Negative: 1",
	} {
		if !strings.Contains(prompt, element) {
			t.Errorf("Expected prompt to contain %q", element)
		}
	}
}

func TestBuildPrompt_NoURLs(t *testing.T) {
	prompt := BuildPrompt(&model.Snapshot{}, nil)
	if !strings.Contains(prompt, "No source URLs available") {
		t.Error("Expected message about no source URLs")
	}
	if !strings.Contains(prompt, "- (none)") {
		t.Error("Expected empty count lists")
	}
}

func TestJoinURLs_Truncates(t *testing.T) {
	urls := make([]string, 25)
	for i := range urls {
		urls[i] = "https://example.com/" + string(rune('a'+i))
	}

	result := joinURLs(urls)
	if !strings.Contains(result, "and 5 more URLs") {
		t.Error("Expected truncation message for many URLs")
	}
	if !strings.Contains(result, urls[0]) || strings.Contains(result, urls[24]) {
		t.Error("Expected only the first 20 URLs")
	}
}

func TestEvidenceURLs(t *testing.T) {
	urls := EvidenceURLs(testSnapshot().Events, 1)
	if len(urls) != 1 || urls[0] != "https://example.com/1" {
		t.Errorf("Expected limit to apply, got %v", urls)
	}
	if got := EvidenceURLs(nil, 5); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %v", got)
	}
}

func TestExtractURLs(t *testing.T) {
	got := extractURLs("See https://a.example/x. Also (https://b.example/y) and https://a.example/x!")
	want := []string{"https://a.example/x", "https://b.example/y"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCheckCitations_NonStrict(t *testing.T) {
	cited, err := checkCitations("https://anywhere.example", nil, false)
	if err != nil || len(cited) != 1 {
		t.Errorf("Expected citation to pass in non-strict mode, got %v / %v", cited, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.Provider != "" {
		t.Errorf("Expected provider to be empty (disabled), got %q", config.Provider)
	}
	if !config.StrictEvidence {
		t.Error("Expected strict evidence to be enabled by default")
	}
	if config.Timeout <= 0 || config.MaxTokens <= 0 || config.MaxSourceURLs != 20 {
		t.Errorf("Unexpected defaults %+v", config)
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3.1"
	cfg.HTTP.HTTPSProxy = "http://proxy.internal:3128"

	got := ConfigFromModel(cfg)
	if got.Provider != "ollama" || got.Model != "llama3.1" || got.HTTPSProxy != "http://proxy.internal:3128" {
		t.Errorf("Unexpected config %+v", got)
	}
	if got.Timeout != cfg.LLM.Timeout || !got.StrictEvidence {
		t.Errorf("Expected defaults to carry over, got %+v", got)
	}
}
