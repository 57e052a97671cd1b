package model

import "time"

// Briefing is an optional LLM-written summary of a snapshot. It is kept
// apart from the snapshot and never changes its events.
type Briefing struct {
	Enabled        bool      `json:"enabled"`
	Provider       string    `json:"provider,omitempty"` // openai, anthropic, ollama
	Model          string    `json:"model,omitempty"`
	StrictEvidence bool      `json:"strict_evidence"` // Whether citations were checked against the allowlist
	SummaryMD      string    `json:"summary_md,omitempty"`
	CitedURLs      []string  `json:"cited_urls,omitempty"`
	EvidenceURLs   []string  `json:"evidence_urls,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	SnapshotAt     time.Time `json:"snapshot_at"`
}
