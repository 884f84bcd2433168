// Package llm defines the narrow language-model capability interface the
// agents consume, and its HTTP chat-completions and embeddings providers.
// Agents receive the interface, never a concrete provider; a nil or failing
// provider degrades per the pipeline's fallback rules.
package llm

import "context"

// ExtractedClaim is one structured claim lifted from a paper abstract.
type ExtractedClaim struct {
	Claim         string   `json:"claim"`
	ClaimSummary  string   `json:"claim_summary"`
	EvidenceLevel int      `json:"evidence_level"`
	SampleSize    *int     `json:"sample_size,omitempty"`
	EffectSize    *string  `json:"effect_size,omitempty"`
	StudyDesign   string   `json:"study_design"`
	Population    *string  `json:"population,omitempty"`
	KeyFindings   []string `json:"key_findings"`
	Limitations   *string  `json:"limitations,omitempty"`
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
}

// NeighborClaim summarizes an existing similar claim for validation context.
type NeighborClaim struct {
	ID            string  `json:"id"`
	Claim         string  `json:"claim"`
	Similarity    float64 `json:"similarity"`
	EvidenceLevel int     `json:"evidence_level"`
	StudyDesign   string  `json:"study_design"`
}

// ValidateClaimInput carries the claim and its metadata to the validation
// capability.
type ValidateClaimInput struct {
	Claim         string
	Category      string
	EvidenceLevel int
	StudyDesign   string
	SampleSize    *int
	EffectSize    *string
	Neighbors     []NeighborClaim
}

// ValidationResult is the validation capability's verdict.
type ValidationResult struct {
	IsValid          bool     `json:"is_valid"`
	RejectionReasons []string `json:"rejection_reasons"`
	DuplicateOf      string   `json:"duplicate_of,omitempty"`
	ConflictsWith    []string `json:"conflicts_with"`
}

// ConflictClaim is one side of a pairwise conflict check.
type ConflictClaim struct {
	Claim         string
	EvidenceLevel int
	StudyDesign   string
}

// ConflictResult is the conflict capability's verdict.
type ConflictResult struct {
	ConflictDetected bool    `json:"conflict_detected"`
	ConflictType     string  `json:"conflict_type"`
	Confidence       float64 `json:"confidence"`
	Explanation      string  `json:"explanation"`
}

// Capability is the late-bound LLM interface consumed by the agents.
type Capability interface {
	// ExtractClaims lifts structured claims from a paper. An empty abstract
	// yields zero claims without error.
	ExtractClaims(ctx context.Context, title string, authors []string, abstract string) ([]ExtractedClaim, error)

	// ValidateClaim judges a draft claim against its metadata and neighbors.
	ValidateClaim(ctx context.Context, input ValidateClaimInput) (*ValidationResult, error)

	// DetectConflict decides whether two claims contradict each other.
	DetectConflict(ctx context.Context, a, b ConflictClaim) (*ConflictResult, error)

	// Embed computes the embedding vector for a text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
