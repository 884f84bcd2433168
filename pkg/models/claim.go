package models

import "time"

// Category is one of the ten fixed knowledge domains.
type Category string

// Knowledge categories.
const (
	CategoryHypertrophy      Category = "hypertrophy"
	CategoryStrength         Category = "strength"
	CategoryEndurance        Category = "endurance"
	CategoryNutrition        Category = "nutrition"
	CategoryRecovery         Category = "recovery"
	CategoryInjuryPrevention Category = "injury_prevention"
	CategoryTechnique        Category = "technique"
	CategoryProgramming      Category = "programming"
	CategorySupplements      Category = "supplements"
	CategoryGeneral          Category = "general"
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryHypertrophy,
	CategoryStrength,
	CategoryEndurance,
	CategoryNutrition,
	CategoryRecovery,
	CategoryInjuryPrevention,
	CategoryTechnique,
	CategoryProgramming,
	CategorySupplements,
	CategoryGeneral,
}

// IsValidCategory reports whether c is a member of the closed enumeration.
func IsValidCategory(c Category) bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ClaimStatus is the lifecycle state of a scientific claim.
type ClaimStatus string

// Claim status constants. Draft claims are created by extraction and become
// active or deprecated exactly once, during validation.
const (
	ClaimDraft      ClaimStatus = "draft"
	ClaimActive     ClaimStatus = "active"
	ClaimDeprecated ClaimStatus = "deprecated"
)

// EmbeddingStatus tracks whether a claim's vector has been computed.
type EmbeddingStatus string

// Embedding status constants. EmbeddingProcessing is a transient worker-local
// claim marker set by the store when a batch is handed to the knowledge-base
// agent; terminal states are completed and failed.
const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingFailed     EmbeddingStatus = "failed"
)

// Evidence level bounds: 1 = expert opinion, 5 = meta-analysis.
const (
	EvidenceLevelMin = 1
	EvidenceLevelMax = 5
)

// Study design tags produced by the extraction capability and the PubMed
// publication-type mapping.
const (
	DesignMetaAnalysis     = "meta_analysis"
	DesignSystematicReview = "systematic_review"
	DesignRCT              = "rct"
	DesignCohort           = "cohort"
	DesignCaseControl      = "case_control"
	DesignCrossSectional   = "cross_sectional"
	DesignCaseStudy        = "case_study"
	DesignExpertOpinion    = "expert_opinion"
)

// ScientificClaim is a single distilled assertion with provenance and
// study metadata.
type ScientificClaim struct {
	ID              string      `json:"id"`
	Claim           string      `json:"claim"`
	ClaimSummary    string      `json:"claim_summary"`
	Category        Category    `json:"category"`
	EvidenceLevel   int         `json:"evidence_level"`
	ConfidenceScore float64     `json:"confidence_score"`
	Status          ClaimStatus `json:"status"`

	// Provenance
	SourceDOI       *string    `json:"source_doi,omitempty"`
	SourceURL       *string    `json:"source_url,omitempty"`
	SourceTitle     *string    `json:"source_title,omitempty"`
	SourceAuthors   []string   `json:"source_authors,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`

	// Study metadata
	SampleSize  *int     `json:"sample_size,omitempty"`
	StudyDesign *string  `json:"study_design,omitempty"`
	Population  *string  `json:"population,omitempty"`
	EffectSize  *string  `json:"effect_size,omitempty"`
	KeyFindings []string `json:"key_findings,omitempty"`
	Limitations *string  `json:"limitations,omitempty"`

	ConflictingEvidence bool `json:"conflicting_evidence"`
	AutoValidated       bool `json:"auto_validated"`

	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	Embedding       []float32       `json:"embedding,omitempty"`
	EmbeddingError  *string         `json:"embedding_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClaimPatch carries the mutable validation-stage fields of a claim.
// Nil fields are left untouched.
type ClaimPatch struct {
	Status              *ClaimStatus
	ConfidenceScore     *float64
	ConflictingEvidence *bool
	AutoValidated       *bool
}

// SimilarClaim is a semantic-search hit returned by the store.
type SimilarClaim struct {
	ID            string   `json:"id"`
	Claim         string   `json:"claim"`
	Similarity    float64  `json:"similarity"`
	EvidenceLevel int      `json:"evidence_level"`
	StudyDesign   *string  `json:"study_design,omitempty"`
	Category      Category `json:"category"`
}

// ClampScore bounds a confidence or validation score to [0,1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
