package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

func defaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		BatchSize:            10,
		SimilarityThreshold:  0.85,
		MinEvidenceLevel:     2,
		EnableAutoValidation: true,
	}
}

// seedDraft inserts a draft claim and returns its id.
func seedDraft(t *testing.T, m *store.Memory, claim *models.ScientificClaim) string {
	t.Helper()
	id, err := m.InsertDraft(context.Background(), claim)
	require.NoError(t, err)
	return id
}

// seedNeighbor installs an active claim with a completed embedding at a
// chosen cosine similarity to the unit query vector [1, 0].
func seedNeighbor(m *store.Memory, id, text string, evidence int, similarity float64) {
	m.SeedClaim(&models.ScientificClaim{
		ID:              id,
		Claim:           text,
		Category:        models.CategoryHypertrophy,
		EvidenceLevel:   evidence,
		ConfidenceScore: 0.8,
		Status:          models.ClaimActive,
		EmbeddingStatus: models.EmbeddingCompleted,
		Embedding:       vectorAtSimilarity(similarity),
	})
}

// vectorAtSimilarity returns a 2-D unit vector whose cosine against [1, 0]
// equals s.
func vectorAtSimilarity(s float64) []float32 {
	return []float32{float32(s), float32(sqrt(1 - s*s))}
}

func sqrt(f float64) float64 {
	if f <= 0 {
		return 0
	}
	x := f
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}

// queryDouble embeds every text as [1, 0] so seeded neighbors land at their
// configured similarity.
func queryDouble() *llm.Double {
	return &llm.Double{
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			return []float32{1, 0}, nil
		},
	}
}

func TestValidation_HappyPathApproval(t *testing.T) {
	m := store.NewMemory()
	sample := 80
	design := models.DesignRCT
	id := seedDraft(t, m, &models.ScientificClaim{
		Claim:           "Resistance training increases muscle cross-sectional area",
		Category:        models.CategoryHypertrophy,
		EvidenceLevel:   4,
		ConfidenceScore: 0.72, // 0.9 extractor confidence × 0.8
		SampleSize:      &sample,
		StudyDesign:     &design,
	})
	// One neighbor below every threshold: ignored entirely.
	seedNeighbor(m, "n1", "unrelated endurance claim", 3, 0.72)

	a := NewValidation(m, queryDouble(), defaultValidationConfig())
	result, err := a.Process(context.Background())
	require.NoError(t, err)

	r := result.(*ValidationResult)
	assert.Equal(t, 1, r.Approved)
	assert.Equal(t, 0, r.Rejected)

	claim, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimActive, claim.Status)
	assert.False(t, claim.ConflictingEvidence)
	// 0.72 + 0.05·3 + 0.05 (sample 80 is below 100 but ≥ 50) = 0.92.
	assert.InDelta(t, 0.92, claim.ConfidenceScore, 0.0001)
	assert.Empty(t, m.Relationships())
}

func TestValidation_SimilarityThresholds(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		wantStatus models.ClaimStatus
		wantFlag   bool
	}{
		{"0.96 is a duplicate", 0.96, models.ClaimDeprecated, false},
		{"0.86 is a conflict candidate", 0.86, models.ClaimActive, true},
		{"0.74 is ignored", 0.74, models.ClaimActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := store.NewMemory()
			id := seedDraft(t, m, &models.ScientificClaim{
				Claim:           "High volume increases hypertrophy",
				Category:        models.CategoryHypertrophy,
				EvidenceLevel:   4,
				ConfidenceScore: 0.8,
			})
			seedNeighbor(m, "neighbor", "Volume and hypertrophy", 5, tt.similarity)

			double := queryDouble()
			double.ConflictFunc = func(context.Context, llm.ConflictClaim, llm.ConflictClaim) (*llm.ConflictResult, error) {
				return &llm.ConflictResult{ConflictDetected: true, ConflictType: "direct", Confidence: 0.8}, nil
			}

			a := NewValidation(m, double, defaultValidationConfig())
			_, err := a.Process(context.Background())
			require.NoError(t, err)

			claim, err := m.GetClaim(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, claim.Status)
			assert.Equal(t, tt.wantFlag, claim.ConflictingEvidence)

			if tt.wantFlag {
				rels := m.Relationships()
				require.Len(t, rels, 1)
				assert.Equal(t, models.RelContradicts, rels[0].RelationshipType)
				assert.InDelta(t, 0.7, rels[0].Confidence, 0.0001)
				assert.Equal(t, id, rels[0].SourceClaimID)
				assert.Equal(t, "neighbor", rels[0].TargetClaimID)
			}
		})
	}
}

func TestValidation_DuplicateCreatesNoRelationshipAndKeepsOriginal(t *testing.T) {
	m := store.NewMemory()
	seedDraft(t, m, &models.ScientificClaim{
		Claim:           "Creatine improves strength",
		Category:        models.CategorySupplements,
		EvidenceLevel:   4,
		ConfidenceScore: 0.8,
	})
	seedNeighbor(m, "original", "Creatine supplementation improves strength", 4, 0.97)

	a := NewValidation(m, queryDouble(), defaultValidationConfig())
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	assert.Empty(t, m.Relationships())
	original, err := m.GetClaim(context.Background(), "original")
	require.NoError(t, err)
	assert.Equal(t, models.ClaimActive, original.Status)
	assert.False(t, original.ConflictingEvidence)
}

func TestValidation_AutoValidatesTrustedHighEvidence(t *testing.T) {
	m := store.NewMemory()
	m.SeedTrusted(nil, []*models.TrustedSource{{
		Name:           "Journal of the International Society of Sports Nutrition",
		NormalizedName: "journal of the international society of sports nutrition",
		PriorityBoost:  2,
		Active:         true,
	}})

	design := models.DesignMetaAnalysis
	id := seedDraft(t, m, &models.ScientificClaim{
		Claim:           "Protein above 1.6 g/kg/day yields no additional hypertrophy",
		Category:        models.CategoryNutrition,
		EvidenceLevel:   5,
		ConfidenceScore: 0.7,
		SourceDOI:       strP("10.1/meta"),
		SourceTitle:     strP("Findings — Journal of the International Society of Sports Nutrition, 2025"),
		StudyDesign:     &design,
	})

	double := queryDouble()
	a := NewValidation(m, double, defaultValidationConfig())
	result, err := a.Process(context.Background())
	require.NoError(t, err)

	r := result.(*ValidationResult)
	assert.Equal(t, 1, r.AutoValidated)

	claim, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimActive, claim.Status)
	assert.True(t, claim.AutoValidated)
	assert.InDelta(t, 0.95, claim.ConfidenceScore, 0.0001)

	// The short circuit makes no LLM calls at all.
	assert.Equal(t, 0, double.EmbedCalls)
	assert.Equal(t, 0, double.ValidateCalls)
}

func TestValidation_EvidenceGateRejects(t *testing.T) {
	m := store.NewMemory()
	id := seedDraft(t, m, &models.ScientificClaim{
		Claim:           "A case study observation",
		Category:        models.CategoryGeneral,
		EvidenceLevel:   1,
		ConfidenceScore: 0.8,
	})

	a := NewValidation(m, queryDouble(), defaultValidationConfig())
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	claim, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDeprecated, claim.Status)
}

func TestValidation_LLMRejectionReasonsMerged(t *testing.T) {
	m := store.NewMemory()
	id := seedDraft(t, m, &models.ScientificClaim{
		Claim:           "Implausible effect size claim",
		Category:        models.CategoryStrength,
		EvidenceLevel:   3,
		ConfidenceScore: 0.8,
	})

	double := queryDouble()
	double.ValidateFunc = func(context.Context, llm.ValidateClaimInput) (*llm.ValidationResult, error) {
		return &llm.ValidationResult{
			IsValid:          false,
			RejectionReasons: []string{"effect size implausible for design"},
		}, nil
	}

	a := NewValidation(m, double, defaultValidationConfig())
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	claim, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDeprecated, claim.Status)
}

func TestValidation_RerunIsNoOp(t *testing.T) {
	m := store.NewMemory()
	id := seedDraft(t, m, &models.ScientificClaim{
		Claim:           "Solid claim",
		Category:        models.CategoryStrength,
		EvidenceLevel:   4,
		ConfidenceScore: 0.8,
	})

	a := NewValidation(m, queryDouble(), defaultValidationConfig())
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	before, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.ClaimActive, before.Status)

	// Second run sees no drafts; the active claim is untouched.
	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.(*ValidationResult).Validated)

	after, err := m.GetClaim(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ConfidenceScore, after.ConfidenceScore)
}

func TestVectorAtSimilarity(t *testing.T) {
	m := store.NewMemory()
	seedNeighbor(m, "x", "text", 3, 0.86)

	hits, err := m.FindSimilar(context.Background(), []float32{1, 0}, 0.85, 5, "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.86, hits[0].Similarity, 0.001)
}
