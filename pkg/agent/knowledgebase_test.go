package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

func seedActivePending(m *store.Memory, id, text string, evidence int, confidence float64, sampleSize *int, conflicting bool) {
	m.SeedClaim(&models.ScientificClaim{
		ID:                  id,
		Claim:               text,
		Category:            models.CategoryHypertrophy,
		EvidenceLevel:       evidence,
		ConfidenceScore:     confidence,
		SampleSize:          sampleSize,
		ConflictingEvidence: conflicting,
		Status:              models.ClaimActive,
		EmbeddingStatus:     models.EmbeddingPending,
	})
}

func TestKnowledgeBase_EmbedsAndUpsertsHierarchy(t *testing.T) {
	m := store.NewMemory()
	sample := 80
	seedActivePending(m, "c1", "Resistance training increases muscle cross-sectional area", 4, 0.9, &sample, false)

	dims := 1536
	double := &llm.Double{Dimensions: dims}

	a := NewKnowledgeBase(m, double, 10)
	result, err := a.Process(context.Background())
	require.NoError(t, err)

	r := result.(*KnowledgeBaseResult)
	assert.Equal(t, 1, r.Processed)
	assert.Equal(t, 1, r.Embeddings)
	assert.Equal(t, 1, r.HierarchyUpdates)

	claim, err := m.GetClaim(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingCompleted, claim.EmbeddingStatus)
	assert.Len(t, claim.Embedding, dims)

	// 0.2·4·0.9 = 0.72 (sample 80 earns no multiplier).
	hierarchy := m.Hierarchy("hypertrophy", models.CategoryHypertrophy)
	require.NotNil(t, hierarchy)
	assert.InDelta(t, 0.72, hierarchy.TotalScore, 0.0001)
}

func TestHierarchyScore_Formula(t *testing.T) {
	big := 1200
	mid := 150
	tests := []struct {
		name  string
		claim models.ScientificClaim
		want  float64
	}{
		{"base", models.ScientificClaim{EvidenceLevel: 4, ConfidenceScore: 0.9}, 0.72},
		{"large sample ×1.2", models.ScientificClaim{EvidenceLevel: 4, ConfidenceScore: 0.9, SampleSize: &big}, 0.864},
		{"mid sample ×1.1", models.ScientificClaim{EvidenceLevel: 4, ConfidenceScore: 0.9, SampleSize: &mid}, 0.792},
		{"conflict penalty ×0.8", models.ScientificClaim{EvidenceLevel: 4, ConfidenceScore: 0.9, ConflictingEvidence: true}, 0.576},
		{"capped at 1.0", models.ScientificClaim{EvidenceLevel: 5, ConfidenceScore: 1.0, SampleSize: &big}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HierarchyScore(&tt.claim), 0.0001)
		})
	}
}

func TestKnowledgeBase_EmbeddingFailureIsRecorded(t *testing.T) {
	m := store.NewMemory()
	seedActivePending(m, "c1", "text", 3, 0.8, nil, false)

	double := &llm.Double{
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New("embedding service down")
		},
	}

	a := NewKnowledgeBase(m, double, 10)
	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.(*KnowledgeBaseResult).Errors)

	claim, err := m.GetClaim(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingFailed, claim.EmbeddingStatus)
	require.NotNil(t, claim.EmbeddingError)
	assert.Contains(t, *claim.EmbeddingError, "embedding service down")
}

func TestKnowledgeBase_NilLLMMarksFailed(t *testing.T) {
	m := store.NewMemory()
	seedActivePending(m, "c1", "text", 3, 0.8, nil, false)

	a := NewKnowledgeBase(m, nil, 10)
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	claim, err := m.GetClaim(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingFailed, claim.EmbeddingStatus)
}

func TestKnowledgeBase_RebuildCompletedSetKeepsStatuses(t *testing.T) {
	m := store.NewMemory()
	m.SeedClaim(&models.ScientificClaim{
		ID: "done", Claim: "already embedded", Category: models.CategoryStrength,
		EvidenceLevel: 3, ConfidenceScore: 0.8,
		Status:          models.ClaimActive,
		EmbeddingStatus: models.EmbeddingCompleted,
		Embedding:       []float32{1, 0},
	})

	a := NewKnowledgeBase(m, &llm.Double{Dimensions: 2}, 10)
	result, err := a.RebuildEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Embeddings)
	assert.Equal(t, 0, result.Errors)

	claim, err := m.GetClaim(context.Background(), "done")
	require.NoError(t, err)
	assert.Equal(t, models.EmbeddingCompleted, claim.EmbeddingStatus)
}

func TestKnowledgeBase_NoPendingClaimsIsQuiet(t *testing.T) {
	a := NewKnowledgeBase(store.NewMemory(), &llm.Double{}, 10)
	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.(*KnowledgeBaseResult).Processed)
}
