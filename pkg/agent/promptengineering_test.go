package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

// seedCategory installs n active confident claims in a category.
func seedCategory(m *store.Memory, category models.Category, n int, evidence int) {
	for i := 0; i < n; i++ {
		m.SeedClaim(&models.ScientificClaim{
			ID:              fmt.Sprintf("%s-%d", category, i),
			Claim:           fmt.Sprintf("Evidence-backed %s claim %d", category, i),
			ClaimSummary:    fmt.Sprintf("%s summary %d", category, i),
			Category:        category,
			EvidenceLevel:   evidence,
			ConfidenceScore: 0.8,
			Status:          models.ClaimActive,
		})
	}
}

func TestPromptEngineering_GeneratesAndActivatesFirstVersion(t *testing.T) {
	m := store.NewMemory()
	seedCategory(m, models.CategoryNutrition, 40, 3)

	a := NewPromptEngineering(m, []models.Category{models.CategoryNutrition})
	result, err := a.Process(context.Background())
	require.NoError(t, err)

	r := result.(*PromptResult)
	assert.Equal(t, 1, r.CategoriesProcessed)
	assert.Equal(t, 1, r.PromptsGenerated)
	assert.Equal(t, 1, r.PromptsActivated)

	active, err := m.ActivePrompt(context.Background(), models.CategoryNutrition)
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version)
	assert.Greater(t, len(active.PromptText), 100)
	assert.Less(t, len(active.PromptText), 8000)
	lower := strings.ToLower(active.PromptText)
	assert.Contains(t, lower, "evidence")
	assert.Contains(t, lower, "scientific")
	assert.Equal(t, 40, int(active.KnowledgeSnapshot["total_claims"].(int)))
}

func TestPromptEngineering_SmallDriftDoesNotRegenerate(t *testing.T) {
	m := store.NewMemory()
	seedCategory(m, models.CategoryNutrition, 40, 3)

	a := NewPromptEngineering(m, []models.Category{models.CategoryNutrition})
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	// One extra claim: growth stays under 20%, evidence drift under 0.5.
	m.SeedClaim(&models.ScientificClaim{
		ID: "extra", Claim: "One more nutrition claim", Category: models.CategoryNutrition,
		EvidenceLevel: 4, ConfidenceScore: 0.8, Status: models.ClaimActive,
	})

	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.(*PromptResult).PromptsGenerated)

	active, err := m.ActivePrompt(context.Background(), models.CategoryNutrition)
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version)
}

func TestPromptEngineering_GrowthTriggersNewVersion(t *testing.T) {
	m := store.NewMemory()
	seedCategory(m, models.CategoryHypertrophy, 10, 3)

	a := NewPromptEngineering(m, []models.Category{models.CategoryHypertrophy})
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	// 10 → 15 claims is > 20% growth.
	for i := 10; i < 15; i++ {
		m.SeedClaim(&models.ScientificClaim{
			ID: fmt.Sprintf("extra-%d", i), Claim: fmt.Sprintf("New hypertrophy claim %d", i),
			Category: models.CategoryHypertrophy, EvidenceLevel: 3, ConfidenceScore: 0.8,
			Status: models.ClaimActive,
		})
	}

	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.(*PromptResult).PromptsGenerated)

	active, err := m.ActivePrompt(context.Background(), models.CategoryHypertrophy)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
}

func TestPromptEngineering_StalePromptRegenerates(t *testing.T) {
	m := store.NewMemory()
	seedCategory(m, models.CategoryStrength, 12, 3)

	a := NewPromptEngineering(m, []models.Category{models.CategoryStrength})
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	// Jump a week and a day into the future.
	a.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	result, err := a.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.(*PromptResult).PromptsGenerated)
}

func TestPromptEngineering_EmptyCategoryStillValidPrompt(t *testing.T) {
	m := store.NewMemory()

	a := NewPromptEngineering(m, []models.Category{models.CategoryTechnique})
	result, err := a.Process(context.Background())
	require.NoError(t, err)

	// No claims: a prompt is still generated (knowledge gaps noted) and valid.
	r := result.(*PromptResult)
	assert.Equal(t, 1, r.CategoriesProcessed)
	assert.Empty(t, r.Errors)
}

func TestPromptEngineering_ConflictingAreasAppearInPrompt(t *testing.T) {
	m := store.NewMemory()
	seedCategory(m, models.CategoryRecovery, 12, 3)
	m.SeedClaim(&models.ScientificClaim{
		ID: "conflicted", Claim: "Ice baths blunt hypertrophy adaptations",
		ClaimSummary: "Cold water immersion may blunt adaptations",
		Category:     models.CategoryRecovery, EvidenceLevel: 3, ConfidenceScore: 0.8,
		Status: models.ClaimActive, ConflictingEvidence: true,
	})

	a := NewPromptEngineering(m, []models.Category{models.CategoryRecovery})
	_, err := a.Process(context.Background())
	require.NoError(t, err)

	active, err := m.ActivePrompt(context.Background(), models.CategoryRecovery)
	require.NoError(t, err)
	assert.Contains(t, active.PromptText, "Areas of Active Research/Debate")
	assert.Contains(t, active.PromptText, "Cold water immersion may blunt adaptations")
}

func TestValidatePrompt_Bounds(t *testing.T) {
	assert.Error(t, validatePrompt("too short"))
	assert.Error(t, validatePrompt(strings.Repeat("evidence scientific ", 500)))
	assert.Error(t, validatePrompt(strings.Repeat("no required tokens here ", 10)))
	assert.NoError(t, validatePrompt(strings.Repeat("evidence scientific ", 10)))
}
