package store

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ageree/curator/pkg/database"
	"github.com/ageree/curator/pkg/models"
)

var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// setupTestStore starts a shared pgvector-enabled Postgres container (once
// per package), applies migrations, and returns a store over a clean schema.
func setupTestStore(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping store integration test in -short mode")
	}

	ctx := context.Background()

	containerOnce.Do(func() {
		container, err := tcpostgres.Run(ctx,
			"pgvector/pgvector:pg16",
			tcpostgres.WithDatabase("curator_test"),
			tcpostgres.WithUsername("curator"),
			tcpostgres.WithPassword("curator"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		sharedConnStr, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, containerErr)

	db, err := sql.Open("pgx", sharedConnStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Reset between tests: migrations are idempotent via golang-migrate.
	_, err = db.ExecContext(ctx, `
		DROP TABLE IF EXISTS knowledge_relationships, prompt_versions,
			evidence_hierarchy, trusted_authors, trusted_journals,
			scientific_claims, research_queue, schema_migrations CASCADE`)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, "curator_test"))

	return NewPostgres(db)
}

func TestPostgres_QueueLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.EnqueueCandidate(ctx, &models.ResearchQueueItem{
		Title:      "Resistance training and hypertrophy",
		Authors:    []string{"Smith J", "Doe A"},
		DOI:        strPtr("10.1/x"),
		SourceType: models.SourcePubMed,
		Priority:   3,
		RawData:    map[string]any{"pmid": "12345", "trusted_source": true},
	})
	require.NoError(t, err)

	// Same DOI again is a duplicate.
	_, err = s.EnqueueCandidate(ctx, &models.ResearchQueueItem{
		Title:      "same paper",
		DOI:        strPtr("10.1/x"),
		SourceType: models.SourceCrossRef,
		Priority:   5,
	})
	assert.ErrorIs(t, err, ErrDuplicateCandidate)

	claimed, err := s.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, id, claimed[0].ID)
	assert.Equal(t, models.QueueProcessing, claimed[0].Status)
	assert.Equal(t, []string{"Smith J", "Doe A"}, claimed[0].Authors)
	assert.Equal(t, "12345", claimed[0].RawData["pmid"])

	// Nothing left to claim.
	empty, err := s.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.SetQueueStatus(ctx, id, models.QueueCompleted, ""))
	assert.ErrorIs(t, s.SetQueueStatus(ctx, "00000000-0000-0000-0000-000000000000", models.QueueFailed, "x"), ErrNotFound)
}

func TestPostgres_DraftInsertForcesPendingEmbedding(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.InsertDraft(ctx, &models.ScientificClaim{
		Claim:           "Protein timing matters less than total intake",
		ClaimSummary:    "Total daily protein dominates timing effects",
		Category:        models.CategoryNutrition,
		EvidenceLevel:   5,
		ConfidenceScore: 0.72,
		SourceDOI:       strPtr("10.1/protein"),
		SampleSize:      intPtr(500),
		StudyDesign:     strPtr(models.DesignMetaAnalysis),
		KeyFindings:     []string{"no timing effect", "dose-response to total intake"},
	})
	require.NoError(t, err)

	claim, err := s.GetClaim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDraft, claim.Status)
	assert.Equal(t, models.EmbeddingPending, claim.EmbeddingStatus)
	assert.Equal(t, []string{"no timing effect", "dose-response to total intake"}, claim.KeyFindings)
}

func TestPostgres_EmbeddingClaimAndSimilarity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	active := models.ClaimActive
	mkActive := func(text string) string {
		id, err := s.InsertDraft(ctx, &models.ScientificClaim{
			Claim: text, Category: models.CategoryHypertrophy,
			EvidenceLevel: 3, ConfidenceScore: 0.8,
		})
		require.NoError(t, err)
		require.NoError(t, s.UpdateClaim(ctx, id, models.ClaimPatch{Status: &active}))
		return id
	}

	a := mkActive("High volume increases hypertrophy")
	b := mkActive("Protein intake supports recovery")

	claimed, err := s.ClaimPendingEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	// Vectors padded to the configured dimension; the leading components
	// carry the geometry.
	vecA := unitVector(1536, 0)
	vecB := unitVector(1536, 1)
	require.NoError(t, s.UpdateEmbedding(ctx, a, vecA, models.EmbeddingCompleted, ""))
	require.NoError(t, s.UpdateEmbedding(ctx, b, vecB, models.EmbeddingCompleted, ""))

	// Orthogonal query to b, identical to a.
	hits, err := s.FindSimilar(ctx, vecA, 0.75, 5, "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, a, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 0.001)

	// Re-claim finds nothing: both are terminal.
	again, err := s.ClaimPendingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPostgres_RelationshipEndpointsMustExistAndDiffer(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.InsertDraft(ctx, &models.ScientificClaim{
		Claim: "x", Category: models.CategoryGeneral, EvidenceLevel: 2, ConfidenceScore: 0.5,
	})
	require.NoError(t, err)

	_, err = s.AddRelationship(ctx, id, id, models.RelContradicts, 0.7, "")
	assert.Error(t, err)

	_, err = s.AddRelationship(ctx, id, "11111111-1111-1111-1111-111111111111", models.RelContradicts, 0.7, "")
	assert.Error(t, err)
}

func TestPostgres_PromptActivationSwap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v1, err := s.SavePromptVersion(ctx, &models.PromptVersion{
		Category: models.CategoryNutrition, PromptText: "v1 scientific evidence", Version: 1,
		KnowledgeSnapshot: map[string]any{"total_claims": 40.0},
	})
	require.NoError(t, err)
	require.NoError(t, s.ActivatePromptVersion(ctx, v1.ID))

	v2, err := s.SavePromptVersion(ctx, &models.PromptVersion{
		Category: models.CategoryNutrition, PromptText: "v2 scientific evidence", Version: 2,
	})
	require.NoError(t, err)
	require.NoError(t, s.ActivatePromptVersion(ctx, v2.ID))

	active, err := s.ActivePrompt(ctx, models.CategoryNutrition)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)

	latest, err := s.LatestPromptVersion(ctx, models.CategoryNutrition)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
}

func TestPostgres_EvidenceHierarchyUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEvidence(ctx, "hypertrophy", models.CategoryHypertrophy, 0.72))
	require.NoError(t, s.UpsertEvidence(ctx, "hypertrophy", models.CategoryHypertrophy, 0.81))

	var score float64
	var count int
	row := s.db.QueryRowContext(ctx,
		`SELECT count(*), max(total_score) FROM evidence_hierarchy WHERE topic = 'hypertrophy'`)
	require.NoError(t, row.Scan(&count, &score))
	assert.Equal(t, 1, count)
	assert.InDelta(t, 0.81, score, 0.0001)
}

func intPtr(i int) *int { return &i }

// unitVector returns a dim-length unit vector with 1 at the given index.
func unitVector(dim, index int) []float32 {
	v := make([]float32, dim)
	v[index] = 1
	return v
}
