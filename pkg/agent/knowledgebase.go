package agent

import (
	"context"
	"log/slog"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

// KnowledgeBaseResult summarizes one knowledge-base iteration.
type KnowledgeBaseResult struct {
	Processed        int `json:"processed"`
	Embeddings       int `json:"embeddings"`
	HierarchyUpdates int `json:"hierarchy_updates"`
	Errors           int `json:"errors"`
}

// KnowledgeBase finalizes approved claims: it computes their embeddings for
// semantic recall and folds their evidence contribution into the per-category
// hierarchy.
type KnowledgeBase struct {
	store     store.Store
	llm       llm.Capability
	batchSize int
	logger    *slog.Logger
}

// NewKnowledgeBase creates the knowledge-base agent. capability may be nil;
// embeddings then fail and stay re-runnable.
func NewKnowledgeBase(s store.Store, capability llm.Capability, batchSize int) *KnowledgeBase {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &KnowledgeBase{
		store:     s,
		llm:       capability,
		batchSize: batchSize,
		logger:    slog.Default().With("agent", NameKnowledgeBase),
	}
}

// Name implements Agent.
func (a *KnowledgeBase) Name() string { return NameKnowledgeBase }

// Shutdown implements Agent.
func (a *KnowledgeBase) Shutdown(context.Context) error { return nil }

// Process claims one batch of pending embeddings and finalizes each claim.
func (a *KnowledgeBase) Process(ctx context.Context) (any, error) {
	claims, err := a.store.ClaimPendingEmbeddings(ctx, a.batchSize)
	if err != nil {
		return nil, err
	}
	if len(claims) == 0 {
		a.logger.Info("No claims need processing")
		return &KnowledgeBaseResult{}, nil
	}

	a.logger.Info("Integrating claims into knowledge base", "batch", len(claims))

	result := &KnowledgeBaseResult{}
	for _, claim := range claims {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		a.processClaim(ctx, claim, result)
	}

	a.logger.Info("Knowledge base integration complete",
		"processed", result.Processed,
		"embeddings", result.Embeddings,
		"hierarchy_updates", result.HierarchyUpdates,
		"errors", result.Errors)
	return result, nil
}

func (a *KnowledgeBase) processClaim(ctx context.Context, claim *models.ScientificClaim, result *KnowledgeBaseResult) {
	if a.generateEmbedding(ctx, claim) {
		result.Embeddings++
	} else {
		result.Errors++
	}

	if a.updateHierarchy(ctx, claim) {
		result.HierarchyUpdates++
	}
	result.Processed++
}

// generateEmbedding computes and stores the claim's vector. Any failure
// writes the failed status with an error string; failed embeddings are
// re-runnable via RebuildEmbeddings.
func (a *KnowledgeBase) generateEmbedding(ctx context.Context, claim *models.ScientificClaim) bool {
	if a.llm == nil {
		a.markFailed(ctx, claim.ID, "LLM capability not available")
		return false
	}

	vec, err := a.llm.Embed(ctx, claim.Claim)
	if err != nil {
		a.markFailed(ctx, claim.ID, err.Error())
		return false
	}
	if len(vec) == 0 {
		a.markFailed(ctx, claim.ID, "empty embedding generated")
		return false
	}

	if err := a.store.UpdateEmbedding(ctx, claim.ID, vec, models.EmbeddingCompleted, ""); err != nil {
		a.logger.Error("Failed to store embedding", "claim_id", claim.ID, "error", err)
		return false
	}
	return true
}

func (a *KnowledgeBase) markFailed(ctx context.Context, claimID, reason string) {
	if err := a.store.UpdateEmbedding(ctx, claimID, nil, models.EmbeddingFailed, reason); err != nil {
		a.logger.Error("Failed to mark embedding failed", "claim_id", claimID, "error", err)
	}
}

// updateHierarchy upserts the claim's evidence contribution under
// (topic = category, category). Topic stays a separate column for future
// finer-grained topics.
func (a *KnowledgeBase) updateHierarchy(ctx context.Context, claim *models.ScientificClaim) bool {
	score := HierarchyScore(claim)
	if err := a.store.UpsertEvidence(ctx, string(claim.Category), claim.Category, score); err != nil {
		a.logger.Error("Failed to update evidence hierarchy", "claim_id", claim.ID, "error", err)
		return false
	}
	return true
}

// HierarchyScore computes a claim's evidence-density contribution:
//
//	base  = 0.2 · evidence_level
//	score = base · confidence
//	score ·= 1.2 if sample ≥ 1000, 1.1 if sample ≥ 100
//	score ·= 0.8 if conflicting evidence
//	capped at 1.0
func HierarchyScore(claim *models.ScientificClaim) float64 {
	score := 0.2 * float64(claim.EvidenceLevel) * claim.ConfidenceScore

	if claim.SampleSize != nil {
		switch {
		case *claim.SampleSize >= 1000:
			score *= 1.2
		case *claim.SampleSize >= 100:
			score *= 1.1
		}
	}
	if claim.ConflictingEvidence {
		score *= 0.8
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RebuildEmbeddings re-embeds every active claim, including those whose
// embedding previously failed. Claims already completed are refreshed in
// place without a status transition.
func (a *KnowledgeBase) RebuildEmbeddings(ctx context.Context) (*KnowledgeBaseResult, error) {
	claims, err := a.store.ListAllActive(ctx, 1000)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Rebuilding embeddings", "total", len(claims))

	result := &KnowledgeBaseResult{}
	for _, claim := range claims {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if a.generateEmbedding(ctx, claim) {
			result.Embeddings++
		} else {
			result.Errors++
		}
		result.Processed++
	}

	a.logger.Info("Embedding rebuild complete",
		"success", result.Embeddings, "failed", result.Errors)
	return result, nil
}
