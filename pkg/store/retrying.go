package store

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/ageree/curator/pkg/alerts"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/resilience"
)

// Retrying decorates a Store with the shared retry primitive: transient
// persistence failures are retried, and exhausted operations raise a
// persistence-error alert before surfacing to the caller. Semantic errors
// (not found, duplicate candidate) pass through untouched.
type Retrying struct {
	inner    Store
	retryer  *resilience.Retryer
	notifier alerts.Notifier
}

// NewRetrying wraps a store. budget, dlq, and notifier may be nil.
func NewRetrying(inner Store, cfg resilience.RetryConfig, budget *rate.Limiter, dlq *resilience.DeadLetterQueue, notifier alerts.Notifier) *Retrying {
	cfg.Classify = func(err error) bool {
		if isSemantic(err) {
			return false
		}
		return resilience.DefaultRetryable(err)
	}
	return &Retrying{
		inner:    inner,
		retryer:  resilience.NewRetryer(cfg, budget, dlq),
		notifier: notifier,
	}
}

var _ Store = (*Retrying)(nil)

func isSemantic(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateCandidate)
}

// do runs one store operation through the retryer, alerting on exhaustion.
func (r *Retrying) do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := r.retryer.Do(ctx, "store-"+op, fn)
	if err != nil && ctx.Err() == nil && !isSemantic(err) && r.notifier != nil {
		r.notifier.Send(ctx, alerts.PersistenceError(op, err))
	}
	return err
}

func (r *Retrying) EnqueueCandidate(ctx context.Context, item *models.ResearchQueueItem) (string, error) {
	var id string
	err := r.do(ctx, "EnqueueCandidate", func(ctx context.Context) error {
		var err error
		id, err = r.inner.EnqueueCandidate(ctx, item)
		return err
	})
	return id, err
}

func (r *Retrying) ClaimPending(ctx context.Context, limit int) ([]*models.ResearchQueueItem, error) {
	var items []*models.ResearchQueueItem
	err := r.do(ctx, "ClaimPending", func(ctx context.Context) error {
		var err error
		items, err = r.inner.ClaimPending(ctx, limit)
		return err
	})
	return items, err
}

func (r *Retrying) SetQueueStatus(ctx context.Context, id string, status models.QueueStatus, errorMessage string) error {
	return r.do(ctx, "SetQueueStatus", func(ctx context.Context) error {
		return r.inner.SetQueueStatus(ctx, id, status, errorMessage)
	})
}

func (r *Retrying) InsertDraft(ctx context.Context, claim *models.ScientificClaim) (string, error) {
	var id string
	err := r.do(ctx, "InsertDraft", func(ctx context.Context) error {
		var err error
		id, err = r.inner.InsertDraft(ctx, claim)
		return err
	})
	return id, err
}

func (r *Retrying) GetClaim(ctx context.Context, id string) (*models.ScientificClaim, error) {
	var claim *models.ScientificClaim
	err := r.do(ctx, "GetClaim", func(ctx context.Context) error {
		var err error
		claim, err = r.inner.GetClaim(ctx, id)
		return err
	})
	return claim, err
}

func (r *Retrying) UpdateClaim(ctx context.Context, id string, patch models.ClaimPatch) error {
	return r.do(ctx, "UpdateClaim", func(ctx context.Context) error {
		return r.inner.UpdateClaim(ctx, id, patch)
	})
}

func (r *Retrying) ListDrafts(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	var claims []*models.ScientificClaim
	err := r.do(ctx, "ListDrafts", func(ctx context.Context) error {
		var err error
		claims, err = r.inner.ListDrafts(ctx, limit)
		return err
	})
	return claims, err
}

func (r *Retrying) ListByCategoryFiltered(ctx context.Context, category models.Category, minEvidence int, minConfidence float64, limit int) ([]*models.ScientificClaim, error) {
	var claims []*models.ScientificClaim
	err := r.do(ctx, "ListByCategoryFiltered", func(ctx context.Context) error {
		var err error
		claims, err = r.inner.ListByCategoryFiltered(ctx, category, minEvidence, minConfidence, limit)
		return err
	})
	return claims, err
}

func (r *Retrying) ListAllActive(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	var claims []*models.ScientificClaim
	err := r.do(ctx, "ListAllActive", func(ctx context.Context) error {
		var err error
		claims, err = r.inner.ListAllActive(ctx, limit)
		return err
	})
	return claims, err
}

func (r *Retrying) ClaimPendingEmbeddings(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	var claims []*models.ScientificClaim
	err := r.do(ctx, "ClaimPendingEmbeddings", func(ctx context.Context) error {
		var err error
		claims, err = r.inner.ClaimPendingEmbeddings(ctx, limit)
		return err
	})
	return claims, err
}

func (r *Retrying) UpdateEmbedding(ctx context.Context, id string, vec []float32, status models.EmbeddingStatus, errorMessage string) error {
	return r.do(ctx, "UpdateEmbedding", func(ctx context.Context) error {
		return r.inner.UpdateEmbedding(ctx, id, vec, status, errorMessage)
	})
}

func (r *Retrying) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int, category models.Category, minEvidence int) ([]models.SimilarClaim, error) {
	var hits []models.SimilarClaim
	err := r.do(ctx, "FindSimilar", func(ctx context.Context) error {
		var err error
		hits, err = r.inner.FindSimilar(ctx, embedding, threshold, limit, category, minEvidence)
		return err
	})
	return hits, err
}

func (r *Retrying) AddRelationship(ctx context.Context, source, target string, relType models.RelationshipType, confidence float64, notes string) (string, error) {
	var id string
	err := r.do(ctx, "AddRelationship", func(ctx context.Context) error {
		var err error
		id, err = r.inner.AddRelationship(ctx, source, target, relType, confidence, notes)
		return err
	})
	return id, err
}

func (r *Retrying) RelationshipsFor(ctx context.Context, claimID string) ([]*models.KnowledgeRelationship, error) {
	var rels []*models.KnowledgeRelationship
	err := r.do(ctx, "RelationshipsFor", func(ctx context.Context) error {
		var err error
		rels, err = r.inner.RelationshipsFor(ctx, claimID)
		return err
	})
	return rels, err
}

func (r *Retrying) UpsertEvidence(ctx context.Context, topic string, category models.Category, totalScore float64) error {
	return r.do(ctx, "UpsertEvidence", func(ctx context.Context) error {
		return r.inner.UpsertEvidence(ctx, topic, category, totalScore)
	})
}

func (r *Retrying) ActivePrompt(ctx context.Context, category models.Category) (*models.PromptVersion, error) {
	var prompt *models.PromptVersion
	err := r.do(ctx, "ActivePrompt", func(ctx context.Context) error {
		var err error
		prompt, err = r.inner.ActivePrompt(ctx, category)
		return err
	})
	return prompt, err
}

func (r *Retrying) LatestPromptVersion(ctx context.Context, category models.Category) (*models.PromptVersion, error) {
	var prompt *models.PromptVersion
	err := r.do(ctx, "LatestPromptVersion", func(ctx context.Context) error {
		var err error
		prompt, err = r.inner.LatestPromptVersion(ctx, category)
		return err
	})
	return prompt, err
}

func (r *Retrying) SavePromptVersion(ctx context.Context, v *models.PromptVersion) (*models.PromptVersion, error) {
	var saved *models.PromptVersion
	err := r.do(ctx, "SavePromptVersion", func(ctx context.Context) error {
		var err error
		saved, err = r.inner.SavePromptVersion(ctx, v)
		return err
	})
	return saved, err
}

func (r *Retrying) ActivatePromptVersion(ctx context.Context, id string) error {
	return r.do(ctx, "ActivatePromptVersion", func(ctx context.Context) error {
		return r.inner.ActivatePromptVersion(ctx, id)
	})
}

func (r *Retrying) ListTrustedAuthors(ctx context.Context) ([]*models.TrustedSource, error) {
	var sources []*models.TrustedSource
	err := r.do(ctx, "ListTrustedAuthors", func(ctx context.Context) error {
		var err error
		sources, err = r.inner.ListTrustedAuthors(ctx)
		return err
	})
	return sources, err
}

func (r *Retrying) ListTrustedJournals(ctx context.Context) ([]*models.TrustedSource, error) {
	var sources []*models.TrustedSource
	err := r.do(ctx, "ListTrustedJournals", func(ctx context.Context) error {
		var err error
		sources, err = r.inner.ListTrustedJournals(ctx)
		return err
	})
	return sources, err
}
