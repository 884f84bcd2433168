// Package store defines the persistence contract consumed by the pipeline
// agents, and its PostgreSQL implementation. The store is the only
// coordination medium between agents: every inter-agent handoff is a status
// transition performed here.
package store

import (
	"context"
	"errors"

	"github.com/ageree/curator/pkg/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateCandidate indicates a queue item with the same DOI or URL
	// already exists.
	ErrDuplicateCandidate = errors.New("duplicate candidate")
)

// Store is the narrow persistence interface from the pipeline's point of view.
// Implementations must make ClaimPending and ClaimPendingEmbeddings atomic:
// a claimed record disappears from every other worker's view in the same
// operation that returns it.
type Store interface {
	QueueStore
	ClaimStore
	RelationshipStore
	HierarchyStore
	PromptStore
	TrustedSourceStore
}

// QueueStore manages research queue items.
type QueueStore interface {
	// EnqueueCandidate inserts a new pending queue item. Returns
	// ErrDuplicateCandidate when an item with the same DOI or URL exists.
	EnqueueCandidate(ctx context.Context, item *models.ResearchQueueItem) (string, error)

	// ClaimPending atomically transitions up to limit pending items to
	// processing, ordered by priority ascending then creation time ascending,
	// and returns them.
	ClaimPending(ctx context.Context, limit int) ([]*models.ResearchQueueItem, error)

	// SetQueueStatus writes a terminal (or retried) status. errorMessage may
	// be empty.
	SetQueueStatus(ctx context.Context, id string, status models.QueueStatus, errorMessage string) error
}

// ClaimStore manages scientific claims.
type ClaimStore interface {
	// InsertDraft persists a new draft claim and returns its id. The store
	// forces embedding_status to pending regardless of the passed value.
	InsertDraft(ctx context.Context, claim *models.ScientificClaim) (string, error)

	// GetClaim fetches one claim by id.
	GetClaim(ctx context.Context, id string) (*models.ScientificClaim, error)

	// UpdateClaim applies a partial update; nil patch fields are untouched.
	UpdateClaim(ctx context.Context, id string, patch models.ClaimPatch) error

	// ListDrafts returns up to limit draft claims, oldest first.
	ListDrafts(ctx context.Context, limit int) ([]*models.ScientificClaim, error)

	// ListByCategoryFiltered returns active claims of a category at or above
	// the given evidence and confidence floors.
	ListByCategoryFiltered(ctx context.Context, category models.Category, minEvidence int, minConfidence float64, limit int) ([]*models.ScientificClaim, error)

	// ListAllActive returns up to limit active claims, newest first.
	ListAllActive(ctx context.Context, limit int) ([]*models.ScientificClaim, error)

	// ClaimPendingEmbeddings atomically flips up to limit claims from
	// embedding_status pending to processing and returns them.
	ClaimPendingEmbeddings(ctx context.Context, limit int) ([]*models.ScientificClaim, error)

	// UpdateEmbedding writes the vector and terminal embedding status.
	// vec may be nil for a failed embedding; errorMessage may be empty.
	UpdateEmbedding(ctx context.Context, id string, vec []float32, status models.EmbeddingStatus, errorMessage string) error

	// FindSimilar returns claims whose embedding similarity to the given
	// vector is at or above threshold, most similar first. category and
	// minEvidence are optional filters (zero values disable them).
	FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int, category models.Category, minEvidence int) ([]models.SimilarClaim, error)
}

// RelationshipStore manages typed edges between claims.
type RelationshipStore interface {
	AddRelationship(ctx context.Context, source, target string, relType models.RelationshipType, confidence float64, notes string) (string, error)
	RelationshipsFor(ctx context.Context, claimID string) ([]*models.KnowledgeRelationship, error)
}

// HierarchyStore manages the per-(topic, category) evidence accumulator.
type HierarchyStore interface {
	UpsertEvidence(ctx context.Context, topic string, category models.Category, totalScore float64) error
}

// PromptStore manages versioned system prompts.
type PromptStore interface {
	// ActivePrompt returns the active prompt for a category, or ErrNotFound.
	ActivePrompt(ctx context.Context, category models.Category) (*models.PromptVersion, error)

	// LatestPromptVersion returns the highest-numbered version for a
	// category, or ErrNotFound.
	LatestPromptVersion(ctx context.Context, category models.Category) (*models.PromptVersion, error)

	// SavePromptVersion persists a new version and returns it with its id
	// and creation timestamp filled in.
	SavePromptVersion(ctx context.Context, v *models.PromptVersion) (*models.PromptVersion, error)

	// ActivatePromptVersion atomically clears the prior active version of the
	// prompt's category and activates the given one.
	ActivatePromptVersion(ctx context.Context, id string) error
}

// TrustedSourceStore exposes the read-only trusted registries.
type TrustedSourceStore interface {
	ListTrustedAuthors(ctx context.Context) ([]*models.TrustedSource, error)
	ListTrustedJournals(ctx context.Context) ([]*models.TrustedSource, error)
}
