package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ageree/curator/pkg/models"
)

// Memory is an in-memory Store used by agent unit tests and local runs
// without a database. It mirrors the Postgres implementation's semantics:
// DOI/URL dedup, priority-ordered claiming, pending→processing flips, and
// the single-active prompt swap.
type Memory struct {
	mu sync.Mutex

	queue     map[string]*models.ResearchQueueItem
	claims    map[string]*models.ScientificClaim
	rels      []*models.KnowledgeRelationship
	hierarchy map[string]*models.EvidenceHierarchy
	prompts   []*models.PromptVersion
	authors   []*models.TrustedSource
	journals  []*models.TrustedSource

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		queue:     map[string]*models.ResearchQueueItem{},
		claims:    map[string]*models.ScientificClaim{},
		hierarchy: map[string]*models.EvidenceHierarchy{},
		now:       time.Now,
	}
}

var _ Store = (*Memory)(nil)

// SeedTrusted installs the trusted registries.
func (m *Memory) SeedTrusted(authors, journals []*models.TrustedSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authors = authors
	m.journals = journals
}

// SeedClaim inserts a claim verbatim, bypassing the draft-only insert path.
func (m *Memory) SeedClaim(claim *models.ScientificClaim) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	m.claims[claim.ID] = claim
}

// QueueItems returns a snapshot of all queue items.
func (m *Memory) QueueItems() []*models.ResearchQueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*models.ResearchQueueItem, 0, len(m.queue))
	for _, item := range m.queue {
		items = append(items, item)
	}
	return items
}

// Claims returns a snapshot of all claims.
func (m *Memory) Claims() []*models.ScientificClaim {
	m.mu.Lock()
	defer m.mu.Unlock()
	claims := make([]*models.ScientificClaim, 0, len(m.claims))
	for _, c := range m.claims {
		claims = append(claims, c)
	}
	return claims
}

// Relationships returns a snapshot of all relationships.
func (m *Memory) Relationships() []*models.KnowledgeRelationship {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.KnowledgeRelationship(nil), m.rels...)
}

// Hierarchy returns the evidence accumulator for (topic, category), or nil.
func (m *Memory) Hierarchy(topic string, category models.Category) *models.EvidenceHierarchy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hierarchy[topic+"/"+string(category)]
}

func (m *Memory) EnqueueCandidate(_ context.Context, item *models.ResearchQueueItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.queue {
		if item.DOI != nil && existing.DOI != nil && *item.DOI == *existing.DOI {
			return "", ErrDuplicateCandidate
		}
		if item.URL != nil && existing.URL != nil && *item.URL == *existing.URL {
			return "", ErrDuplicateCandidate
		}
	}

	stored := *item
	stored.ID = uuid.NewString()
	stored.Status = models.QueuePending
	stored.Priority = models.ClampPriority(item.Priority)
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.queue[stored.ID] = &stored
	return stored.ID, nil
}

func (m *Memory) ClaimPending(_ context.Context, limit int) ([]*models.ResearchQueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.ResearchQueueItem
	for _, item := range m.queue {
		if item.Status == models.QueuePending {
			pending = append(pending, item)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]*models.ResearchQueueItem, 0, len(pending))
	for _, item := range pending {
		item.Status = models.QueueProcessing
		item.UpdatedAt = m.now()
		snapshot := *item
		claimed = append(claimed, &snapshot)
	}
	return claimed, nil
}

func (m *Memory) SetQueueStatus(_ context.Context, id string, status models.QueueStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.queue[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = m.now()
	if errorMessage != "" {
		item.ErrorMessage = &errorMessage
	}
	return nil
}

func (m *Memory) InsertDraft(_ context.Context, claim *models.ScientificClaim) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *claim
	stored.ID = uuid.NewString()
	stored.Status = models.ClaimDraft
	stored.EmbeddingStatus = models.EmbeddingPending
	stored.Embedding = nil
	stored.EmbeddingError = nil
	stored.ConfidenceScore = models.ClampScore(claim.ConfidenceScore)
	stored.CreatedAt = m.now()
	stored.UpdatedAt = stored.CreatedAt
	m.claims[stored.ID] = &stored
	return stored.ID, nil
}

func (m *Memory) GetClaim(_ context.Context, id string) (*models.ScientificClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *claim
	return &snapshot, nil
}

func (m *Memory) UpdateClaim(_ context.Context, id string, patch models.ClaimPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		claim.Status = *patch.Status
	}
	if patch.ConfidenceScore != nil {
		claim.ConfidenceScore = *patch.ConfidenceScore
	}
	if patch.ConflictingEvidence != nil {
		claim.ConflictingEvidence = *patch.ConflictingEvidence
	}
	if patch.AutoValidated != nil {
		claim.AutoValidated = *patch.AutoValidated
	}
	claim.UpdatedAt = m.now()
	return nil
}

func (m *Memory) ListDrafts(_ context.Context, limit int) ([]*models.ScientificClaim, error) {
	return m.listByStatus(models.ClaimDraft, limit, false)
}

func (m *Memory) ListAllActive(_ context.Context, limit int) ([]*models.ScientificClaim, error) {
	return m.listByStatus(models.ClaimActive, limit, true)
}

func (m *Memory) listByStatus(status models.ClaimStatus, limit int, newestFirst bool) ([]*models.ScientificClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.ScientificClaim
	for _, claim := range m.claims {
		if claim.Status == status {
			snapshot := *claim
			matched = append(matched, &snapshot)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if newestFirst {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) ListByCategoryFiltered(_ context.Context, category models.Category, minEvidence int, minConfidence float64, limit int) ([]*models.ScientificClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.ScientificClaim
	for _, claim := range m.claims {
		if claim.Status == models.ClaimActive &&
			claim.Category == category &&
			claim.EvidenceLevel >= minEvidence &&
			claim.ConfidenceScore >= minConfidence {
			snapshot := *claim
			matched = append(matched, &snapshot)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].EvidenceLevel != matched[j].EvidenceLevel {
			return matched[i].EvidenceLevel > matched[j].EvidenceLevel
		}
		return matched[i].ConfidenceScore > matched[j].ConfidenceScore
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) ClaimPendingEmbeddings(_ context.Context, limit int) ([]*models.ScientificClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.ScientificClaim
	for _, claim := range m.claims {
		if claim.Status == models.ClaimActive && claim.EmbeddingStatus == models.EmbeddingPending {
			pending = append(pending, claim)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]*models.ScientificClaim, 0, len(pending))
	for _, claim := range pending {
		claim.EmbeddingStatus = models.EmbeddingProcessing
		snapshot := *claim
		claimed = append(claimed, &snapshot)
	}
	return claimed, nil
}

func (m *Memory) UpdateEmbedding(_ context.Context, id string, vec []float32, status models.EmbeddingStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[id]
	if !ok {
		return ErrNotFound
	}
	claim.Embedding = vec
	claim.EmbeddingStatus = status
	if errorMessage != "" {
		claim.EmbeddingError = &errorMessage
	} else {
		claim.EmbeddingError = nil
	}
	claim.UpdatedAt = m.now()
	return nil
}

func (m *Memory) FindSimilar(_ context.Context, embedding []float32, threshold float64, limit int, category models.Category, minEvidence int) ([]models.SimilarClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []models.SimilarClaim
	for _, claim := range m.claims {
		if claim.Status != models.ClaimActive || claim.EmbeddingStatus != models.EmbeddingCompleted {
			continue
		}
		if category != "" && claim.Category != category {
			continue
		}
		if minEvidence != 0 && claim.EvidenceLevel < minEvidence {
			continue
		}
		sim := cosineSimilarity(embedding, claim.Embedding)
		if sim >= threshold {
			hits = append(hits, models.SimilarClaim{
				ID:            claim.ID,
				Claim:         claim.Claim,
				Similarity:    sim,
				EvidenceLevel: claim.EvidenceLevel,
				StudyDesign:   claim.StudyDesign,
				Category:      claim.Category,
			})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) AddRelationship(_ context.Context, source, target string, relType models.RelationshipType, confidence float64, notes string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if source == target {
		return "", fmt.Errorf("relationship endpoints must be distinct: %s", source)
	}
	if _, ok := m.claims[source]; !ok {
		return "", ErrNotFound
	}
	if _, ok := m.claims[target]; !ok {
		return "", ErrNotFound
	}

	rel := &models.KnowledgeRelationship{
		ID:               uuid.NewString(),
		SourceClaimID:    source,
		TargetClaimID:    target,
		RelationshipType: relType,
		Confidence:       models.ClampScore(confidence),
		CreatedAt:        m.now(),
	}
	if notes != "" {
		rel.Notes = &notes
	}
	m.rels = append(m.rels, rel)
	return rel.ID, nil
}

func (m *Memory) RelationshipsFor(_ context.Context, claimID string) ([]*models.KnowledgeRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rels []*models.KnowledgeRelationship
	for _, rel := range m.rels {
		if rel.SourceClaimID == claimID {
			snapshot := *rel
			rels = append(rels, &snapshot)
		}
	}
	return rels, nil
}

func (m *Memory) UpsertEvidence(_ context.Context, topic string, category models.Category, totalScore float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := topic + "/" + string(category)
	m.hierarchy[key] = &models.EvidenceHierarchy{
		ID:         uuid.NewString(),
		Topic:      topic,
		Category:   category,
		TotalScore: totalScore,
		UpdatedAt:  m.now(),
	}
	return nil
}

func (m *Memory) ActivePrompt(_ context.Context, category models.Category) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.prompts {
		if p.Category == category && p.IsActive {
			snapshot := *p
			return &snapshot, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) LatestPromptVersion(_ context.Context, category models.Category) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.PromptVersion
	for _, p := range m.prompts {
		if p.Category == category && (latest == nil || p.Version > latest.Version) {
			latest = p
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	snapshot := *latest
	return &snapshot, nil
}

func (m *Memory) SavePromptVersion(_ context.Context, v *models.PromptVersion) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *v
	saved.ID = uuid.NewString()
	saved.IsActive = false
	saved.CreatedAt = m.now()
	m.prompts = append(m.prompts, &saved)
	snapshot := saved
	return &snapshot, nil
}

func (m *Memory) ActivatePromptVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var target *models.PromptVersion
	for _, p := range m.prompts {
		if p.ID == id {
			target = p
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	for _, p := range m.prompts {
		if p.Category == target.Category {
			p.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (m *Memory) ListTrustedAuthors(_ context.Context) ([]*models.TrustedSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.TrustedSource(nil), m.authors...), nil
}

func (m *Memory) ListTrustedJournals(_ context.Context) ([]*models.TrustedSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.TrustedSource(nil), m.journals...), nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either is empty or of mismatched length.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
