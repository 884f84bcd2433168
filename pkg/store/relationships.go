package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ageree/curator/pkg/models"
)

// AddRelationship creates a directed, typed edge between two distinct claims.
func (s *Postgres) AddRelationship(ctx context.Context, source, target string, relType models.RelationshipType, confidence float64, notes string) (string, error) {
	if source == target {
		return "", fmt.Errorf("relationship endpoints must be distinct: %s", source)
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_relationships
			(id, source_claim_id, target_claim_id, relationship_type, confidence, notes)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		id, source, target, string(relType), models.ClampScore(confidence), notes,
	)
	if err != nil {
		return "", fmt.Errorf("add relationship: %w", err)
	}
	return id, nil
}

// RelationshipsFor returns every edge where the claim is the source.
func (s *Postgres) RelationshipsFor(ctx context.Context, claimID string) ([]*models.KnowledgeRelationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_claim_id, target_claim_id, relationship_type, confidence, notes, created_at
		FROM knowledge_relationships
		WHERE source_claim_id = $1
		ORDER BY created_at ASC`,
		claimID,
	)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var rels []*models.KnowledgeRelationship
	for rows.Next() {
		var (
			rel   models.KnowledgeRelationship
			notes sql.NullString
		)
		if err := rows.Scan(&rel.ID, &rel.SourceClaimID, &rel.TargetClaimID,
			&rel.RelationshipType, &rel.Confidence, &notes, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		rel.Notes = fromNullString(notes)
		rels = append(rels, &rel)
	}
	return rels, rows.Err()
}

// UpsertEvidence writes the per-(topic, category) evidence accumulator.
func (s *Postgres) UpsertEvidence(ctx context.Context, topic string, category models.Category, totalScore float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence_hierarchy (id, topic, category, total_score, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (topic, category)
		DO UPDATE SET total_score = EXCLUDED.total_score, updated_at = now()`,
		uuid.NewString(), topic, string(category), totalScore,
	)
	if err != nil {
		return fmt.Errorf("upsert evidence hierarchy: %w", err)
	}
	return nil
}
