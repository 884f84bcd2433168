package models

import "time"

// RelationshipType classifies an edge between two claims.
type RelationshipType string

// Relationship type constants.
const (
	RelContradicts RelationshipType = "contradicts"
	RelSupports    RelationshipType = "supports"
	RelRelated     RelationshipType = "related"
)

// KnowledgeRelationship is a directed, typed edge between two distinct claims.
type KnowledgeRelationship struct {
	ID               string           `json:"id"`
	SourceClaimID    string           `json:"source_claim_id"`
	TargetClaimID    string           `json:"target_claim_id"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Confidence       float64          `json:"confidence"`
	Notes            *string          `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// EvidenceHierarchy accumulates evidence density per (topic, category).
// Topic currently mirrors the category; the columns stay separate so a finer
// topic granularity can be introduced without a schema change.
type EvidenceHierarchy struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Category   Category  `json:"category"`
	TotalScore float64   `json:"total_score"`
	UpdatedAt  time.Time `json:"updated_at"`
}
