package models

import "time"

// PromptVersion is a versioned system prompt for a category. At most one
// version per category is active at any instant; activation is a store-level
// atomic swap.
type PromptVersion struct {
	ID                string         `json:"id"`
	Category          Category       `json:"category"`
	PromptText        string         `json:"prompt_text"`
	Version           int            `json:"version"`
	KnowledgeSnapshot map[string]any `json:"knowledge_snapshot,omitempty"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
}

// TrustedSource maps a normalized author or journal name to a priority boost.
// The registries are read-only from the pipeline's perspective.
type TrustedSource struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	NormalizedName string  `json:"normalized_name"`
	ShortName      *string `json:"short_name,omitempty"`
	PriorityBoost  int     `json:"priority_boost"`
	Active         bool    `json:"active"`
}
