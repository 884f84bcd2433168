// Package models defines the entities shared by the pipeline agents and the store.
package models

import "time"

// SourceType identifies which adapter produced a queue item.
type SourceType string

// Source type constants.
const (
	SourcePubMed     SourceType = "pubmed"
	SourceCrossRef   SourceType = "crossref"
	SourceRSSFeed    SourceType = "rss_feed"
	SourceWebScrape  SourceType = "web_scrape"
	SourcePerplexity SourceType = "perplexity"
)

// QueueStatus is the state of a research queue item.
type QueueStatus string

// Queue status constants. StatusCompleted means "claims extracted", not
// "fully validated": downstream agents pick the drafts up independently.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// Priority bounds. 1 is the highest priority, 10 the lowest.
const (
	PriorityHighest = 1
	PriorityDefault = 5
	PriorityLowest  = 10
)

// ResearchQueueItem is a candidate paper pending claim extraction.
type ResearchQueueItem struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Authors         []string       `json:"authors"`
	Abstract        *string        `json:"abstract,omitempty"`
	DOI             *string        `json:"doi,omitempty"`
	URL             *string        `json:"url,omitempty"`
	PublicationDate *time.Time     `json:"publication_date,omitempty"`
	SourceType      SourceType     `json:"source_type"`
	Status          QueueStatus    `json:"status"`
	Priority        int            `json:"priority"`
	RawData         map[string]any `json:"raw_data,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ClampPriority bounds a computed priority to [PriorityHighest, PriorityLowest].
func ClampPriority(p int) int {
	if p < PriorityHighest {
		return PriorityHighest
	}
	if p > PriorityLowest {
		return PriorityLowest
	}
	return p
}
