package agent

import (
	"context"
	"log/slog"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

// extractionConfidenceFactor discounts the extractor's self-reported
// confidence when seeding a draft's initial score.
const extractionConfidenceFactor = 0.8

// ExtractionResult summarizes one extraction iteration.
type ExtractionResult struct {
	Processed   int `json:"processed"`
	ClaimsFound int `json:"claims_found"`
	Errors      int `json:"errors"`
}

// Extraction claims pending queue items, elicits structured claims via the
// LLM capability, and persists them as drafts.
type Extraction struct {
	store     store.Store
	llm       llm.Capability
	batchSize int
	logger    *slog.Logger
}

// NewExtraction creates the extraction agent. capability may be nil; items
// then fail with a configuration error rather than blocking the queue.
func NewExtraction(s store.Store, capability llm.Capability, batchSize int) *Extraction {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Extraction{
		store:     s,
		llm:       capability,
		batchSize: batchSize,
		logger:    slog.Default().With("agent", NameExtraction),
	}
}

// Name implements Agent.
func (a *Extraction) Name() string { return NameExtraction }

// Shutdown implements Agent.
func (a *Extraction) Shutdown(context.Context) error { return nil }

// Process claims one batch and extracts claims per item. A per-item failure
// transitions that item to failed and the batch continues. Cancellation
// mid-batch leaves the in-flight item in processing for the next tick.
func (a *Extraction) Process(ctx context.Context) (any, error) {
	items, err := a.store.ClaimPending(ctx, a.batchSize)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		a.logger.Info("No pending items in queue")
		return &ExtractionResult{}, nil
	}

	a.logger.Info("Extracting claims", "batch", len(items))

	result := &ExtractionResult{}
	for _, item := range items {
		if ctx.Err() != nil {
			// Shutdown: the item stays in processing and is retried later.
			return result, ctx.Err()
		}

		count, err := a.extractItem(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			a.logger.Error("Extraction failed", "item_id", item.ID, "error", err)
			if statusErr := a.store.SetQueueStatus(ctx, item.ID, models.QueueFailed, err.Error()); statusErr != nil {
				a.logger.Error("Failed to mark item failed", "item_id", item.ID, "error", statusErr)
			}
			result.Errors++
			continue
		}

		// Completed means "drafts emitted"; validation happens downstream.
		if err := a.store.SetQueueStatus(ctx, item.ID, models.QueueCompleted, ""); err != nil {
			a.logger.Error("Failed to mark item completed", "item_id", item.ID, "error", err)
			result.Errors++
			continue
		}
		result.Processed++
		result.ClaimsFound += count
	}

	a.logger.Info("Extraction complete",
		"processed", result.Processed,
		"claims_found", result.ClaimsFound,
		"errors", result.Errors)
	return result, nil
}

// extractItem runs the LLM extraction for one queue item and persists the
// returned claims as drafts. An empty abstract yields zero claims and is not
// an error.
func (a *Extraction) extractItem(ctx context.Context, item *models.ResearchQueueItem) (int, error) {
	if item.Abstract == nil || *item.Abstract == "" {
		return 0, nil
	}
	if a.llm == nil {
		return 0, errNoLLM
	}

	extracted, err := a.llm.ExtractClaims(ctx, item.Title, item.Authors, *item.Abstract)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, claim := range extracted {
		draft := a.buildDraft(item, claim)
		if _, err := a.store.InsertDraft(ctx, draft); err != nil {
			a.logger.Error("Failed to store draft claim", "item_id", item.ID, "error", err)
			continue
		}
		stored++
	}
	return stored, nil
}

func (a *Extraction) buildDraft(item *models.ResearchQueueItem, claim llm.ExtractedClaim) *models.ScientificClaim {
	category := models.Category(claim.Category)
	if !models.IsValidCategory(category) {
		category = models.CategoryGeneral
	}

	evidence := claim.EvidenceLevel
	if evidence < models.EvidenceLevelMin || evidence > models.EvidenceLevelMax {
		evidence = 3
	}

	design := claim.StudyDesign
	return &models.ScientificClaim{
		Claim:           claim.Claim,
		ClaimSummary:    claim.ClaimSummary,
		Category:        category,
		EvidenceLevel:   evidence,
		ConfidenceScore: models.ClampScore(claim.Confidence * extractionConfidenceFactor),
		SourceDOI:       item.DOI,
		SourceURL:       item.URL,
		SourceTitle:     &item.Title,
		SourceAuthors:   item.Authors,
		PublicationDate: item.PublicationDate,
		SampleSize:      claim.SampleSize,
		StudyDesign:     &design,
		Population:      claim.Population,
		EffectSize:      claim.EffectSize,
		KeyFindings:     claim.KeyFindings,
		Limitations:     claim.Limitations,
	}
}
