package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

const (
	// promptMinLength and promptMaxLength bound a generated prompt.
	promptMinLength = 100
	promptMaxLength = 8000

	// promptMaxAge forces regeneration of stale prompts.
	promptMaxAge = 7 * 24 * time.Hour

	// regenGrowthFactor triggers regeneration when the claim count grows
	// beyond snapshot_total × this factor.
	regenGrowthFactor = 1.2

	// regenEvidenceDrift triggers regeneration when mean evidence moves by
	// more than this amount.
	regenEvidenceDrift = 0.5
)

// promptRequiredTokens must appear in every generated prompt.
var promptRequiredTokens = []string{"evidence", "scientific"}

// KnowledgeSummary aggregates the knowledge base for one category.
type KnowledgeSummary struct {
	Category         models.Category
	TotalClaims      int
	AvgEvidenceLevel float64
	AvgConfidence    float64
	TopClaims        []*models.ScientificClaim
	ConflictingAreas []string
	KnowledgeGaps    []string
}

// PromptResult summarizes one prompt-engineering iteration.
type PromptResult struct {
	CategoriesProcessed int      `json:"categories_processed"`
	PromptsGenerated    int      `json:"prompts_generated"`
	PromptsActivated    int      `json:"prompts_activated"`
	Errors              []string `json:"errors,omitempty"`
}

// PromptEngineering summarizes the knowledge base per category and
// regenerates the coaching system prompts when the knowledge has drifted
// significantly.
type PromptEngineering struct {
	store      store.Store
	categories []models.Category
	logger     *slog.Logger
	now        func() time.Time
}

// NewPromptEngineering creates the prompt-engineering agent. An empty
// category list means all categories.
func NewPromptEngineering(s store.Store, categories []models.Category) *PromptEngineering {
	if len(categories) == 0 {
		categories = models.AllCategories
	}
	return &PromptEngineering{
		store:      s,
		categories: categories,
		logger:     slog.Default().With("agent", NamePromptEngineering),
		now:        time.Now,
	}
}

// Name implements Agent.
func (a *PromptEngineering) Name() string { return NamePromptEngineering }

// Shutdown implements Agent.
func (a *PromptEngineering) Shutdown(context.Context) error { return nil }

// Process walks every category: summarize, decide, regenerate, validate,
// save, and activate.
func (a *PromptEngineering) Process(ctx context.Context) (any, error) {
	result := &PromptResult{}

	for _, category := range a.categories {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if err := a.processCategory(ctx, category, result); err != nil {
			a.logger.Error("Category processing failed", "category", category, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", category, err))
			continue
		}
		result.CategoriesProcessed++
	}

	a.logger.Info("Prompt engineering complete",
		"categories", result.CategoriesProcessed,
		"generated", result.PromptsGenerated,
		"activated", result.PromptsActivated)
	return result, nil
}

func (a *PromptEngineering) processCategory(ctx context.Context, category models.Category, result *PromptResult) error {
	summary, err := a.analyzeKnowledge(ctx, category)
	if err != nil {
		return err
	}

	regenerate, err := a.shouldRegenerate(ctx, category, summary)
	if err != nil {
		return err
	}
	if !regenerate {
		return nil
	}

	prompt := a.generatePrompt(category, summary)
	if err := validatePrompt(prompt); err != nil {
		return fmt.Errorf("generated prompt rejected: %w", err)
	}

	version, err := a.savePromptVersion(ctx, category, prompt, summary)
	if err != nil {
		return err
	}
	result.PromptsGenerated++

	activate, err := a.shouldActivate(ctx, version)
	if err != nil {
		return err
	}
	if activate {
		if err := a.store.ActivatePromptVersion(ctx, version.ID); err != nil {
			return err
		}
		result.PromptsActivated++
		a.logger.Info("Activated prompt version", "category", category, "version", version.Version)
	}
	return nil
}

// analyzeKnowledge builds the per-category summary from active, confident
// claims (evidence ≥ 2, confidence ≥ 0.7, cap 50).
func (a *PromptEngineering) analyzeKnowledge(ctx context.Context, category models.Category) (*KnowledgeSummary, error) {
	claims, err := a.store.ListByCategoryFiltered(ctx, category, 2, 0.7, 50)
	if err != nil {
		return nil, err
	}

	summary := &KnowledgeSummary{Category: category}
	if len(claims) == 0 {
		return summary, nil
	}

	var evidenceSum, confidenceSum float64
	for _, claim := range claims {
		evidenceSum += float64(claim.EvidenceLevel)
		confidenceSum += claim.ConfidenceScore
	}
	summary.TotalClaims = len(claims)
	summary.AvgEvidenceLevel = evidenceSum / float64(len(claims))
	summary.AvgConfidence = confidenceSum / float64(len(claims))

	top := append([]*models.ScientificClaim(nil), claims...)
	sort.Slice(top, func(i, j int) bool {
		if top[i].EvidenceLevel != top[j].EvidenceLevel {
			return top[i].EvidenceLevel > top[j].EvidenceLevel
		}
		return top[i].ConfidenceScore > top[j].ConfidenceScore
	})
	if len(top) > 10 {
		top = top[:10]
	}
	summary.TopClaims = top

	summary.ConflictingAreas = conflictingAreas(claims)
	summary.KnowledgeGaps = knowledgeGaps(claims, summary.AvgEvidenceLevel)
	return summary, nil
}

// conflictingAreas lists the summaries of flagged claims.
func conflictingAreas(claims []*models.ScientificClaim) []string {
	var areas []string
	for _, claim := range claims {
		if claim.ConflictingEvidence {
			text := claim.ClaimSummary
			if text == "" {
				text = claim.Claim
			}
			areas = append(areas, text)
		}
	}
	return areas
}

// knowledgeGaps flags thin or low-quality coverage.
func knowledgeGaps(claims []*models.ScientificClaim, avgEvidence float64) []string {
	var gaps []string
	if len(claims) < 10 {
		gaps = append(gaps, fmt.Sprintf("Limited research available (%d claims)", len(claims)))
	}
	if avgEvidence < 3 {
		gaps = append(gaps, "Most evidence is from lower-quality studies")
	}
	return gaps
}

// shouldRegenerate decides whether the knowledge has drifted enough:
// no active prompt, claim growth > 20%, mean evidence moved > 0.5, more
// conflicting areas, or a prompt older than a week.
func (a *PromptEngineering) shouldRegenerate(ctx context.Context, category models.Category, summary *KnowledgeSummary) (bool, error) {
	current, err := a.store.ActivePrompt(ctx, category)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	snapshot := current.KnowledgeSnapshot
	if float64(summary.TotalClaims) > snapshotFloat(snapshot, "total_claims")*regenGrowthFactor {
		return true, nil
	}
	if drift := summary.AvgEvidenceLevel - snapshotFloat(snapshot, "avg_evidence_level"); drift > regenEvidenceDrift || drift < -regenEvidenceDrift {
		return true, nil
	}
	if len(summary.ConflictingAreas) > snapshotLen(snapshot, "conflicting_areas") {
		return true, nil
	}
	if a.now().Sub(current.CreatedAt) > promptMaxAge {
		return true, nil
	}
	return false, nil
}

// generatePrompt renders the category template with the evidence block and
// appends conflict and gap sections when present.
func (a *PromptEngineering) generatePrompt(category models.Category, summary *KnowledgeSummary) string {
	template, ok := promptTemplates[category]
	if !ok {
		template = promptTemplates[models.CategoryGeneral]
	}

	prompt := strings.ReplaceAll(template, "{evidence_section}", formatEvidenceSection(summary))

	if len(summary.ConflictingAreas) > 0 {
		prompt += "\n\nAreas of Active Research/Debate:\n" + bulletList(summary.ConflictingAreas)
	}
	if len(summary.KnowledgeGaps) > 0 {
		prompt += "\n\nCurrent Knowledge Limitations:\n" + bulletList(summary.KnowledgeGaps)
	}
	return prompt
}

func formatEvidenceSection(summary *KnowledgeSummary) string {
	lines := []string{
		fmt.Sprintf("Total scientific claims: %d", summary.TotalClaims),
		fmt.Sprintf("Average evidence level: %.1f/5", summary.AvgEvidenceLevel),
		fmt.Sprintf("Average confidence: %.0f%%", summary.AvgConfidence*100),
		"",
		"Key findings (highest evidence):",
	}
	for i, claim := range summary.TopClaims {
		if i >= 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. [%d/5] %s (confidence: %.0f%%)",
			i+1, claim.EvidenceLevel, claim.Claim, claim.ConfidenceScore*100))
	}
	return strings.Join(lines, "\n")
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

// validatePrompt enforces the length bounds and required tokens.
func validatePrompt(prompt string) error {
	if len(prompt) < promptMinLength {
		return fmt.Errorf("prompt too short (%d chars)", len(prompt))
	}
	if len(prompt) > promptMaxLength {
		return fmt.Errorf("prompt too long (%d chars)", len(prompt))
	}
	lower := strings.ToLower(prompt)
	for _, token := range promptRequiredTokens {
		if !strings.Contains(lower, token) {
			return fmt.Errorf("prompt missing required token %q", token)
		}
	}
	return nil
}

func (a *PromptEngineering) savePromptVersion(ctx context.Context, category models.Category, prompt string, summary *KnowledgeSummary) (*models.PromptVersion, error) {
	versionNum := 1
	latest, err := a.store.LatestPromptVersion(ctx, category)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		versionNum = latest.Version + 1
	}

	return a.store.SavePromptVersion(ctx, &models.PromptVersion{
		Category:   category,
		PromptText: prompt,
		Version:    versionNum,
		KnowledgeSnapshot: map[string]any{
			"total_claims":       summary.TotalClaims,
			"avg_evidence_level": summary.AvgEvidenceLevel,
			"avg_confidence":     summary.AvgConfidence,
			"conflicting_areas":  summary.ConflictingAreas,
			"generated_at":       a.now().Format(time.RFC3339),
		},
	})
}

// shouldActivate activates the first version, or any version newer than the
// currently active one.
func (a *PromptEngineering) shouldActivate(ctx context.Context, version *models.PromptVersion) (bool, error) {
	if version.Version == 1 {
		return true, nil
	}
	current, err := a.store.ActivePrompt(ctx, version.Category)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return version.Version > current.Version, nil
}

func snapshotFloat(snapshot map[string]any, key string) float64 {
	switch v := snapshot[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func snapshotLen(snapshot map[string]any, key string) int {
	switch v := snapshot[key].(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	default:
		return 0
	}
}
