package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

const (
	// autoValidateMinEvidence is the evidence floor for the trusted-source
	// short circuit.
	autoValidateMinEvidence = 4

	// autoValidateScore is the confidence written for auto-approved claims.
	autoValidateScore = 0.95

	// duplicateSimilarity is the similarity above which a neighbor is a
	// duplicate rather than a conflict candidate.
	duplicateSimilarity = 0.95

	// acceptanceScore is the validation score floor for approval.
	acceptanceScore = 0.6

	// validationConflictConfidence is written on contradicts edges created
	// during validation.
	validationConflictConfidence = 0.7
)

// ValidationConfig tunes the validation agent.
type ValidationConfig struct {
	BatchSize            int
	SimilarityThreshold  float64
	MinEvidenceLevel     int
	EnableAutoValidation bool
}

// ValidationResult summarizes one validation iteration.
type ValidationResult struct {
	Validated     int `json:"validated"`
	Approved      int `json:"approved"`
	Rejected      int `json:"rejected"`
	AutoValidated int `json:"auto_validated"`
}

// verdict is the internal outcome for one draft.
type verdict struct {
	score            float64
	rejectionReasons []string
	duplicateOf      string
	conflictsWith    []string
	autoValidated    bool
}

func (v *verdict) accepted() bool {
	return len(v.rejectionReasons) == 0 && v.score >= acceptanceScore && v.duplicateOf == ""
}

// Validation gates draft claims on evidence level, semantic duplication, and
// contradiction against prior knowledge, auto-approving trusted high-evidence
// papers without an LLM round trip.
type Validation struct {
	store  store.Store
	llm    llm.Capability
	cfg    ValidationConfig
	logger *slog.Logger
}

// NewValidation creates the validation agent. capability may be nil: the
// agent then degrades to the evidence gate and the evidence-distance conflict
// heuristic.
func NewValidation(s store.Store, capability llm.Capability, cfg ValidationConfig) *Validation {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.85
	}
	if cfg.MinEvidenceLevel <= 0 {
		cfg.MinEvidenceLevel = 2
	}
	return &Validation{
		store:  s,
		llm:    capability,
		cfg:    cfg,
		logger: slog.Default().With("agent", NameValidation),
	}
}

// Name implements Agent.
func (a *Validation) Name() string { return NameValidation }

// Shutdown implements Agent.
func (a *Validation) Shutdown(context.Context) error { return nil }

// Process validates one batch of drafts. Per-claim failures are logged and
// skipped; the claim stays draft for the next tick.
func (a *Validation) Process(ctx context.Context) (any, error) {
	drafts, err := a.store.ListDrafts(ctx, a.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		a.logger.Info("No draft claims to validate")
		return &ValidationResult{}, nil
	}

	journals, err := a.store.ListTrustedJournals(ctx)
	if err != nil {
		return nil, err
	}
	trustedJournals := newTrustedRegistry(journals)

	a.logger.Info("Validating draft claims", "batch", len(drafts))

	result := &ValidationResult{}
	for _, claim := range drafts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		var v *verdict
		if a.cfg.EnableAutoValidation && a.isAutoValidatable(claim, trustedJournals) {
			v = &verdict{score: autoValidateScore, autoValidated: true}
		} else {
			v, err = a.validate(ctx, claim)
			if err != nil {
				a.logger.Error("Validation failed", "claim_id", claim.ID, "error", err)
				continue
			}
		}

		if v.accepted() {
			if err := a.approve(ctx, claim, v); err != nil {
				a.logger.Error("Failed to approve claim", "claim_id", claim.ID, "error", err)
				continue
			}
			result.Approved++
			if v.autoValidated {
				result.AutoValidated++
			}
		} else {
			if err := a.reject(ctx, claim, v); err != nil {
				a.logger.Error("Failed to reject claim", "claim_id", claim.ID, "error", err)
				continue
			}
			result.Rejected++
		}
		result.Validated++
	}

	a.logger.Info("Validation complete",
		"validated", result.Validated,
		"approved", result.Approved,
		"auto_validated", result.AutoValidated,
		"rejected", result.Rejected)
	return result, nil
}

// isAutoValidatable applies the trusted-source short circuit: a DOI, high
// evidence, a meta-analysis or systematic review design, and a trusted
// journal name anywhere in the source title.
func (a *Validation) isAutoValidatable(claim *models.ScientificClaim, journals *trustedRegistry) bool {
	if claim.SourceDOI == nil || *claim.SourceDOI == "" {
		return false
	}
	if claim.EvidenceLevel < autoValidateMinEvidence {
		return false
	}
	if claim.StudyDesign == nil {
		return false
	}
	if *claim.StudyDesign != models.DesignMetaAnalysis && *claim.StudyDesign != models.DesignSystematicReview {
		return false
	}
	if claim.SourceTitle == nil {
		return false
	}
	return journals.MatchesAnywhere(*claim.SourceTitle)
}

// validate runs the standard gate sequence for one draft.
func (a *Validation) validate(ctx context.Context, claim *models.ScientificClaim) (*verdict, error) {
	v := &verdict{}

	// 1. Evidence-level gate.
	if claim.EvidenceLevel < a.cfg.MinEvidenceLevel {
		v.rejectionReasons = append(v.rejectionReasons,
			fmt.Sprintf("evidence level %d below minimum %d", claim.EvidenceLevel, a.cfg.MinEvidenceLevel))
	}

	// 2. Semantic neighbor search.
	neighbors, err := a.findNeighbors(ctx, claim)
	if err != nil {
		a.logger.Warn("Neighbor search unavailable", "claim_id", claim.ID, "error", err)
	}

	for _, neighbor := range neighbors {
		if neighbor.Similarity > duplicateSimilarity {
			v.duplicateOf = neighbor.ID
			v.rejectionReasons = append(v.rejectionReasons, "duplicate of claim "+neighbor.ID)
			break
		}
		if neighbor.Similarity > a.cfg.SimilarityThreshold {
			if a.isConflict(ctx, claim, neighbor) {
				v.conflictsWith = append(v.conflictsWith, neighbor.ID)
			}
		}
	}

	// 3. LLM validation, skipped for established duplicates.
	if a.llm != nil && v.duplicateOf == "" {
		llmVerdict, err := a.llm.ValidateClaim(ctx, llm.ValidateClaimInput{
			Claim:         claim.Claim,
			Category:      string(claim.Category),
			EvidenceLevel: claim.EvidenceLevel,
			StudyDesign:   derefOr(claim.StudyDesign, "unknown"),
			SampleSize:    claim.SampleSize,
			EffectSize:    claim.EffectSize,
			Neighbors:     toNeighborClaims(neighbors),
		})
		if err != nil {
			a.logger.Warn("LLM validation unavailable", "claim_id", claim.ID, "error", err)
		} else {
			if !llmVerdict.IsValid {
				v.rejectionReasons = append(v.rejectionReasons, llmVerdict.RejectionReasons...)
			}
			if llmVerdict.DuplicateOf != "" {
				v.duplicateOf = llmVerdict.DuplicateOf
				v.rejectionReasons = append(v.rejectionReasons, "duplicate of claim "+llmVerdict.DuplicateOf)
			}
			v.conflictsWith = append(v.conflictsWith, llmVerdict.ConflictsWith...)
		}
	}

	v.conflictsWith = dedupeStrings(v.conflictsWith)
	v.score = a.score(claim, v.rejectionReasons, neighbors)
	return v, nil
}

// findNeighbors embeds the claim text and queries the store slightly below
// the configured threshold, capped at five neighbors, excluding the claim
// itself.
func (a *Validation) findNeighbors(ctx context.Context, claim *models.ScientificClaim) ([]models.SimilarClaim, error) {
	if a.llm == nil {
		return nil, nil
	}
	embedding, err := a.llm.Embed(ctx, claim.Claim)
	if err != nil {
		return nil, err
	}

	hits, err := a.store.FindSimilar(ctx, embedding, a.cfg.SimilarityThreshold-0.1, 5, "", 0)
	if err != nil {
		return nil, err
	}

	neighbors := hits[:0:0]
	for _, hit := range hits {
		if hit.ID != claim.ID {
			neighbors = append(neighbors, hit)
		}
	}
	return neighbors, nil
}

// isConflict asks the LLM whether the claims contradict; without an LLM, a
// two-level evidence gap on near-identical statements counts as a conflict.
func (a *Validation) isConflict(ctx context.Context, claim *models.ScientificClaim, neighbor models.SimilarClaim) bool {
	if a.llm == nil {
		diff := claim.EvidenceLevel - neighbor.EvidenceLevel
		if diff < 0 {
			diff = -diff
		}
		return diff >= 2
	}

	result, err := a.llm.DetectConflict(ctx,
		llm.ConflictClaim{
			Claim:         claim.Claim,
			EvidenceLevel: claim.EvidenceLevel,
			StudyDesign:   derefOr(claim.StudyDesign, "unknown"),
		},
		llm.ConflictClaim{
			Claim:         neighbor.Claim,
			EvidenceLevel: neighbor.EvidenceLevel,
			StudyDesign:   derefOr(neighbor.StudyDesign, "unknown"),
		})
	if err != nil {
		a.logger.Warn("Conflict detection unavailable", "claim_id", claim.ID, "error", err)
		return false
	}
	return result.ConflictDetected
}

// score computes the validation score:
//
//	confidence + 0.05·(evidence−1) + sample_bonus − 0.2·|rejections| − 0.05·|neighbors|
//
// clamped to [0,1]. Sample bonus: +0.1 at ≥100 participants, +0.05 at ≥50.
func (a *Validation) score(claim *models.ScientificClaim, rejections []string, neighbors []models.SimilarClaim) float64 {
	score := claim.ConfidenceScore
	score += float64(claim.EvidenceLevel-1) * 0.05

	if claim.SampleSize != nil {
		switch {
		case *claim.SampleSize >= 100:
			score += 0.1
		case *claim.SampleSize >= 50:
			score += 0.05
		}
	}

	score -= float64(len(rejections)) * 0.2
	score -= float64(len(neighbors)) * 0.05

	return models.ClampScore(score)
}

func (a *Validation) approve(ctx context.Context, claim *models.ScientificClaim, v *verdict) error {
	active := models.ClaimActive
	conflicting := len(v.conflictsWith) > 0
	patch := models.ClaimPatch{
		Status:              &active,
		ConfidenceScore:     &v.score,
		ConflictingEvidence: &conflicting,
	}
	if v.autoValidated {
		auto := true
		patch.AutoValidated = &auto
	}
	if err := a.store.UpdateClaim(ctx, claim.ID, patch); err != nil {
		return err
	}

	for _, conflictID := range v.conflictsWith {
		if _, err := a.store.AddRelationship(ctx, claim.ID, conflictID,
			models.RelContradicts, validationConflictConfidence, "detected during validation"); err != nil {
			a.logger.Error("Failed to record conflict relationship",
				"claim_id", claim.ID, "conflicts_with", conflictID, "error", err)
		}
	}
	return nil
}

func (a *Validation) reject(ctx context.Context, claim *models.ScientificClaim, v *verdict) error {
	deprecated := models.ClaimDeprecated
	return a.store.UpdateClaim(ctx, claim.ID, models.ClaimPatch{
		Status:          &deprecated,
		ConfidenceScore: &v.score,
	})
}

func toNeighborClaims(neighbors []models.SimilarClaim) []llm.NeighborClaim {
	out := make([]llm.NeighborClaim, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, llm.NeighborClaim{
			ID:            n.ID,
			Claim:         n.Claim,
			Similarity:    n.Similarity,
			EvidenceLevel: n.EvidenceLevel,
			StudyDesign:   derefOr(n.StudyDesign, "unknown"),
		})
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := map[string]bool{}
	out := values[:0:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
