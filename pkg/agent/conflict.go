package agent

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/ageree/curator/pkg/llm"
	"github.com/ageree/curator/pkg/models"
	"github.com/ageree/curator/pkg/store"
)

// evidenceConflictConfidence is written on edges from the higher-evidence
// heuristic.
const evidenceConflictConfidence = 0.6

// negationWords trigger the heuristic conflict check when present in exactly
// one of two overlapping claims.
var negationWords = []string{"not", "no", "never", "without"}

// ConflictConfig tunes the conflict agent.
type ConflictConfig struct {
	BatchSize           int
	SimilarityThreshold float64
}

// ConflictResult summarizes one conflict-detection iteration.
type ConflictResult struct {
	Checked              int `json:"checked"`
	ConflictsFound       int `json:"conflicts_found"`
	RelationshipsCreated int `json:"relationships_created"`
	ClaimsFlagged        int `json:"claims_flagged"`
}

// detectedConflict is one conflict found for a claim.
type detectedConflict struct {
	targetID   string
	confidence float64
	kind       string
}

// Conflict scans recently approved claims for contradictions, records
// contradicts relationships, and flags the claims.
type Conflict struct {
	store  store.Store
	llm    llm.Capability
	cfg    ConflictConfig
	logger *slog.Logger
}

// NewConflict creates the conflict agent. capability may be nil: detection
// then falls back to the negation/token-overlap heuristic.
func NewConflict(s store.Store, capability llm.Capability, cfg ConflictConfig) *Conflict {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.75
	}
	return &Conflict{
		store:  s,
		llm:    capability,
		cfg:    cfg,
		logger: slog.Default().With("agent", NameConflict),
	}
}

// Name implements Agent.
func (a *Conflict) Name() string { return NameConflict }

// Shutdown implements Agent.
func (a *Conflict) Shutdown(context.Context) error { return nil }

// Process checks a batch of active claims whose conflicting_evidence flag is
// still false.
func (a *Conflict) Process(ctx context.Context) (any, error) {
	active, err := a.store.ListAllActive(ctx, a.cfg.BatchSize*2)
	if err != nil {
		return nil, err
	}

	var unchecked []*models.ScientificClaim
	for _, claim := range active {
		if !claim.ConflictingEvidence {
			unchecked = append(unchecked, claim)
		}
		if len(unchecked) >= a.cfg.BatchSize {
			break
		}
	}
	if len(unchecked) == 0 {
		a.logger.Info("No claims to check for conflicts")
		return &ConflictResult{}, nil
	}

	a.logger.Info("Checking claims for conflicts", "batch", len(unchecked))

	result := &ConflictResult{}
	for _, claim := range unchecked {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		conflicts := a.findConflicts(ctx, claim)
		if len(conflicts) > 0 {
			flagged := false
			for _, conflict := range conflicts {
				if _, err := a.store.AddRelationship(ctx, claim.ID, conflict.targetID,
					models.RelContradicts, conflict.confidence, "detected conflict: "+conflict.kind); err != nil {
					a.logger.Error("Failed to create conflict relationship",
						"claim_id", claim.ID, "target", conflict.targetID, "error", err)
					continue
				}
				result.RelationshipsCreated++
				flagged = true
			}

			if flagged {
				conflicting := true
				if err := a.store.UpdateClaim(ctx, claim.ID, models.ClaimPatch{ConflictingEvidence: &conflicting}); err != nil {
					a.logger.Error("Failed to flag claim", "claim_id", claim.ID, "error", err)
				} else {
					result.ClaimsFlagged++
				}
			}
			result.ConflictsFound += len(conflicts)
		}
		result.Checked++
	}

	a.logger.Info("Conflict detection complete",
		"checked", result.Checked,
		"conflicts_found", result.ConflictsFound,
		"relationships_created", result.RelationshipsCreated)
	return result, nil
}

// findConflicts collects semantic conflicts (via the LLM or the heuristic)
// and evidence conflicts (higher-evidence neighbors in the same category).
func (a *Conflict) findConflicts(ctx context.Context, claim *models.ScientificClaim) []detectedConflict {
	var conflicts []detectedConflict
	seen := map[string]bool{claim.ID: true}

	for _, neighbor := range a.findNeighbors(ctx, claim) {
		if seen[neighbor.ID] {
			continue
		}
		if a.analyzeConflict(ctx, claim, neighbor) {
			seen[neighbor.ID] = true
			conflicts = append(conflicts, detectedConflict{
				targetID:   neighbor.ID,
				confidence: neighbor.Similarity,
				kind:       "semantic_conflict",
			})
		}
	}

	for _, conflict := range a.evidenceConflicts(ctx, claim) {
		if !seen[conflict.targetID] {
			seen[conflict.targetID] = true
			conflicts = append(conflicts, conflict)
		}
	}

	return conflicts
}

func (a *Conflict) findNeighbors(ctx context.Context, claim *models.ScientificClaim) []models.SimilarClaim {
	// Prefer the claim's stored embedding; only re-embed when the knowledge
	// base has not computed it yet.
	embedding := claim.Embedding
	if len(embedding) == 0 {
		if a.llm == nil {
			return nil
		}
		var err error
		embedding, err = a.llm.Embed(ctx, claim.Claim)
		if err != nil {
			a.logger.Warn("Embedding unavailable for conflict scan", "claim_id", claim.ID, "error", err)
			return nil
		}
	}
	hits, err := a.store.FindSimilar(ctx, embedding, a.cfg.SimilarityThreshold, 10, "", 0)
	if err != nil {
		a.logger.Error("Similarity search failed", "claim_id", claim.ID, "error", err)
		return nil
	}
	return hits
}

// analyzeConflict decides whether two claims actually contradict. Claims at
// the same evidence level are treated as replication, not conflict. With an
// LLM the pairwise capability decides; without one, the negation heuristic
// fires on asymmetric negation plus a three-token overlap.
func (a *Conflict) analyzeConflict(ctx context.Context, claim *models.ScientificClaim, neighbor models.SimilarClaim) bool {
	if claim.EvidenceLevel == neighbor.EvidenceLevel {
		return false
	}

	if a.llm != nil {
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
		if err == nil {
			return result.ConflictDetected
		}
		a.logger.Warn("Conflict capability unavailable, using heuristic", "error", err)
	}

	return HeuristicConflict(claim.Claim, neighbor.Claim)
}

// HeuristicConflict fires when exactly one of two claims contains a negation
// word and they share at least three tokens.
func HeuristicConflict(claimA, claimB string) bool {
	lowerA := strings.ToLower(claimA)
	lowerB := strings.ToLower(claimB)

	if hasNegation(lowerA) == hasNegation(lowerB) {
		return false
	}
	return tokenOverlap(lowerA, lowerB) >= 3
}

func hasNegation(lower string) bool {
	tokens := map[string]bool{}
	for _, token := range strings.Fields(lower) {
		tokens[token] = true
	}
	for _, word := range negationWords {
		if tokens[word] {
			return true
		}
	}
	return false
}

func tokenOverlap(lowerA, lowerB string) int {
	tokensA := map[string]bool{}
	for _, token := range strings.Fields(lowerA) {
		tokensA[token] = true
	}
	overlap := 0
	seen := map[string]bool{}
	for _, token := range strings.Fields(lowerB) {
		if tokensA[token] && !seen[token] {
			seen[token] = true
			overlap++
		}
	}
	return overlap
}

// evidenceConflicts emits a conflict for each same-category claim with
// strictly higher evidence whose token overlap with the subject is ≥ 2.
func (a *Conflict) evidenceConflicts(ctx context.Context, claim *models.ScientificClaim) []detectedConflict {
	peers, err := a.store.ListByCategoryFiltered(ctx, claim.Category, models.EvidenceLevelMin, 0, 100)
	if err != nil {
		a.logger.Error("Category scan failed", "claim_id", claim.ID, "error", err)
		return nil
	}

	var conflicts []detectedConflict
	for _, peer := range peers {
		if peer.ID == claim.ID || peer.EvidenceLevel <= claim.EvidenceLevel {
			continue
		}
		if tokenOverlap(strings.ToLower(claim.Claim), strings.ToLower(peer.Claim)) >= 2 {
			conflicts = append(conflicts, detectedConflict{
				targetID:   peer.ID,
				confidence: evidenceConflictConfidence,
				kind:       "evidence_conflict",
			})
		}
	}
	return conflicts
}

// NetworkAnalysis is the AnalyzeNetwork diagnostic result.
type NetworkAnalysis struct {
	TotalConflictingClaims     int                 `json:"total_conflicting_claims"`
	TotalConflictRelationships int                 `json:"total_conflict_relationships"`
	MostContradicted           []ContradictedClaim `json:"most_contradicted"`
}

// ContradictedClaim pairs a claim id with its outgoing contradicts count.
type ContradictedClaim struct {
	ClaimID   string `json:"claim_id"`
	Conflicts int    `json:"conflicts"`
}

// AnalyzeNetwork walks the contradicts edges of all flagged claims and
// returns aggregate counts plus the five most-contradicted claims.
func (a *Conflict) AnalyzeNetwork(ctx context.Context) (*NetworkAnalysis, error) {
	claims, err := a.store.ListAllActive(ctx, 1000)
	if err != nil {
		return nil, err
	}

	graph := map[string]int{}
	totalEdges := 0
	for _, claim := range claims {
		if !claim.ConflictingEvidence {
			continue
		}
		rels, err := a.store.RelationshipsFor(ctx, claim.ID)
		if err != nil {
			a.logger.Error("Failed to load relationships", "claim_id", claim.ID, "error", err)
			continue
		}
		for _, rel := range rels {
			if rel.RelationshipType == models.RelContradicts {
				graph[claim.ID]++
				totalEdges++
			}
		}
	}

	ranked := make([]ContradictedClaim, 0, len(graph))
	for id, count := range graph {
		ranked = append(ranked, ContradictedClaim{ClaimID: id, Conflicts: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Conflicts != ranked[j].Conflicts {
			return ranked[i].Conflicts > ranked[j].Conflicts
		}
		return ranked[i].ClaimID < ranked[j].ClaimID
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	return &NetworkAnalysis{
		TotalConflictingClaims:     len(graph),
		TotalConflictRelationships: totalEdges,
		MostContradicted:           ranked,
	}, nil
}
