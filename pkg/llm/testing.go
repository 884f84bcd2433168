package llm

import (
	"context"
	"fmt"
	"hash/fnv"
)

// Double is a scripted Capability for tests. Zero-value behavior: extraction
// returns no claims, validation accepts, conflict detection finds nothing,
// and Embed returns a deterministic unit vector derived from the text.
type Double struct {
	ExtractFunc  func(ctx context.Context, title string, authors []string, abstract string) ([]ExtractedClaim, error)
	ValidateFunc func(ctx context.Context, input ValidateClaimInput) (*ValidationResult, error)
	ConflictFunc func(ctx context.Context, a, b ConflictClaim) (*ConflictResult, error)
	EmbedFunc    func(ctx context.Context, text string) ([]float32, error)

	// Dimensions of the default deterministic embedding (16 when zero).
	Dimensions int

	ExtractCalls  int
	ValidateCalls int
	ConflictCalls int
	EmbedCalls    int
}

var _ Capability = (*Double)(nil)

// ExtractClaims runs the scripted extraction.
func (d *Double) ExtractClaims(ctx context.Context, title string, authors []string, abstract string) ([]ExtractedClaim, error) {
	d.ExtractCalls++
	if d.ExtractFunc != nil {
		return d.ExtractFunc(ctx, title, authors, abstract)
	}
	return nil, nil
}

// ValidateClaim runs the scripted validation.
func (d *Double) ValidateClaim(ctx context.Context, input ValidateClaimInput) (*ValidationResult, error) {
	d.ValidateCalls++
	if d.ValidateFunc != nil {
		return d.ValidateFunc(ctx, input)
	}
	return &ValidationResult{IsValid: true}, nil
}

// DetectConflict runs the scripted conflict check.
func (d *Double) DetectConflict(ctx context.Context, a, b ConflictClaim) (*ConflictResult, error) {
	d.ConflictCalls++
	if d.ConflictFunc != nil {
		return d.ConflictFunc(ctx, a, b)
	}
	return &ConflictResult{ConflictDetected: false, ConflictType: "none"}, nil
}

// Embed runs the scripted embedding.
func (d *Double) Embed(ctx context.Context, text string) ([]float32, error) {
	d.EmbedCalls++
	if d.EmbedFunc != nil {
		return d.EmbedFunc(ctx, text)
	}
	return DeterministicEmbedding(text, d.dims()), nil
}

func (d *Double) dims() int {
	if d.Dimensions > 0 {
		return d.Dimensions
	}
	return 16
}

// DeterministicEmbedding returns a unit vector derived from the text hash,
// stable across runs. Identical texts embed identically; different texts are
// very unlikely to collide.
func DeterministicEmbedding(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = fmt.Fprint(h, text)
	vec := make([]float32, dims)
	vec[h.Sum64()%uint64(dims)] = 1
	return vec
}
