package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Service implements Capability on top of a ChatClient and an
// EmbeddingClient. Malformed items in model output are logged and skipped;
// a fully unparseable response is an error the caller degrades on.
type Service struct {
	chat   *ChatClient
	embed  *EmbeddingClient
	logger *slog.Logger
}

// NewService composes the chat and embedding providers into the capability
// the agents consume.
func NewService(chat *ChatClient, embed *EmbeddingClient) *Service {
	return &Service{
		chat:   chat,
		embed:  embed,
		logger: slog.Default().With("component", "llm-service"),
	}
}

var _ Capability = (*Service)(nil)

// ExtractClaims lifts structured claims from a paper abstract. The abstract
// is capped at 4000 bytes before prompting.
func (s *Service) ExtractClaims(ctx context.Context, title string, authors []string, abstract string) ([]ExtractedClaim, error) {
	if abstract == "" {
		return nil, nil
	}

	authorList := "Unknown"
	if len(authors) > 0 {
		authorList = strings.Join(authors, ", ")
	}
	prompt := fmt.Sprintf(extractionPrompt, title, authorList, truncate(abstract, 4000))

	response, err := s.chat.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}
	response = cleanJSONResponse(response)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	claims := make([]ExtractedClaim, 0, len(raw))
	for _, item := range raw {
		var claim ExtractedClaim
		if err := json.Unmarshal(item, &claim); err != nil {
			s.logger.Warn("Skipping malformed extracted claim", "error", err)
			continue
		}
		if claim.Claim == "" {
			continue
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// ValidateClaim judges a draft claim against its metadata and neighbors.
func (s *Service) ValidateClaim(ctx context.Context, input ValidateClaimInput) (*ValidationResult, error) {
	neighborLines := make([]string, 0, len(input.Neighbors))
	for i, n := range input.Neighbors {
		if i >= 5 {
			break
		}
		neighborLines = append(neighborLines, fmt.Sprintf("- %s (ID: %s)", n.Claim, n.ID))
	}
	neighborText := "None found"
	if len(neighborLines) > 0 {
		neighborText = strings.Join(neighborLines, "\n")
	}

	prompt := fmt.Sprintf(validationPrompt,
		input.Claim, input.Category, input.EvidenceLevel, input.StudyDesign,
		optionalInt(input.SampleSize), optionalString(input.EffectSize), neighborText)

	response, err := s.chat.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("claim validation: %w", err)
	}

	var result ValidationResult
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &result); err != nil {
		return nil, fmt.Errorf("parse validation response: %w", err)
	}
	return &result, nil
}

// DetectConflict decides whether two claims contradict each other.
func (s *Service) DetectConflict(ctx context.Context, a, b ConflictClaim) (*ConflictResult, error) {
	prompt := fmt.Sprintf(conflictPrompt,
		a.Claim, a.EvidenceLevel, a.StudyDesign,
		b.Claim, b.EvidenceLevel, b.StudyDesign)

	response, err := s.chat.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("conflict detection: %w", err)
	}

	var result ConflictResult
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &result); err != nil {
		return nil, fmt.Errorf("parse conflict response: %w", err)
	}
	return &result, nil
}

// Embed computes the embedding vector for a text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embed == nil {
		return nil, fmt.Errorf("embedding provider not configured")
	}
	return s.embed.Embed(ctx, text)
}

func optionalInt(i *int) string {
	if i == nil {
		return "Not specified"
	}
	return fmt.Sprintf("%d", *i)
}

func optionalString(s *string) string {
	if s == nil || *s == "" {
		return "Not specified"
	}
	return *s
}
