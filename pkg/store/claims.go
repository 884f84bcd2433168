package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/ageree/curator/pkg/models"
)

const claimColumns = `
	id, claim, claim_summary, category, evidence_level, confidence_score, status,
	source_doi, source_url, source_title, source_authors, publication_date,
	sample_size, study_design, population, effect_size, key_findings, limitations,
	conflicting_evidence, auto_validated,
	embedding_status, embedding, embedding_error, created_at, updated_at`

// InsertDraft persists a new draft claim. The insert trigger forces
// embedding_status back to pending, so newly extracted claims always enter
// the knowledge-base agent's queue.
func (s *Postgres) InsertDraft(ctx context.Context, claim *models.ScientificClaim) (string, error) {
	id := uuid.NewString()

	authors, err := json.Marshal(claim.SourceAuthors)
	if err != nil {
		return "", fmt.Errorf("marshal source_authors: %w", err)
	}
	findings, err := json.Marshal(claim.KeyFindings)
	if err != nil {
		return "", fmt.Errorf("marshal key_findings: %w", err)
	}
	if claim.SourceAuthors == nil {
		authors = []byte("[]")
	}
	if claim.KeyFindings == nil {
		findings = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scientific_claims
			(id, claim, claim_summary, category, evidence_level, confidence_score, status,
			 source_doi, source_url, source_title, source_authors, publication_date,
			 sample_size, study_design, population, effect_size, key_findings, limitations)
		VALUES ($1, $2, $3, $4, $5, $6, 'draft',
		        $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17)`,
		id, claim.Claim, claim.ClaimSummary, string(claim.Category),
		claim.EvidenceLevel, models.ClampScore(claim.ConfidenceScore),
		nullString(claim.SourceDOI), nullString(claim.SourceURL), nullString(claim.SourceTitle),
		authors, nullTime(claim.PublicationDate),
		nullInt(claim.SampleSize), nullString(claim.StudyDesign), nullString(claim.Population),
		nullString(claim.EffectSize), findings, nullString(claim.Limitations),
	)
	if err != nil {
		return "", fmt.Errorf("insert draft claim: %w", err)
	}
	return id, nil
}

// GetClaim fetches one claim by id.
func (s *Postgres) GetClaim(ctx context.Context, id string) (*models.ScientificClaim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM scientific_claims WHERE id = $1`, id)

	claim, err := scanClaimRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return claim, err
}

// UpdateClaim applies a partial update to the validation-stage fields.
func (s *Postgres) UpdateClaim(ctx context.Context, id string, patch models.ClaimPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scientific_claims
		SET status               = COALESCE($2, status),
		    confidence_score     = COALESCE($3, confidence_score),
		    conflicting_evidence = COALESCE($4, conflicting_evidence),
		    auto_validated       = COALESCE($5, auto_validated),
		    updated_at           = now()
		WHERE id = $1`,
		id,
		nullClaimStatus(patch.Status),
		nullFloat(patch.ConfidenceScore),
		nullBool(patch.ConflictingEvidence),
		nullBool(patch.AutoValidated),
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	return requireRow(res)
}

// ListDrafts returns up to limit draft claims, oldest first.
func (s *Postgres) ListDrafts(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+`
		 FROM scientific_claims
		 WHERE status = 'draft'
		 ORDER BY created_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return scanClaims(rows)
}

// ListByCategoryFiltered returns active claims of a category above the
// evidence and confidence floors, strongest evidence first.
func (s *Postgres) ListByCategoryFiltered(ctx context.Context, category models.Category, minEvidence int, minConfidence float64, limit int) ([]*models.ScientificClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+`
		 FROM scientific_claims
		 WHERE status = 'active'
		   AND category = $1
		   AND evidence_level >= $2
		   AND confidence_score >= $3
		 ORDER BY evidence_level DESC, confidence_score DESC
		 LIMIT $4`,
		string(category), minEvidence, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("list claims by category: %w", err)
	}
	return scanClaims(rows)
}

// ListAllActive returns up to limit active claims, newest first.
func (s *Postgres) ListAllActive(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+`
		 FROM scientific_claims
		 WHERE status = 'active'
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list active claims: %w", err)
	}
	return scanClaims(rows)
}

// ClaimPendingEmbeddings atomically flips up to limit claims from pending to
// processing and returns them, so concurrent knowledge-base workers never
// embed the same claim twice.
func (s *Postgres) ClaimPendingEmbeddings(ctx context.Context, limit int) ([]*models.ScientificClaim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		UPDATE scientific_claims
		SET embedding_status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM scientific_claims
			WHERE embedding_status = 'pending' AND status = 'active'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+claimColumns,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending embeddings: %w", err)
	}

	claims, err := scanClaims(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claims, nil
}

// UpdateEmbedding writes the vector and terminal embedding status.
func (s *Postgres) UpdateEmbedding(ctx context.Context, id string, vec []float32, status models.EmbeddingStatus, errorMessage string) error {
	var embedding any
	if vec != nil {
		embedding = pgvector.NewVector(vec)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE scientific_claims
		SET embedding        = $2,
		    embedding_status = $3,
		    embedding_error  = NULLIF($4, ''),
		    updated_at       = now()
		WHERE id = $1`,
		id, embedding, string(status), errorMessage,
	)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return requireRow(res)
}

// FindSimilar performs cosine similarity search over completed embeddings.
// Similarity is 1 - cosine distance, in [0,1] for normalized embeddings.
func (s *Postgres) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int, category models.Category, minEvidence int) ([]models.SimilarClaim, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim, 1 - (embedding <=> $1) AS similarity,
		       evidence_level, study_design, category
		FROM scientific_claims
		WHERE status = 'active'
		  AND embedding_status = 'completed'
		  AND 1 - (embedding <=> $1) >= $2
		  AND ($4 = '' OR category = $4)
		  AND ($5 = 0 OR evidence_level >= $5)
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, threshold, limit, string(category), minEvidence,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar claims: %w", err)
	}
	defer rows.Close()

	var hits []models.SimilarClaim
	for rows.Next() {
		var (
			hit    models.SimilarClaim
			design sql.NullString
		)
		if err := rows.Scan(&hit.ID, &hit.Claim, &hit.Similarity, &hit.EvidenceLevel, &design, &hit.Category); err != nil {
			return nil, fmt.Errorf("scan similar claim: %w", err)
		}
		hit.StudyDesign = fromNullString(design)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaimRow(row rowScanner) (*models.ScientificClaim, error) {
	var (
		claim       models.ScientificClaim
		doi         sql.NullString
		url         sql.NullString
		title       sql.NullString
		authors     []byte
		pubDate     sql.NullTime
		sampleSize  sql.NullInt64
		studyDesign sql.NullString
		population  sql.NullString
		effectSize  sql.NullString
		findings    []byte
		limitations sql.NullString
		embedding   sql.Null[pgvector.Vector]
		embErr      sql.NullString
	)
	if err := row.Scan(
		&claim.ID, &claim.Claim, &claim.ClaimSummary, &claim.Category,
		&claim.EvidenceLevel, &claim.ConfidenceScore, &claim.Status,
		&doi, &url, &title, &authors, &pubDate,
		&sampleSize, &studyDesign, &population, &effectSize, &findings, &limitations,
		&claim.ConflictingEvidence, &claim.AutoValidated,
		&claim.EmbeddingStatus, &embedding, &embErr, &claim.CreatedAt, &claim.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if embedding.Valid {
		claim.Embedding = embedding.V.Slice()
	}
	if err := json.Unmarshal(authors, &claim.SourceAuthors); err != nil {
		return nil, fmt.Errorf("unmarshal source_authors: %w", err)
	}
	if err := json.Unmarshal(findings, &claim.KeyFindings); err != nil {
		return nil, fmt.Errorf("unmarshal key_findings: %w", err)
	}
	claim.SourceDOI = fromNullString(doi)
	claim.SourceURL = fromNullString(url)
	claim.SourceTitle = fromNullString(title)
	claim.PublicationDate = fromNullTime(pubDate)
	claim.SampleSize = fromNullInt(sampleSize)
	claim.StudyDesign = fromNullString(studyDesign)
	claim.Population = fromNullString(population)
	claim.EffectSize = fromNullString(effectSize)
	claim.Limitations = fromNullString(limitations)
	claim.EmbeddingError = fromNullString(embErr)
	return &claim, nil
}

func scanClaims(rows *sql.Rows) ([]*models.ScientificClaim, error) {
	defer rows.Close()

	var claims []*models.ScientificClaim
	for rows.Next() {
		claim, err := scanClaimRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func nullClaimStatus(s *models.ClaimStatus) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*s), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
