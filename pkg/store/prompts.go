package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ageree/curator/pkg/models"
)

const promptColumns = `id, category, prompt_text, version, knowledge_snapshot, is_active, created_at`

// ActivePrompt returns the single active prompt for a category.
func (s *Postgres) ActivePrompt(ctx context.Context, category models.Category) (*models.PromptVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompt_versions WHERE category = $1 AND is_active`,
		string(category))
	return scanPrompt(row)
}

// LatestPromptVersion returns the highest-numbered version for a category.
func (s *Postgres) LatestPromptVersion(ctx context.Context, category models.Category) (*models.PromptVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promptColumns+`
		 FROM prompt_versions
		 WHERE category = $1
		 ORDER BY version DESC
		 LIMIT 1`,
		string(category))
	return scanPrompt(row)
}

// SavePromptVersion persists a new inactive version and returns it with its
// id and creation timestamp filled in.
func (s *Postgres) SavePromptVersion(ctx context.Context, v *models.PromptVersion) (*models.PromptVersion, error) {
	snapshot, err := marshalBag(v.KnowledgeSnapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal knowledge_snapshot: %w", err)
	}

	saved := *v
	saved.ID = uuid.NewString()
	saved.IsActive = false

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO prompt_versions (id, category, prompt_text, version, knowledge_snapshot, is_active)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING created_at`,
		saved.ID, string(saved.Category), saved.PromptText, saved.Version, snapshot,
	)
	if err := row.Scan(&saved.CreatedAt); err != nil {
		return nil, fmt.Errorf("save prompt version: %w", err)
	}
	return &saved, nil
}

// ActivatePromptVersion atomically swaps the active version of the prompt's
// category: the prior active row is cleared and the given row set in one
// transaction, preserving the single-active invariant.
func (s *Postgres) ActivatePromptVersion(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var category string
	if err := tx.QueryRowContext(ctx,
		`SELECT category FROM prompt_versions WHERE id = $1 FOR UPDATE`, id,
	).Scan(&category); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("load prompt version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE prompt_versions SET is_active = FALSE WHERE category = $1 AND is_active`,
		category,
	); err != nil {
		return fmt.Errorf("deactivate prior prompt: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE prompt_versions SET is_active = TRUE WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("activate prompt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

// ListTrustedAuthors returns the active trusted-author registry.
func (s *Postgres) ListTrustedAuthors(ctx context.Context) ([]*models.TrustedSource, error) {
	return s.listTrusted(ctx, "trusted_authors")
}

// ListTrustedJournals returns the active trusted-journal registry.
func (s *Postgres) ListTrustedJournals(ctx context.Context) ([]*models.TrustedSource, error) {
	return s.listTrusted(ctx, "trusted_journals")
}

func (s *Postgres) listTrusted(ctx context.Context, table string) ([]*models.TrustedSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, normalized_name, short_name, priority_boost, active
		 FROM `+table+`
		 WHERE active
		 ORDER BY normalized_name`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var sources []*models.TrustedSource
	for rows.Next() {
		var (
			src       models.TrustedSource
			shortName sql.NullString
		)
		if err := rows.Scan(&src.ID, &src.Name, &src.NormalizedName, &shortName, &src.PriorityBoost, &src.Active); err != nil {
			return nil, fmt.Errorf("scan trusted source: %w", err)
		}
		src.ShortName = fromNullString(shortName)
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

func scanPrompt(row rowScanner) (*models.PromptVersion, error) {
	var (
		prompt   models.PromptVersion
		snapshot []byte
	)
	if err := row.Scan(&prompt.ID, &prompt.Category, &prompt.PromptText,
		&prompt.Version, &snapshot, &prompt.IsActive, &prompt.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan prompt version: %w", err)
	}
	if err := json.Unmarshal(snapshot, &prompt.KnowledgeSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal knowledge_snapshot: %w", err)
	}
	return &prompt, nil
}
