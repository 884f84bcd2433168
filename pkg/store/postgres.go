package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ageree/curator/pkg/models"
)

// Postgres implements Store on a PostgreSQL database with the pgvector
// extension. All claiming operations use FOR UPDATE SKIP LOCKED so that
// concurrent workers never double-claim a record.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a Postgres store over an existing connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

// EnqueueCandidate inserts a pending queue item, deduplicating on DOI/URL via
// the partial unique indexes.
func (s *Postgres) EnqueueCandidate(ctx context.Context, item *models.ResearchQueueItem) (string, error) {
	id := uuid.NewString()

	authors, err := json.Marshal(item.Authors)
	if err != nil {
		return "", fmt.Errorf("marshal authors: %w", err)
	}
	rawData, err := marshalBag(item.RawData)
	if err != nil {
		return "", fmt.Errorf("marshal raw_data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO research_queue
			(id, title, authors, abstract, doi, url, publication_date,
			 source_type, status, priority, raw_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10)`,
		id, item.Title, authors, nullString(item.Abstract),
		nullString(item.DOI), nullString(item.URL), nullTime(item.PublicationDate),
		string(item.SourceType), models.ClampPriority(item.Priority), rawData,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicateCandidate
		}
		return "", fmt.Errorf("enqueue candidate: %w", err)
	}
	return id, nil
}

// ClaimPending claims up to limit pending queue items in one transaction,
// highest priority first, FIFO within a priority.
func (s *Postgres) ClaimPending(ctx context.Context, limit int) ([]*models.ResearchQueueItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		UPDATE research_queue
		SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM research_queue
			WHERE status = 'pending'
			ORDER BY priority ASC, created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, title, authors, abstract, doi, url, publication_date,
		          source_type, status, priority, raw_data, error_message,
		          created_at, updated_at`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending items: %w", err)
	}

	items, err := scanQueueItems(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return items, nil
}

// SetQueueStatus writes the item status and optional error message.
func (s *Postgres) SetQueueStatus(ctx context.Context, id string, status models.QueueStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE research_queue
		SET status = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`,
		id, string(status), errorMessage,
	)
	if err != nil {
		return fmt.Errorf("set queue status: %w", err)
	}
	return requireRow(res)
}

func scanQueueItems(rows *sql.Rows) ([]*models.ResearchQueueItem, error) {
	defer rows.Close()

	var items []*models.ResearchQueueItem
	for rows.Next() {
		var (
			item       models.ResearchQueueItem
			authors    []byte
			rawData    []byte
			abstract   sql.NullString
			doi        sql.NullString
			url        sql.NullString
			pubDate    sql.NullTime
			errMessage sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.Title, &authors, &abstract, &doi, &url, &pubDate,
			&item.SourceType, &item.Status, &item.Priority, &rawData, &errMessage,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		if err := json.Unmarshal(authors, &item.Authors); err != nil {
			return nil, fmt.Errorf("unmarshal authors: %w", err)
		}
		if err := json.Unmarshal(rawData, &item.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw_data: %w", err)
		}
		item.Abstract = fromNullString(abstract)
		item.DOI = fromNullString(doi)
		item.URL = fromNullString(url)
		item.PublicationDate = fromNullTime(pubDate)
		item.ErrorMessage = fromNullString(errMessage)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// --- shared helpers ---

func marshalBag(bag map[string]any) ([]byte, error) {
	if bag == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(bag)
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func fromNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
