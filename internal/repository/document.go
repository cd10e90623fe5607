package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/pagination"
	"github.com/kinesica-health/kinesica/internal/service"
)

// dbtx abstracts over a pool and a transaction so repositories work in both.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentRepository persists embedded document chunks and serves
// nearest-neighbor queries over them.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.Document) (string, error) {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (id, title, content, category, embedding, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content, category = EXCLUDED.category,
		     embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
		doc.ID, doc.Title, doc.Content, nullableString(string(doc.Category)),
		pgvector.NewVector(doc.Embedding), metadataJSON, doc.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Query returns the documents whose cosine similarity to the embedding clears
// the threshold, best first.
func (r *DocumentRepository) Query(ctx context.Context, embedding []float32, opts service.QueryOptions) ([]*domain.ScoredDocument, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id, title, content, category, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		WHERE embedding IS NOT NULL AND 1 - (embedding <=> $1) >= $2`
	args := []any{vec, opts.Threshold}

	if opts.Category != "" {
		query += ` AND category = $3`
		args = append(args, string(opts.Category))
	}
	query += ` ORDER BY embedding <=> $1 LIMIT ` + placeholder(len(args)+1)
	args = append(args, opts.TopK)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ScoredDocument
	for rows.Next() {
		var scored domain.ScoredDocument
		var category *string
		var metadataJSON []byte
		if err := rows.Scan(&scored.ID, &scored.Title, &scored.Content, &category, &metadataJSON, &scored.CreatedAt, &scored.Similarity); err != nil {
			return nil, err
		}
		if category != nil {
			scored.Category = domain.DocumentCategory(*category)
		}
		if err := unmarshalMetadata(metadataJSON, &scored.Metadata); err != nil {
			return nil, err
		}
		results = append(results, &scored)
	}
	return results, rows.Err()
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var category *string
	var metadataJSON []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, category, metadata, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &category, &metadataJSON, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if category != nil {
		doc.Category = domain.DocumentCategory(*category)
	}
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	return &doc, nil
}

// MergeMetadata replaces a document's metadata with an already-merged map.
// The read-merge-write cycle runs inside the caller's transaction.
func (r *DocumentRepository) MergeMetadata(ctx context.Context, id string, metadata domain.Metadata) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET metadata = $1 WHERE id = $2`,
		metadataJSON, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListWithCursor pages through the corpus, newest first.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int, category domain.DocumentCategory) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, title, content, category, metadata, created_at
		FROM documents`
	var args []any
	var conds []string

	if category != "" {
		args = append(args, string(category))
		conds = append(conds, "category = "+placeholder(len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		conds = append(conds, "(created_at, id) < ("+placeholder(len(args)-1)+", "+placeholder(len(args))+")")
	}
	for i, cond := range conds {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	args = append(args, limit+1)
	query += "\n\t\tORDER BY created_at DESC, id DESC\n\t\tLIMIT " + placeholder(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var cat *string
		var metadataJSON []byte
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &cat, &metadataJSON, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if cat != nil {
			doc.Category = domain.DocumentCategory(*cat)
		}
		if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
		items = append(items, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func unmarshalMetadata(raw []byte, out *domain.Metadata) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
