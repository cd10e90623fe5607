package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kinesica-health/kinesica/internal/service"
)

// RetrievalLogRepository stores per-answer retrieval logs for quality
// evaluation of the scoring pipeline.
type RetrievalLogRepository struct {
	pool *pgxpool.Pool
}

func NewRetrievalLogRepository(pool *pgxpool.Pool) *RetrievalLogRepository {
	return &RetrievalLogRepository{pool: pool}
}

func (r *RetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry service.RetrievalLogEntry) (string, error) {
	documentsJSON, _ := json.Marshal(entry.DocumentIDs)
	scoresJSON, _ := json.Marshal(entry.Scores)

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO retrieval_logs (assistant_type, user_id, query, document_ids, scores, confidence, degraded, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		string(entry.AssistantType),
		nullableString(entry.UserID),
		entry.Query,
		documentsJSON,
		scoresJSON,
		entry.Confidence,
		entry.Degraded,
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
