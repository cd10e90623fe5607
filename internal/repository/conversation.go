package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// conversationTables maps each assistant type to its isolated history table.
// One table per assistant keeps retention and deletion per assistant trivial
// and makes cross-assistant leakage structurally impossible.
var conversationTables = map[domain.AssistantType]string{
	domain.AssistantBasic:          "conversations_basique",
	domain.AssistantBiblio:         "conversations_biblio",
	domain.AssistantClinical:       "conversations_clinique",
	domain.AssistantAdministrative: "conversations_administrative",
}

func init() {
	for _, at := range domain.AssistantTypes() {
		if _, ok := conversationTables[at]; !ok {
			panic(fmt.Sprintf("no conversation table registered for assistant type %q", at))
		}
	}
}

// ConversationRepository persists conversation turns across the per-assistant
// tables.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Insert(ctx context.Context, turn *domain.ConversationTurn) error {
	table, err := conversationTable(turn.AssistantType)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, message, response, created_at)
		 VALUES ($1, $2, $3, $4, $5)`, table),
		turn.ID, turn.UserID, turn.Message, turn.Response, turn.CreatedAt,
	)
	return err
}

// FindRecent returns at most limit turns for the user within the window, in
// chronological order.
func (r *ConversationRepository) FindRecent(ctx context.Context, assistantType domain.AssistantType, userID string, sinceDays, limit int) ([]domain.ConversationTurn, error) {
	table, err := conversationTable(assistantType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	since := time.Now().UTC().AddDate(0, 0, -sinceDays)

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, user_id, message, response, created_at
		 FROM %s
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`, table),
		userID, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ConversationTurn
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(&turn.ID, &turn.UserID, &turn.Message, &turn.Response, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.AssistantType = assistantType
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query walks backwards from the newest turn; the prompt wants
	// oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *ConversationRepository) DeleteAll(ctx context.Context, assistantType domain.AssistantType, userID string) error {
	table, err := conversationTable(assistantType)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table), userID)
	return err
}

// DeleteOlderThan removes turns older than the cutoff from one assistant's
// table and reports how many were removed.
func (r *ConversationRepository) DeleteOlderThan(ctx context.Context, assistantType domain.AssistantType, cutoff time.Time) (int64, error) {
	table, err := conversationTable(assistantType)
	if err != nil {
		return 0, err
	}
	cmdTag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, table), cutoff)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// conversationTable resolves the table for an assistant type. Table names come
// from a closed map, never from input.
func conversationTable(assistantType domain.AssistantType) (string, error) {
	table, ok := conversationTables[assistantType]
	if !ok {
		return "", domain.ErrUnknownAssistantType
	}
	return table, nil
}
