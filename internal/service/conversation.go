package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/telemetry"
)

const (
	retrievalQueryAttempts = 2
	retrievalRetryDelay    = 100 * time.Millisecond
)

// CompletionInput holds everything a chat completion call needs.
type CompletionInput struct {
	SystemPrompt string
	History      []domain.ConversationTurn
	UserMessage  string
	MaxTokens    int
	Temperature  float32
}

// CompletionClient defines the interface for LLM chat completions.
type CompletionClient interface {
	Complete(ctx context.Context, input CompletionInput) (string, error)
}

// ConversationRepositoryInterface defines the repository interface for
// conversation persistence. Each assistant type maps to an isolated store.
type ConversationRepositoryInterface interface {
	Insert(ctx context.Context, turn *domain.ConversationTurn) error
	FindRecent(ctx context.Context, assistantType domain.AssistantType, userID string, sinceDays, limit int) ([]domain.ConversationTurn, error)
	DeleteAll(ctx context.Context, assistantType domain.AssistantType, userID string) error
}

// RetrievalLogEntry captures one answer's retrieval set for quality feedback.
type RetrievalLogEntry struct {
	AssistantType domain.AssistantType
	UserID        string
	Query         string
	DocumentIDs   []string
	Scores        []float64
	Confidence    float64
	Degraded      bool
	DurationMs    int
}

// RetrievalLogRepository persists retrieval logs.
type RetrievalLogRepository interface {
	CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error)
}

// ConversationConfig controls the per-turn pipeline.
type ConversationConfig struct {
	SimilarityThreshold float64
	TopK                int
	Selection           SelectionConfig
	HistorySinceDays    int
	HistoryLimit        int
	MaxTokens           int
	Temperature         float32
	EmbeddingTimeout    time.Duration
	CompletionTimeout   time.Duration
}

// DefaultConversationConfig provides the tuned defaults.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		SimilarityThreshold: 0.5,
		TopK:                10,
		Selection:           DefaultSelectionConfig(),
		HistorySinceDays:    7,
		HistoryLimit:        10,
		MaxTokens:           1000,
		Temperature:         0.4,
		EmbeddingTimeout:    10 * time.Second,
		CompletionTimeout:   60 * time.Second,
	}
}

// ConversationService sequences one assistant turn: retrieve, score, select,
// build prompt, complete, persist. It only reads documents and only writes
// conversation turns.
type ConversationService struct {
	embedding     EmbeddingClient
	completion    CompletionClient
	docs          DocumentRepositoryInterface
	conversations ConversationRepositoryInterface
	retrievalLog  RetrievalLogRepository
	scorer        *RelevanceScorer
	selector      *SourceSelector
	cfg           ConversationConfig
	uuidGen       UUIDGenerator
}

// NewConversationService creates a new ConversationService instance.
func NewConversationService(
	embedding EmbeddingClient,
	completion CompletionClient,
	docs DocumentRepositoryInterface,
	conversations ConversationRepositoryInterface,
) *ConversationService {
	return NewConversationServiceWithConfig(embedding, completion, docs, conversations, nil, DefaultConversationConfig())
}

// NewConversationServiceWithConfig creates a ConversationService with
// explicit configuration and an optional retrieval log.
func NewConversationServiceWithConfig(
	embedding EmbeddingClient,
	completion CompletionClient,
	docs DocumentRepositoryInterface,
	conversations ConversationRepositoryInterface,
	retrievalLog RetrievalLogRepository,
	cfg ConversationConfig,
) *ConversationService {
	if cfg.TopK <= 0 {
		cfg = DefaultConversationConfig()
	}
	return &ConversationService{
		embedding:     embedding,
		completion:    completion,
		docs:          docs,
		conversations: conversations,
		retrievalLog:  retrievalLog,
		scorer:        NewRelevanceScorer(),
		selector:      NewSourceSelector(cfg.Selection),
		cfg:           cfg,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

// AnswerInput represents one user message to an assistant.
type AnswerInput struct {
	AssistantType domain.AssistantType
	UserID        string
	Message       string
	// History overrides the persisted history when non-nil.
	History []domain.ConversationTurn
}

// SourceSummary is the caller-facing view of a selected source.
type SourceSummary struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Category     domain.DocumentCategory `json:"category"`
	Similarity   float64                 `json:"similarity"`
	FinalScore   float64                 `json:"final_score"`
	DiversityTag string                  `json:"diversity_tag"`
}

// AnswerOutput is the result of one assistant turn.
type AnswerOutput struct {
	Message    string          `json:"message"`
	Sources    []SourceSummary `json:"sources"`
	Confidence float64         `json:"confidence"`
	Metadata   map[string]any  `json:"metadata"`
}

// Answer runs one turn. Retrieval failures degrade to an empty-context
// continuation; a completion failure is fatal for the turn; persistence is
// best-effort and never rolls back the user-visible answer.
func (s *ConversationService) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Answer", telemetry.SpanAttributes{
		AssistantType: string(input.AssistantType),
		UserID:        input.UserID,
		Operation:     "answer",
	})
	defer span.End()

	start := time.Now()

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if _, err := domain.ParseAssistantType(string(input.AssistantType)); err != nil {
		return nil, err
	}

	history := input.History
	if history == nil && input.UserID != "" {
		recent, err := s.conversations.FindRecent(ctx, input.AssistantType, input.UserID, s.cfg.HistorySinceDays, s.cfg.HistoryLimit)
		if err != nil {
			log.Printf("failed to load history for user %s: %v", input.UserID, err)
		} else {
			history = recent
		}
	}

	scored, degraded := s.retrieve(ctx, message)
	scored = s.scorer.Score(scored, message)
	selected := s.selector.Select(scored)
	confidence := EstimateConfidence(scored)

	var response string
	if input.AssistantType == domain.AssistantBiblio && len(selected) == 0 {
		// The bibliographic assistant never answers without a verifiable
		// source.
		response = BiblioRefusalMessage
	} else {
		prompt, err := BuildPrompt(input.AssistantType, selected)
		if err != nil {
			return nil, err
		}

		completionCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
		response, err = s.completion.Complete(completionCtx, CompletionInput{
			SystemPrompt: prompt,
			History:      history,
			UserMessage:  message,
			MaxTokens:    s.cfg.MaxTokens,
			Temperature:  s.cfg.Temperature,
		})
		cancel()
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	s.persistTurn(ctx, input, message, response)
	s.logRetrieval(ctx, input, message, scored, confidence, degraded, time.Since(start))

	return &AnswerOutput{
		Message:    response,
		Sources:    summarizeSources(selected),
		Confidence: confidence,
		Metadata: map[string]any{
			"assistant_type":  input.AssistantType,
			"retrieved_count": len(scored),
			"selected_count":  len(selected),
			"degraded":        degraded,
			"duration_ms":     time.Since(start).Milliseconds(),
		},
	}, nil
}

// retrieve embeds the message and queries the vector store. Any failure
// degrades to an empty result set so the assistant can still answer.
func (s *ConversationService) retrieve(ctx context.Context, message string) ([]*domain.ScoredDocument, bool) {
	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()

	embedding, err := s.embedding.GenerateEmbedding(embedCtx, message)
	if err != nil {
		log.Printf("retrieval degraded, embedding failed: %v", err)
		return nil, true
	}

	// The vector lookup is the one transient dependency worth retrying;
	// embedding and completion failures carry their own semantics.
	var scored []*domain.ScoredDocument
	err = RetryWithBackoff(ctx, retrievalQueryAttempts, retrievalRetryDelay, func(ctx context.Context) error {
		var queryErr error
		scored, queryErr = s.docs.Query(ctx, embedding, QueryOptions{
			Threshold: s.cfg.SimilarityThreshold,
			TopK:      s.cfg.TopK,
		})
		return queryErr
	})
	if err != nil {
		log.Printf("retrieval degraded, vector query failed: %v", err)
		return nil, true
	}
	return scored, false
}

// persistTurn stores the exchange after a successful completion.
// Best-effort: a persistence failure is logged, the answer stands.
func (s *ConversationService) persistTurn(ctx context.Context, input AnswerInput, message, response string) {
	if input.UserID == "" {
		return
	}
	turn := domain.NewConversationTurn(
		s.uuidGen.NewString(),
		input.AssistantType,
		input.UserID,
		message,
		response,
		time.Now().UTC(),
	)
	if err := s.conversations.Insert(ctx, turn); err != nil {
		log.Printf("%v: %v", domain.ErrConversationPersistence, err)
	}
}

func (s *ConversationService) logRetrieval(ctx context.Context, input AnswerInput, message string, scored []*domain.ScoredDocument, confidence float64, degraded bool, elapsed time.Duration) {
	if s.retrievalLog == nil {
		return
	}
	ids := make([]string, len(scored))
	scores := make([]float64, len(scored))
	for i, doc := range scored {
		ids[i] = doc.ID
		scores[i] = doc.FinalScore
	}
	entry := RetrievalLogEntry{
		AssistantType: input.AssistantType,
		UserID:        input.UserID,
		Query:         message,
		DocumentIDs:   ids,
		Scores:        scores,
		Confidence:    confidence,
		Degraded:      degraded,
		DurationMs:    int(elapsed.Milliseconds()),
	}
	if _, err := s.retrievalLog.CreateRetrievalLog(ctx, entry); err != nil {
		log.Printf("failed to log retrieval: %v", err)
	}
}

// History returns the recent turns for a user and assistant type.
func (s *ConversationService) History(ctx context.Context, assistantType domain.AssistantType, userID string, sinceDays, limit int) ([]domain.ConversationTurn, error) {
	if _, err := domain.ParseAssistantType(string(assistantType)); err != nil {
		return nil, err
	}
	if sinceDays <= 0 {
		sinceDays = s.cfg.HistorySinceDays
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.conversations.FindRecent(ctx, assistantType, userID, sinceDays, limit)
}

// DeleteHistory removes every turn for a user and assistant type.
func (s *ConversationService) DeleteHistory(ctx context.Context, assistantType domain.AssistantType, userID string) error {
	if _, err := domain.ParseAssistantType(string(assistantType)); err != nil {
		return err
	}
	return s.conversations.DeleteAll(ctx, assistantType, userID)
}

func summarizeSources(selected []*domain.SelectedSource) []SourceSummary {
	out := make([]SourceSummary, len(selected))
	for i, src := range selected {
		out[i] = SourceSummary{
			ID:           src.ID,
			Title:        src.Title,
			Category:     src.Category,
			Similarity:   src.Similarity,
			FinalScore:   src.FinalScore,
			DiversityTag: src.DiversityTag,
		}
	}
	return out
}
