package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// MockCompletionClient is a mock implementation of CompletionClient
type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, input CompletionInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockConversationRepository is a mock implementation of ConversationRepositoryInterface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Insert(ctx context.Context, turn *domain.ConversationTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockConversationRepository) FindRecent(ctx context.Context, assistantType domain.AssistantType, userID string, sinceDays, limit int) ([]domain.ConversationTurn, error) {
	args := m.Called(ctx, assistantType, userID, sinceDays, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConversationTurn), args.Error(1)
}

func (m *MockConversationRepository) DeleteAll(ctx context.Context, assistantType domain.AssistantType, userID string) error {
	args := m.Called(ctx, assistantType, userID)
	return args.Error(0)
}

// MockRetrievalLogRepository is a mock implementation of RetrievalLogRepository
type MockRetrievalLogRepository struct {
	mock.Mock
}

func (m *MockRetrievalLogRepository) CreateRetrievalLog(ctx context.Context, entry RetrievalLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

type conversationFixture struct {
	embedding     *MockEmbeddingClient
	completion    *MockCompletionClient
	docs          *MockDocumentRepository
	conversations *MockConversationRepository
	retrievalLog  *MockRetrievalLogRepository
	service       *ConversationService
}

func newConversationFixture() *conversationFixture {
	f := &conversationFixture{
		embedding:     new(MockEmbeddingClient),
		completion:    new(MockCompletionClient),
		docs:          new(MockDocumentRepository),
		conversations: new(MockConversationRepository),
		retrievalLog:  new(MockRetrievalLogRepository),
	}
	f.service = NewConversationServiceWithConfig(
		f.embedding, f.completion, f.docs, f.conversations, f.retrievalLog, DefaultConversationConfig())
	return f
}

func retrievedDoc(id string, category domain.DocumentCategory, similarity float64) *domain.ScoredDocument {
	return &domain.ScoredDocument{
		Document: domain.Document{
			ID:        id,
			Title:     "Document " + id,
			Content:   strings.Repeat("contenu clinique ", 40),
			Category:  category,
			CreatedAt: time.Now().AddDate(-1, 0, 0),
		},
		Similarity: similarity,
	}
}

func TestAnswer_EmptyMessage(t *testing.T) {
	f := newConversationFixture()

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		Message:       "   ",
	})

	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestAnswer_UnknownAssistantType(t *testing.T) {
	f := newConversationFixture()

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: "juridique",
		Message:       "Une question",
	})

	assert.ErrorIs(t, err, domain.ErrUnknownAssistantType)
}

func TestAnswer_FullTurn(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("FindRecent", mock.Anything, domain.AssistantBasic, "user-1", 7, 10).
		Return([]domain.ConversationTurn{}, nil)
	f.embedding.On("GenerateEmbedding", mock.Anything, "Quelle mobilisation après entorse ?").
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, QueryOptions{Threshold: 0.5, TopK: 10}).
		Return([]*domain.ScoredDocument{
			retrievedDoc("d1", domain.CategoryProtocol, 0.8),
			retrievedDoc("d2", domain.CategoryPathology, 0.7),
		}, nil)
	f.completion.On("Complete", mock.Anything, mock.MatchedBy(func(input CompletionInput) bool {
		return strings.Contains(input.SystemPrompt, "Documents pertinents du corpus") &&
			input.UserMessage == "Quelle mobilisation après entorse ?" &&
			input.MaxTokens == 1000
	})).Return("Réponse clinique.", nil)
	f.conversations.On("Insert", mock.Anything, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
		return turn.UserID == "user-1" && turn.Response == "Réponse clinique."
	})).Return(nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(entry RetrievalLogEntry) bool {
		return len(entry.DocumentIDs) == 2 && !entry.Degraded
	})).Return("log-1", nil)

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		UserID:        "user-1",
		Message:       "Quelle mobilisation après entorse ?",
	})

	require.NoError(t, err)
	assert.Equal(t, "Réponse clinique.", output.Message)
	assert.Len(t, output.Sources, 2)
	assert.Greater(t, output.Confidence, 0.5)
	assert.Equal(t, false, output.Metadata["degraded"])
	assert.Equal(t, 2, output.Metadata["retrieved_count"])
	f.conversations.AssertExpectations(t)
	f.retrievalLog.AssertExpectations(t)
}

func TestAnswer_EmbeddingFailureDegrades(t *testing.T) {
	f := newConversationFixture()

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(nil, errors.New("timeout"))
	f.completion.On("Complete", mock.Anything, mock.MatchedBy(func(input CompletionInput) bool {
		return strings.Contains(input.SystemPrompt, "Aucun document du corpus n'est pertinent")
	})).Return("Réponse générale.", nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.MatchedBy(func(entry RetrievalLogEntry) bool {
		return entry.Degraded
	})).Return("log-1", nil)

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		Message:       "Une question",
	})

	require.NoError(t, err)
	assert.Equal(t, "Réponse générale.", output.Message)
	assert.Empty(t, output.Sources)
	assert.Equal(t, 0.5, output.Confidence)
	assert.Equal(t, true, output.Metadata["degraded"])
	f.docs.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswer_VectorQueryFailureDegrades(t *testing.T) {
	f := newConversationFixture()

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	f.completion.On("Complete", mock.Anything, mock.Anything).Return("Réponse générale.", nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantClinical,
		Message:       "Une question",
	})

	require.NoError(t, err)
	assert.Equal(t, true, output.Metadata["degraded"])
}

func TestAnswer_CompletionFailureIsFatal(t *testing.T) {
	f := newConversationFixture()

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{retrievedDoc("d1", domain.CategoryProtocol, 0.8)}, nil)
	completionErr := errors.New("model overloaded")
	f.completion.On("Complete", mock.Anything, mock.Anything).Return("", completionErr)

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		UserID:        "user-1",
		Message:       "Une question",
	})

	assert.ErrorIs(t, err, completionErr)
	f.conversations.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestAnswer_BiblioWithoutSourcesRefusesWithoutCompletion(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("FindRecent", mock.Anything, domain.AssistantBiblio, "user-1", 7, 10).
		Return([]domain.ConversationTurn{}, nil)
	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{}, nil)
	f.conversations.On("Insert", mock.Anything, mock.MatchedBy(func(turn *domain.ConversationTurn) bool {
		return turn.Response == BiblioRefusalMessage
	})).Return(nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBiblio,
		UserID:        "user-1",
		Message:       "Quelles preuves pour les ondes de choc ?",
	})

	require.NoError(t, err)
	assert.Equal(t, BiblioRefusalMessage, output.Message)
	f.completion.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.conversations.AssertExpectations(t)
}

func TestAnswer_BiblioWithSourcesCallsCompletion(t *testing.T) {
	f := newConversationFixture()

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{retrievedDoc("d1", domain.CategoryProtocol, 0.8)}, nil)
	f.completion.On("Complete", mock.Anything, mock.MatchedBy(func(input CompletionInput) bool {
		return strings.Contains(input.SystemPrompt, "Mode strictement fondé sur les preuves")
	})).Return("Réponse sourcée.", nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBiblio,
		Message:       "Quelles preuves pour les ondes de choc ?",
	})

	require.NoError(t, err)
	assert.Equal(t, "Réponse sourcée.", output.Message)
	f.completion.AssertExpectations(t)
}

func TestAnswer_PersistenceFailureIsBestEffort(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("FindRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.ConversationTurn{}, nil)
	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{}, nil)
	f.completion.On("Complete", mock.Anything, mock.Anything).Return("Réponse.", nil)
	f.conversations.On("Insert", mock.Anything, mock.Anything).
		Return(errors.New("disk full"))
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).
		Return("", errors.New("disk full"))

	output, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		UserID:        "user-1",
		Message:       "Une question",
	})

	require.NoError(t, err)
	assert.Equal(t, "Réponse.", output.Message)
}

func TestAnswer_HistoryOverrideSkipsRepository(t *testing.T) {
	f := newConversationFixture()

	history := []domain.ConversationTurn{
		{Message: "Question précédente", Response: "Réponse précédente"},
	}

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{}, nil)
	f.completion.On("Complete", mock.Anything, mock.MatchedBy(func(input CompletionInput) bool {
		return len(input.History) == 1 && input.History[0].Message == "Question précédente"
	})).Return("Réponse.", nil)
	f.conversations.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		UserID:        "user-1",
		Message:       "Une question",
		History:       history,
	})

	require.NoError(t, err)
	f.conversations.AssertNotCalled(t, "FindRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.completion.AssertExpectations(t)
}

func TestAnswer_HistoryLoadFailureContinuesWithoutHistory(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("FindRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("table missing"))
	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{}, nil)
	f.completion.On("Complete", mock.Anything, mock.MatchedBy(func(input CompletionInput) bool {
		return len(input.History) == 0
	})).Return("Réponse.", nil)
	f.conversations.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		UserID:        "user-1",
		Message:       "Une question",
	})

	require.NoError(t, err)
	f.completion.AssertExpectations(t)
}

func TestAnswer_AnonymousTurnIsNotPersisted(t *testing.T) {
	f := newConversationFixture()

	f.embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).
		Return(testEmbedding(0.2), nil)
	f.docs.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ScoredDocument{}, nil)
	f.completion.On("Complete", mock.Anything, mock.Anything).Return("Réponse.", nil)
	f.retrievalLog.On("CreateRetrievalLog", mock.Anything, mock.Anything).Return("log-1", nil)

	_, err := f.service.Answer(context.Background(), AnswerInput{
		AssistantType: domain.AssistantBasic,
		Message:       "Une question",
	})

	require.NoError(t, err)
	f.conversations.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	f.conversations.AssertNotCalled(t, "FindRecent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHistory_ValidatesAssistantType(t *testing.T) {
	f := newConversationFixture()

	_, err := f.service.History(context.Background(), "inconnu", "user-1", 7, 10)

	assert.ErrorIs(t, err, domain.ErrUnknownAssistantType)
}

func TestHistory_AppliesDefaults(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("FindRecent", mock.Anything, domain.AssistantClinical, "user-1", 7, 10).
		Return([]domain.ConversationTurn{}, nil)

	_, err := f.service.History(context.Background(), domain.AssistantClinical, "user-1", 0, 0)

	require.NoError(t, err)
	f.conversations.AssertExpectations(t)
}

func TestDeleteHistory(t *testing.T) {
	f := newConversationFixture()

	f.conversations.On("DeleteAll", mock.Anything, domain.AssistantAdministrative, "user-1").Return(nil)

	require.NoError(t, f.service.DeleteHistory(context.Background(), domain.AssistantAdministrative, "user-1"))
	assert.ErrorIs(t, f.service.DeleteHistory(context.Background(), "inconnu", "user-1"), domain.ErrUnknownAssistantType)

	f.conversations.AssertExpectations(t)
}
