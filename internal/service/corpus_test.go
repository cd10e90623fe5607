package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/pagination"
)

type MockDocumentCorpusRepository struct {
	mock.Mock
}

func (m *MockDocumentCorpusRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentCorpusRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentCorpusRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int, category domain.DocumentCategory) (*DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func TestCorpusService_GetDocument(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	doc := &domain.Document{ID: "doc-1", Title: "Protocole épaule", Content: "contenu"}
	repo.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)

	got, err := svc.GetDocument(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, doc, got)
	repo.AssertExpectations(t)
}

func TestCorpusService_GetDocument_NotFound(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	_, err := svc.GetDocument(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestCorpusService_ListDocuments(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	cursorTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cursorStr := pagination.EncodeCursor("doc-5", cursorTime)

	page := &DocumentPageResult{
		Items:   []*domain.Document{{ID: "doc-6"}, {ID: "doc-7"}},
		HasMore: false,
	}
	repo.On("ListWithCursor", mock.Anything, mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.LastID == "doc-5" && c.Timestamp.Equal(cursorTime)
	}), 20, domain.CategoryProtocol).Return(page, nil)

	got, err := svc.ListDocuments(context.Background(), cursorStr, 20, domain.CategoryProtocol)

	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.False(t, got.HasMore)
	repo.AssertExpectations(t)
}

func TestCorpusService_ListDocuments_EmptyCursor(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	page := &DocumentPageResult{Items: []*domain.Document{{ID: "doc-1"}}, HasMore: true, NextCursor: "next"}
	repo.On("ListWithCursor", mock.Anything, (*pagination.Cursor)(nil), 10, domain.DocumentCategory("")).Return(page, nil)

	got, err := svc.ListDocuments(context.Background(), "", 10, "")

	require.NoError(t, err)
	assert.True(t, got.HasMore)
	assert.Equal(t, "next", got.NextCursor)
}

func TestCorpusService_ListDocuments_InvalidCursor(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	_, err := svc.ListDocuments(context.Background(), "!!!not-base64!!!", 10, "")

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	repo.AssertNotCalled(t, "ListWithCursor", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCorpusService_DeleteDocument(t *testing.T) {
	repo := new(MockDocumentCorpusRepository)
	svc := NewCorpusService(repo)

	repo.On("Delete", mock.Anything, "doc-1").Return(nil)

	err := svc.DeleteDocument(context.Background(), "doc-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
