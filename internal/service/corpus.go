package service

import (
	"context"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/pagination"
)

// DocumentCorpusRepository defines the repository interface for corpus
// administration: reads, listing and removal, no vector queries.
type DocumentCorpusRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int, category domain.DocumentCategory) (*DocumentPageResult, error)
}

// DocumentPageResult is one page of corpus documents.
type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// CorpusService exposes the stored corpus for administration.
type CorpusService struct {
	docs DocumentCorpusRepository
}

// NewCorpusService creates a new CorpusService instance.
func NewCorpusService(docs DocumentCorpusRepository) *CorpusService {
	return &CorpusService{docs: docs}
}

// GetDocument returns one stored document by ID.
func (s *CorpusService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// ListDocuments pages through stored documents, optionally filtered by
// category. An invalid cursor is a validation error.
func (s *CorpusService) ListDocuments(ctx context.Context, cursorStr string, limit int, category domain.DocumentCategory) (*DocumentPageResult, error) {
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination cursor", err)
	}
	return s.docs.ListWithCursor(ctx, cursor, limit, category)
}

// DeleteDocument removes one stored document by ID.
func (s *CorpusService) DeleteDocument(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, id)
}
