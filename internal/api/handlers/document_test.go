package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/service"
)

type MockCorpusService struct {
	mock.Mock
}

func (m *MockCorpusService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockCorpusService) ListDocuments(ctx context.Context, cursor string, limit int, category domain.DocumentCategory) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockCorpusService) DeleteDocument(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func requestWithID(method, url, id string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	doc := &domain.Document{
		ID:        "doc-1",
		Title:     "Protocole épaule",
		Content:   "Renforcement progressif de la coiffe des rotateurs.",
		Category:  domain.CategoryProtocol,
		CreatedAt: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	mockSvc.On("GetDocument", mock.Anything, "doc-1").Return(doc, nil)

	req := requestWithID(http.MethodGet, "/v1/documents/doc-1", "doc-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-1", data["id"])
	assert.Equal(t, "protocol", data["category"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Get_RendersTimestampInUTC(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	paris := time.FixedZone("CEST", 2*60*60)
	doc := &domain.Document{
		ID:        "doc-1",
		Title:     "Protocole épaule",
		CreatedAt: time.Date(2025, 5, 1, 10, 15, 0, 0, paris),
	}
	mockSvc.On("GetDocument", mock.Anything, "doc-1").Return(doc, nil)

	req := requestWithID(http.MethodGet, "/v1/documents/doc-1", "doc-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-05-01T08:15:00Z")
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetDocument", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)

	req := requestWithID(http.MethodGet, "/v1/documents/missing", "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "document not found")
}

func TestDocumentHandler_List_Success(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	page := &service.DocumentPageResult{
		Items: []*domain.Document{
			{ID: "doc-1", Title: "A"},
			{ID: "doc-2", Title: "B"},
		},
		NextCursor: "next-cursor",
		HasMore:    true,
	}
	mockSvc.On("ListDocuments", mock.Anything, "", 5, domain.CategoryProtocol).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents?limit=5&category=protocol", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["items"], 2)
	assert.Equal(t, "next-cursor", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_DefaultLimit(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	page := &service.DocumentPageResult{Items: []*domain.Document{}}
	mockSvc.On("ListDocuments", mock.Anything, "", 20, domain.DocumentCategory("")).Return(page, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_InvalidCursor(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListDocuments", mock.Anything, "bad", 20, domain.DocumentCategory("")).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid pagination cursor"))

	req := httptest.NewRequest(http.MethodGet, "/v1/documents?cursor=bad", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid pagination cursor")
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockCorpusService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("DeleteDocument", mock.Anything, "doc-1").Return(nil)

	req := requestWithID(http.MethodDelete, "/v1/documents/doc-1", "doc-1")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deleted")
	mockSvc.AssertExpectations(t)
}
