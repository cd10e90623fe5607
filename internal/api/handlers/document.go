package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kinesica-health/kinesica/internal/api"
	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/service"
)

// CorpusService is the corpus-administration surface consumed by the HTTP layer.
type CorpusService interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, cursor string, limit int, category domain.DocumentCategory) (*service.DocumentPageResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc CorpusService
}

func NewDocumentHandler(svc CorpusService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Category  string          `json:"category"`
	Metadata  domain.Metadata `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

func documentToResponse(doc *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		Content:   doc.Content,
		Category:  string(doc.Category),
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	category := domain.DocumentCategory(r.URL.Query().Get("category"))
	limit := queryInt(r, "limit", 20)

	page, err := h.svc.ListDocuments(r.Context(), cursor, limit, category)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, doc := range page.Items {
		items[i] = documentToResponse(doc)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}
