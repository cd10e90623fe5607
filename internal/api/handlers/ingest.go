package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kinesica-health/kinesica/internal/api"
	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/service"
)

// IngestService is the ingestion surface consumed by the HTTP layer.
type IngestService interface {
	IngestDocument(ctx context.Context, input service.IngestInput) ([]*domain.Document, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestRequest struct {
	Text     string          `json:"text"`
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Metadata domain.Metadata `json:"metadata"`
}

type IngestedDocumentResponse struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Metadata domain.Metadata `json:"metadata"`
}

type IngestResponse struct {
	Stored []IngestedDocumentResponse `json:"stored"`
	Count  int                        `json:"count"`
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	docs, err := h.svc.IngestDocument(r.Context(), service.IngestInput{
		RawText:  req.Text,
		Title:    req.Title,
		Category: domain.DocumentCategory(req.Category),
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	stored := make([]IngestedDocumentResponse, len(docs))
	for i, doc := range docs {
		stored[i] = IngestedDocumentResponse{
			ID:       doc.ID,
			Title:    doc.Title,
			Category: string(doc.Category),
			Metadata: doc.Metadata,
		}
	}

	api.Success(w, http.StatusCreated, IngestResponse{Stored: stored, Count: len(stored)})
}
