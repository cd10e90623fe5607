package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kinesica-health/kinesica/internal/api"
	"github.com/kinesica-health/kinesica/internal/domain"
	"github.com/kinesica-health/kinesica/internal/service"
)

// AssistantService is the conversation surface consumed by the HTTP layer.
type AssistantService interface {
	Answer(ctx context.Context, input service.AnswerInput) (*service.AnswerOutput, error)
	History(ctx context.Context, assistantType domain.AssistantType, userID string, sinceDays, limit int) ([]domain.ConversationTurn, error)
	DeleteHistory(ctx context.Context, assistantType domain.AssistantType, userID string) error
}

type AssistantHandler struct {
	svc AssistantService
}

func NewAssistantHandler(svc AssistantService) *AssistantHandler {
	return &AssistantHandler{svc: svc}
}

type AnswerRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type AnswerResponse struct {
	Message    string                  `json:"message"`
	Sources    []service.SourceSummary `json:"sources"`
	Confidence float64                 `json:"confidence"`
	Metadata   map[string]any          `json:"metadata"`
}

func (h *AssistantHandler) Answer(w http.ResponseWriter, r *http.Request) {
	assistantType, err := domain.ParseAssistantType(chi.URLParam(r, "type"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	output, err := h.svc.Answer(r.Context(), service.AnswerInput{
		AssistantType: assistantType,
		UserID:        req.UserID,
		Message:       req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AnswerResponse{
		Message:    output.Message,
		Sources:    output.Sources,
		Confidence: output.Confidence,
		Metadata:   output.Metadata,
	})
}

type TurnResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	AssistantType string         `json:"assistant_type"`
	Turns         []TurnResponse `json:"turns"`
}

func (h *AssistantHandler) History(w http.ResponseWriter, r *http.Request) {
	assistantType, err := domain.ParseAssistantType(chi.URLParam(r, "type"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sinceDays := queryInt(r, "since_days", 0)
	limit := queryInt(r, "limit", 0)

	turns, err := h.svc.History(r.Context(), assistantType, userID, sinceDays, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]TurnResponse, len(turns))
	for i, turn := range turns {
		responses[i] = TurnResponse{
			ID:        turn.ID,
			UserID:    turn.UserID,
			Message:   turn.Message,
			Response:  turn.Response,
			CreatedAt: turn.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		AssistantType: string(assistantType),
		Turns:         responses,
	})
}

func (h *AssistantHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	assistantType, err := domain.ParseAssistantType(chi.URLParam(r, "type"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.svc.DeleteHistory(r.Context(), assistantType, userID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
