package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"travelmate/internal/middleware"
	"travelmate/internal/models"
	"travelmate/internal/session"
	"travelmate/internal/utils"
)

// chatStateResponse is returned by GET /api/chat
type chatStateResponse struct {
	SessionID string        `json:"session_id"`
	Greeting  string        `json:"greeting"`
	Turns     []models.Turn `json:"turns"`
}

type chatMessageRequest struct {
	Message string `json:"message"`
}

type chatReplyResponse struct {
	Reply  string `json:"reply"`
	Source string `json:"source,omitempty"`
}

// maxRequestBody caps JSON request bodies on every endpoint
const maxRequestBody = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// handleChat routes /api/chat by method
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "Session not initialized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		utils.RespondWithJSON(w, http.StatusOK, chatStateResponse{
			SessionID: sessionID,
			Greeting:  d.Chat.Greeting(),
			Turns:     d.Chat.History(sessionID),
		})

	case http.MethodPost:
		var req chatMessageRequest
		if err := decodeBody(w, r, &req); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}

		res, err := d.Chat.Send(r.Context(), sessionID, req.Message)
		if errors.Is(err, session.ErrEmptyMessage) {
			utils.RespondWithError(w, http.StatusBadRequest, "Message must not be empty")
			return
		}
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to process message")
			return
		}

		utils.RespondWithJSON(w, http.StatusOK, chatReplyResponse{Reply: res.Text, Source: res.Source})

	case http.MethodDelete:
		utils.RespondWithJSON(w, http.StatusOK, chatReplyResponse{Reply: d.Chat.Clear(sessionID)})

	default:
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
