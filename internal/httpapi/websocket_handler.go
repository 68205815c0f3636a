package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"travelmate/internal/logging"
	"travelmate/internal/middleware"
	"travelmate/internal/models"
	"travelmate/internal/session"
	"travelmate/internal/utils"
)

// handleChatWebSocket serves a chat session over a websocket. The greeting is
// sent on connect; each client frame gets exactly one server frame back.
func (d *Dependencies) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "Session not initialized")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept already wrote the error response
		logging.Debugf("websocket: accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, models.Frame{Type: models.FrameGreeting, Content: d.Chat.Greeting()}); err != nil {
		return
	}

	for {
		var in models.Frame
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				logging.Debugf("websocket: session=%s read: %v", sessionID, err)
			}
			return
		}

		out := d.handleFrame(ctx, sessionID, in)
		if err := wsjson.Write(ctx, conn, out); err != nil {
			logging.Debugf("websocket: session=%s write: %v", sessionID, err)
			return
		}
	}
}

func (d *Dependencies) handleFrame(ctx context.Context, sessionID string, in models.Frame) models.Frame {
	switch in.Type {
	case models.FrameMessage:
		res, err := d.Chat.Send(ctx, sessionID, in.Content)
		if errors.Is(err, session.ErrEmptyMessage) {
			return models.Frame{Type: models.FrameError, Content: "Message must not be empty"}
		}
		if err != nil {
			return models.Frame{Type: models.FrameError, Content: "Failed to process message"}
		}
		return models.Frame{Type: models.FrameReply, Content: res.Text, Source: res.Source}

	case models.FrameClear:
		return models.Frame{Type: models.FrameCleared, Content: d.Chat.Clear(sessionID)}

	default:
		return models.Frame{Type: models.FrameError, Content: "Unknown frame type"}
	}
}
