package handlers

import (
	"encoding/json"
	"net/http"

	"folio/internal/core/domain"
	"folio/internal/core/services"
	"folio/internal/platform/logger"
	"folio/pkg/logging"
	"folio/pkg/middleware"

	"github.com/google/uuid"
)

// ChatHandler serves the visitor side of the widget. Every method acts on
// the caller's own conversation; the user id comes from the token, never
// from the request.
type ChatHandler struct {
	chatSvc services.IChatService
}

func NewChatHandler(chatSvc services.IChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// History returns the visitor's conversation and summary. Polled.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrNoToken)
		return
	}
	user, msgs, err := h.chatSvc.History(r.Context(), actor, actor.UserID)
	if err != nil {
		log.ErrorContext(r.Context(), "chat handler - history failed",
			logging.User(actor.UserID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        toUserView(user),
		"messages":    toMessageViews(msgs),
		"unreadCount": user.UnreadByVisitor,
	})
}

// Post appends a visitor message to their own conversation.
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrNoToken)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "chat handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	msg, err := h.chatSvc.PostMessage(r.Context(), actor, actor.UserID, req.Message)
	if err != nil {
		log.ErrorContext(r.Context(), "chat handler - post failed",
			logging.User(actor.UserID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageViews([]domain.Message{*msg})[0])
}

// MarkRead acknowledges every admin-authored message in the conversation.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrNoToken)
		return
	}
	flipped, err := h.chatSvc.MarkAllRead(r.Context(), actor, actor.UserID)
	if err != nil {
		log.ErrorContext(r.Context(), "chat handler - mark read failed",
			logging.User(actor.UserID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": flipped})
}

// Delete removes one message (?messageId=) or the whole conversation.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeError(w, domain.ErrNoToken)
		return
	}
	if raw := r.URL.Query().Get("messageId"); raw != "" {
		messageID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.ErrInvalidMessageID)
			return
		}
		if err := h.chatSvc.DeleteMessage(r.Context(), actor, actor.UserID, messageID); err != nil {
			log.ErrorContext(r.Context(), "chat handler - delete message failed",
				logging.User(actor.UserID.String()), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": 1})
		return
	}
	removed, err := h.chatSvc.DeleteAll(r.Context(), actor, actor.UserID)
	if err != nil {
		log.ErrorContext(r.Context(), "chat handler - delete all failed",
			logging.User(actor.UserID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}
