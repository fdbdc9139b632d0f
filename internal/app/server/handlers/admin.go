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

// AdminHandler serves the back-office console: the conversation roster,
// any visitor's history, admin replies, read-state tools, deletion, and
// the contact inbox. Every route sits behind RequireAdmin.
type AdminHandler struct {
	chatSvc    services.IChatService
	contactSvc services.IContactService
}

func NewAdminHandler(chatSvc services.IChatService, contactSvc services.IContactService) *AdminHandler {
	return &AdminHandler{chatSvc: chatSvc, contactSvc: contactSvc}
}

func queryUserID(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return uuid.Nil, domain.ErrInvalidUserID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidUserID
	}
	return id, nil
}

// Chats returns the roster, or one conversation when ?userId= is given.
func (h *AdminHandler) Chats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.ErrInvalidUserID)
			return
		}
		user, msgs, err := h.chatSvc.History(r.Context(), actor, userID)
		if err != nil {
			log.ErrorContext(r.Context(), "admin handler - history failed",
				logging.User(raw), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":        toUserView(user),
			"messages":    toMessageViews(msgs),
			"unreadCount": user.UnreadByAdmin,
		})
		return
	}
	rows, err := h.chatSvc.ListConversations(r.Context(), actor)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - roster failed", logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": rows})
}

// Post appends an admin reply to a visitor's conversation.
func (h *AdminHandler) Post(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "admin handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, domain.ErrInvalidUserID)
		return
	}
	msg, err := h.chatSvc.PostMessage(r.Context(), actor, userID, req.Message)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - post failed",
			logging.User(req.UserID), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageViews([]domain.Message{*msg})[0])
}

// ReadState marks a conversation read, or restores an approximate unread
// count when the body carries {"unread":true}.
func (h *AdminHandler) ReadState(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	var req struct {
		UserID              string `json:"userId"`
		Unread              bool   `json:"unread"`
		OriginalUnreadCount int    `json:"originalUnreadCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "admin handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, domain.ErrInvalidUserID)
		return
	}
	if req.Unread {
		target, err := h.chatSvc.MarkUnread(r.Context(), actor, userID, req.OriginalUnreadCount)
		if err != nil {
			log.ErrorContext(r.Context(), "admin handler - mark unread failed",
				logging.User(req.UserID), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"unreadCount": target})
		return
	}
	flipped, err := h.chatSvc.MarkAllRead(r.Context(), actor, userID)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - mark read failed",
			logging.User(req.UserID), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": flipped})
}

// DeleteChats removes one message (?messageId=) or a whole conversation.
func (h *AdminHandler) DeleteChats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("messageId"); raw != "" {
		messageID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, domain.ErrInvalidMessageID)
			return
		}
		if err := h.chatSvc.DeleteMessage(r.Context(), actor, userID, messageID); err != nil {
			log.ErrorContext(r.Context(), "admin handler - delete message failed",
				logging.User(userID.String()), logging.Err(err))
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": 1})
		return
	}
	removed, err := h.chatSvc.DeleteAll(r.Context(), actor, userID)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - delete all failed",
			logging.User(userID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": removed})
}

// DeleteUser removes a user record; messages and emails cascade.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	userID, err := queryUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.chatSvc.DeleteUser(r.Context(), actor, userID); err != nil {
		log.ErrorContext(r.Context(), "admin handler - delete user failed",
			logging.User(userID.String()), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// Emails returns the contact-form inbox roster.
func (h *AdminHandler) Emails(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	rows, err := h.contactSvc.Inbox(r.Context(), actor)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - inbox failed", logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inbox": rows})
}

// MarkEmailsRead flips every unread email for one user.
func (h *AdminHandler) MarkEmailsRead(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	actor, _ := middleware.ActorFromContext(r.Context())
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "admin handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, domain.ErrInvalidUserID)
		return
	}
	flipped, err := h.contactSvc.MarkEmailsRead(r.Context(), actor, userID)
	if err != nil {
		log.ErrorContext(r.Context(), "admin handler - mark emails read failed",
			logging.User(req.UserID), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": flipped})
}
