package handlers

import (
	"encoding/json"
	"net/http"

	"folio/internal/core/domain"
	"folio/internal/core/services"
	"folio/internal/platform/logger"
	"folio/pkg/logging"
)

type ChatAuthHandler struct {
	authSvc services.IAuthService
}

func NewChatAuthHandler(authSvc services.IAuthService) *ChatAuthHandler {
	return &ChatAuthHandler{authSvc: authSvc}
}

// Authenticate handles both login and registration for the chat widget.
func (h *ChatAuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req struct {
		Mode     string `json:"mode"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "chat auth handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	result, err := h.authSvc.Authenticate(r.Context(), services.AuthRequest{
		Mode:     req.Mode,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		log.ErrorContext(r.Context(), "chat auth handler - authenticate failed",
			logging.Email(req.Email), logging.Err(err))
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"user":      toUserView(result.User),
		"isNewUser": result.IsNewUser,
	}
	if result.Token != "" {
		resp["token"] = result.Token
	}
	if result.Password != "" {
		// One-time plaintext for a brand-new registration.
		resp["password"] = result.Password
	}
	writeJSON(w, http.StatusOK, resp)
	log.InfoContext(r.Context(), "chat auth handler - authenticate success",
		logging.User(result.User.ID.String()))
}

// Verify resolves a session token passed as a query parameter. The widget
// calls it on page load to decide whether to show the chat as signed-in.
func (h *ChatAuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, domain.ErrNoToken)
		return
	}
	user, err := h.authSvc.Verify(r.Context(), token)
	if err != nil {
		log.InfoContext(r.Context(), "chat auth handler - verify failed", logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        toUserView(user),
		"unreadCount": user.UnreadByVisitor,
	})
}
