package handlers

import (
	"encoding/json"
	"net/http"

	"folio/internal/core/services"
	"folio/internal/platform/logger"
	"folio/pkg/logging"
)

type ContactHandler struct {
	contactSvc services.IContactService
}

func NewContactHandler(contactSvc services.IContactService) *ContactHandler {
	return &ContactHandler{contactSvc: contactSvc}
}

// Submit stores a contact-form message and relays it to the operator.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.ErrorContext(r.Context(), "contact handler - bad request")
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	email, err := h.contactSvc.Submit(r.Context(), services.ContactRequest{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Body:    req.Message,
	})
	if err != nil {
		log.ErrorContext(r.Context(), "contact handler - submit failed",
			logging.Email(req.Email), logging.Err(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": email.ID.String()})
	log.InfoContext(r.Context(), "contact handler - submit success",
		logging.User(email.UserID.String()))
}
