package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"folio/internal/app/server/handlers"
	"folio/internal/config"
	"folio/internal/core/services"
	"folio/pkg/middleware"
)

type Server struct {
	mux            *http.ServeMux
	log            *slog.Logger
	name           string
	addr           string
	authHandler    *handlers.ChatAuthHandler
	chatHandler    *handlers.ChatHandler
	adminHandler   *handlers.AdminHandler
	contactHandler *handlers.ContactHandler
	tokenSvc       *services.TokenService
	limiter        *middleware.LimiterStore
}

func NewServer(
	cfg *config.ServiceConfig,
	log *slog.Logger,
	tokenSvc *services.TokenService,
	authSvc services.IAuthService,
	chatSvc services.IChatService,
	contactSvc services.IContactService,
	limiter *middleware.LimiterStore,
) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		log:            log,
		name:           cfg.Name,
		addr:           cfg.Addr,
		authHandler:    handlers.NewChatAuthHandler(authSvc),
		chatHandler:    handlers.NewChatHandler(chatSvc),
		adminHandler:   handlers.NewAdminHandler(chatSvc, contactSvc),
		contactHandler: handlers.NewContactHandler(contactSvc),
		tokenSvc:       tokenSvc,
		limiter:        limiter,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// 1. Initialize middleware chains
	auth := middleware.AuthMiddleware(s.tokenSvc)
	limited := middleware.RateLimit(s.limiter)
	admin := func(h http.HandlerFunc) http.Handler {
		return auth(middleware.RequireAdmin(h))
	}

	// 2. Public routes (rate-limited where they do work for strangers)
	s.mux.Handle("POST /api/chat/auth", limited(http.HandlerFunc(s.authHandler.Authenticate)))
	s.mux.HandleFunc("GET /api/chat/auth", s.authHandler.Verify)
	s.mux.Handle("POST /api/contact", limited(http.HandlerFunc(s.contactHandler.Submit)))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 3. Visitor routes: the token decides whose conversation this is.
	s.mux.Handle("GET /api/chat", auth(http.HandlerFunc(s.chatHandler.History)))
	s.mux.Handle("POST /api/chat", auth(limited(http.HandlerFunc(s.chatHandler.Post))))
	s.mux.Handle("PATCH /api/chat", auth(http.HandlerFunc(s.chatHandler.MarkRead)))
	s.mux.Handle("DELETE /api/chat", auth(http.HandlerFunc(s.chatHandler.Delete)))

	// 4. Admin console routes, gated on the role claim.
	s.mux.Handle("GET /api/admin/chats", admin(s.adminHandler.Chats))
	s.mux.Handle("POST /api/admin/chats", admin(s.adminHandler.Post))
	s.mux.Handle("PATCH /api/admin/chats", admin(s.adminHandler.ReadState))
	s.mux.Handle("DELETE /api/admin/chats", admin(s.adminHandler.DeleteChats))
	s.mux.Handle("DELETE /api/admin/users", admin(s.adminHandler.DeleteUser))
	s.mux.Handle("GET /api/admin/emails", admin(s.adminHandler.Emails))
	s.mux.Handle("PATCH /api/admin/emails", admin(s.adminHandler.MarkEmailsRead))
}

// Handler returns the mux wrapped in the request-scoped middleware.
// Exposed so tests can drive the full surface through httptest.
func (s *Server) Handler() http.Handler {
	return middleware.RequestLogger(s.log)(middleware.TracerMiddleware(s.name)(s.mux))
}

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - start - listening", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
