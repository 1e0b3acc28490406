// Package server exposes conversations, streaming chat and the Google
// Calendar connection over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agenda/internal/agent"
	"agenda/internal/chat"
	"agenda/internal/logger"
	"agenda/internal/store"
)

// ChatService answers conversations.
type ChatService interface {
	Post(ctx context.Context, actor, conversationID, content string) (*store.Message, error)
	Reply(ctx context.Context, actor, conversationID string, sink agent.Sink) (*chat.Reply, error)
}

// ConversationStore reads and manages conversations.
type ConversationStore interface {
	CreateConversation(ctx context.Context, owner, title string) (*store.Conversation, error)
	ListConversations(ctx context.Context, owner string) ([]store.Conversation, error)
	GetConversation(ctx context.Context, owner, id string) (*store.Conversation, error)
	DeleteConversation(ctx context.Context, owner, id string) error
	History(ctx context.Context, conversationID string) ([]store.Message, error)
}

// CalendarAuth manages a user's Google Calendar connection.
type CalendarAuth interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, userID, code string) error
	Connected(ctx context.Context, userID string) (bool, error)
	Disconnect(ctx context.Context, userID string) error
}

// RateLimiter admits chat requests per user.
type RateLimiter interface {
	Allow(actor string) (bool, time.Duration)
}

type Deps struct {
	Chat          ChatService
	Conversations ConversationStore
	// Calendar may be nil when OAuth is not configured.
	Calendar CalendarAuth
	Limiter  RateLimiter
	Auth     Authenticator
	Logger   *logger.Logger
	// PublicURL prefixes redirects after the OAuth callback.
	PublicURL    string
	SecureCookie bool
}

type Server struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Server{deps: deps, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("POST /api/chat", s.requireUser(s.handleChat))

	mux.Handle("GET /api/conversations", s.requireUser(s.handleListConversations))
	mux.Handle("POST /api/conversations", s.requireUser(s.handleCreateConversation))
	mux.Handle("GET /api/conversations/{id}", s.requireUser(s.handleGetConversation))
	mux.Handle("DELETE /api/conversations/{id}", s.requireUser(s.handleDeleteConversation))

	mux.Handle("GET /api/messages", s.requireUser(s.handleListMessages))
	mux.Handle("POST /api/messages", s.requireUser(s.handlePostMessage))

	mux.Handle("GET /api/oauth/google/authorize", s.requireUser(s.handleOAuthAuthorize))
	mux.HandleFunc("GET /api/oauth/google/callback", s.handleOAuthCallback)
	mux.Handle("GET /api/oauth/google/status", s.requireUser(s.handleOAuthStatus))
	mux.Handle("DELETE /api/oauth/google/disconnect", s.requireUser(s.handleOAuthDisconnect))

	return s.logRequests(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
