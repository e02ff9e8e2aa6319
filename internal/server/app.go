package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/tasks"
	"golang.org/x/oauth2"
)

const (
	DefaultPlaylistName        = "My Smart Podcast Queue"
	DefaultPlaylistDescription = "Auto-generated by the Smart Podcast Manager."
)

// TokenStore persists per-user OAuth2 tokens (see repositories.TokenRepository).
type TokenStore interface {
	Get(ctx context.Context, userID string) (*oauth2.Token, error)
	Save(ctx context.Context, userID string, token *oauth2.Token) error
	Delete(ctx context.Context, userID string) error
}

// Deps are the collaborators a [Server] is built from.
type Deps struct {
	Auth   services.Authorizer
	Tokens TokenStore
	States models.StateStore
	Jobs   models.JobStore
	Engine *tasks.UpdateEngine
	Logger *log.Logger
}

// Options tunes server behavior.
type Options struct {
	PlaylistName  string // name used by create-playlist-and-scan
	SecureCookies bool
}

// Server is the application context of the web service: it owns the session store,
// the update dispatcher and the HTTP server, and is built once at startup.
type Server struct {
	auth       services.Authorizer
	tokens     TokenStore
	states     models.StateStore
	dispatcher *tasks.Dispatcher
	sessions   *SessionStore
	logger     *log.Logger
	opts       Options
	router     *BasicRouter

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// NewServer wires handlers and middleware.
func NewServer(deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.PlaylistName == "" {
		opts.PlaylistName = DefaultPlaylistName
	}

	s := &Server{
		auth:     deps.Auth,
		tokens:   deps.Tokens,
		states:   deps.States,
		sessions: NewSessionStore(opts.SecureCookies),
		logger:   logger,
		opts:     opts,
	}
	s.dispatcher = tasks.NewDispatcher(deps.Engine, deps.Jobs, tasks.ClientResolverFunc(s.ClientFor), logger)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := NewBasicRouter()
	r.Use(Recoverer(s.logger), RequestLogger(s.logger))

	r.HandleFunc(http.MethodGet, "/{$}", s.handleIndex)
	r.HandleFunc(http.MethodGet, "/login", s.handleLogin)
	r.HandleFunc(http.MethodGet, "/callback", s.handleCallback)
	r.HandleFunc(http.MethodGet, "/logout", s.handleLogout)
	r.HandleFunc(http.MethodPost, "/start-update", s.requireUser(s.handleStartUpdate))
	r.HandleFunc(http.MethodPost, "/create-playlist-and-scan", s.requireUser(s.handleCreateAndScan))
	r.HandleFunc(http.MethodPost, "/set-playlist", s.requireUser(s.handleSetPlaylist))
	r.HandleFunc(http.MethodPost, "/settings", s.requireUser(s.handleSettings))
	r.HandleFunc(http.MethodGet, "/status", s.requireUser(s.handleStatus))

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Dispatcher exposes the update dispatcher.
func (s *Server) Dispatcher() *tasks.Dispatcher {
	return s.dispatcher
}

// ListenAndServe serves on addr until [Server.Shutdown] is called.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpServer
	s.mu.Unlock()

	s.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then waits for in-flight update runs.
//
// Runs still going when ctx ends are marked failed in the job registry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
	}
	if err := s.dispatcher.Wait(ctx); err != nil {
		s.dispatcher.Abandon(context.WithoutCancel(ctx), "server shut down before the update finished")
		return fmt.Errorf("update runs still in progress: %w", err)
	}
	return nil
}

// ClientFor returns a Spotify client for a user with a stored token.
//
// Refreshed tokens are written back to the token store.
func (s *Server) ClientFor(ctx context.Context, userID string) (services.PodcastService, error) {
	token, err := s.tokens.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	onRefresh := func(t *oauth2.Token) {
		if err := s.tokens.Save(context.WithoutCancel(ctx), userID, t); err != nil {
			s.logger.Warn("failed to persist refreshed token", "user", userID, "error", err)
		}
	}
	return s.auth.NewClient(ctx, token, onRefresh), nil
}
