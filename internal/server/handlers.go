package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/services"
	"github.com/desertthunder/podq/internal/shared"
)

type userKey struct{}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrMissingPlaylist), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrUnknownUser), errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, shared.ErrAPIRequest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

// requireUser rejects requests without a logged-in session.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.sessions.UserID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	}
}

func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

type indexResponse struct {
	Authenticated bool              `json:"authenticated"`
	User          *models.User      `json:"user,omitempty"`
	State         *models.UserState `json:"state,omitempty"`
	IsRunning     bool              `json:"is_running"`
}

// handleIndex summarizes the session: the user, their state and whether a run is registered.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.sessions.UserID(r)
	if !ok {
		writeJSON(w, http.StatusOK, indexResponse{})
		return
	}

	client, err := s.ClientFor(r.Context(), userID)
	var user *models.User
	if err == nil {
		user, err = client.CurrentUser(r.Context())
	}
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			s.sessions.Clear(w, r)
		}
		s.fail(w, r, err)
		return
	}

	state, err := s.states.Load(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	running, err := s.dispatcher.Running(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, indexResponse{Authenticated: true, User: user, State: state, IsRunning: running})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := s.sessions.BeginOAuth(w, r)
	http.Redirect(w, r, s.auth.GetAuthURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expected := s.sessions.TakeOAuthState(r)
	if expected == "" || q.Get("state") != expected {
		writeError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "authorization failed: "+q.Get("error"))
		return
	}

	token, err := s.auth.Exchange(r.Context(), code)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.auth.NewClient(r.Context(), token, nil).CurrentUser(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.tokens.Save(r.Context(), user.ID, token); err != nil {
		s.fail(w, r, err)
		return
	}
	s.sessions.SetUser(w, r, user.ID)
	s.logger.Info("user logged in", "user", user.ID)

	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout forgets the user's token; their scan state is kept.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, ok := s.sessions.UserID(r); ok {
		if err := s.tokens.Delete(r.Context(), userID); err != nil {
			s.logger.Warn("failed to delete token", "user", userID, "error", err)
		}
	}
	s.sessions.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) startUpdate(w http.ResponseWriter, r *http.Request, userID string, extra map[string]any) {
	state, err := s.states.Load(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	started, err := s.dispatcher.Start(r.Context(), userID, state.PlaylistID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	body := map[string]any{"started": started}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleStartUpdate(w http.ResponseWriter, r *http.Request) {
	s.startUpdate(w, r, userFrom(r), nil)
}

// handleCreateAndScan creates a private queue playlist, stores it and starts a run.
func (s *Server) handleCreateAndScan(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	running, err := s.dispatcher.Running(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if running {
		writeJSON(w, http.StatusAccepted, map[string]any{"started": false})
		return
	}

	client, err := s.ClientFor(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pl, err := CreateQueuePlaylist(r.Context(), client, s.opts.PlaylistName)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if _, err := s.dispatcher.UpdateState(r.Context(), userID, func(state *models.UserState) error {
		state.SetPlaylist(pl.ID)
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}

	s.startUpdate(w, r, userID, map[string]any{"playlist_id": pl.ID})
}

// CreateQueuePlaylist creates the private playlist podq writes to, owned by the client's user.
func CreateQueuePlaylist(ctx context.Context, client services.PodcastService, name string) (*models.Playlist, error) {
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultPlaylistName
	}
	return client.CreatePlaylist(ctx, user.ID, name, false, DefaultPlaylistDescription)
}

func (s *Server) handleSetPlaylist(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	id, ok := services.ExtractItemID(r.FormValue("playlist_input"))
	if !ok {
		writeError(w, http.StatusBadRequest, "could not find a playlist id in input")
		return
	}

	state, err := s.dispatcher.UpdateState(r.Context(), userID, func(state *models.UserState) error {
		state.SetPlaylist(id)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"playlist_id": id, "current_minute": state.CurrentMinute})
}

// ParseMinDuration reads a minute threshold, clamping unparseable or negative input to 0.
func ParseMinDuration(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	minDuration := ParseMinDuration(r.FormValue("min_duration"))
	state, err := s.dispatcher.UpdateState(r.Context(), userID, func(state *models.UserState) error {
		state.MinDuration = minDuration
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"min_duration": state.MinDuration})
}

// handleStatus reports the user's job; reading a finished job clears it.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.dispatcher.Status(r.Context(), userFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if job == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}
