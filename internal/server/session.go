package server

import (
	"net/http"
	"sync"

	"github.com/desertthunder/podq/internal/shared"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "podq_session"

type session struct {
	userID     string
	oauthState string
}

// SessionStore keeps browser sessions in memory. Sessions do not survive a restart;
// the user's token and state do, so logging in again is enough.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	secure   bool
}

// NewSessionStore creates an empty store. secure marks cookies Secure for HTTPS deployments.
func NewSessionStore(secure bool) *SessionStore {
	return &SessionStore{sessions: make(map[string]*session), secure: secure}
}

func (s *SessionStore) lookup(r *http.Request) (string, *session) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", nil
	}
	return c.Value, s.sessions[c.Value]
}

// ensure returns the request's session, creating one and setting the cookie if needed.
func (s *SessionStore) ensure(w http.ResponseWriter, r *http.Request) *session {
	if _, sess := s.lookup(r); sess != nil {
		return sess
	}

	id := shared.GenerateID()
	sess := &session{}
	s.sessions[id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// UserID returns the logged-in user of the request.
func (s *SessionStore) UserID(r *http.Request) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sess := s.lookup(r)
	if sess == nil || sess.userID == "" {
		return "", false
	}
	return sess.userID, true
}

// SetUser records userID on the request's session.
func (s *SessionStore) SetUser(w http.ResponseWriter, r *http.Request, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(w, r).userID = userID
}

// BeginOAuth stores a fresh state token on the session and returns it.
func (s *SessionStore) BeginOAuth(w http.ResponseWriter, r *http.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := shared.GenerateID()
	s.ensure(w, r).oauthState = state
	return state
}

// TakeOAuthState returns and forgets the pending state token.
func (s *SessionStore) TakeOAuthState(r *http.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, sess := s.lookup(r)
	if sess == nil {
		return ""
	}
	state := sess.oauthState
	sess.oauthState = ""
	return state
}

// Clear destroys the request's session and expires the cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, _ := s.lookup(r); id != "" {
		delete(s.sessions, id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
