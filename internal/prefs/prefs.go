// Package prefs keeps each client's preferred narrator voice in a signed
// session cookie.
package prefs

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/tahcohcat/monument-narrator/internal/logger"
)

const (
	sessionName = "narrator-prefs"
	voiceKey    = "voice_id"

	// one year
	maxAge = 365 * 24 * 60 * 60
)

var ErrNoSecret = errors.New("session secret cannot be empty")

type Store struct {
	sessions sessions.Store
	logger   *logger.Log
}

// NewStore signs preference cookies with secret. secure marks cookies as
// HTTPS-only.
func NewStore(secret string, secure bool) (*Store, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}

	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Store{
		sessions: cs,
		logger:   logger.New().WithField("component", "prefs"),
	}, nil
}

// Voice returns the stored voice identifier, or "" when none is set or the
// cookie cannot be decoded.
func (s *Store) Voice(r *http.Request) string {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		s.logger.WithError(err).Debug("ignoring unreadable preference cookie")
		return ""
	}

	id, _ := session.Values[voiceKey].(string)
	return id
}

func (s *Store) SetVoice(w http.ResponseWriter, r *http.Request, id string) error {
	// A stale or tampered cookie still yields a fresh session to write into.
	session, _ := s.sessions.Get(r, sessionName)
	session.Values[voiceKey] = id
	return session.Save(r, w)
}

func (s *Store) ClearVoice(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.sessions.Get(r, sessionName)
	delete(session.Values, voiceKey)
	return session.Save(r, w)
}
