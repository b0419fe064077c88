// Package auth implements the admin session layer: a single configured
// credential pair and in-memory bearer sessions carried in a cookie.
package auth

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
)

// SessionCookie is the cookie name carrying the session token.
const SessionCookie = "staticnest_session"

// Manager validates credentials and tracks live sessions.
type Manager struct {
	username string
	password string
	ttl      time.Duration
	sessions sync.Map // token -> expiry time.Time
	log      *zap.Logger
}

func NewManager(username, password string, ttl time.Duration, log *zap.Logger) *Manager {
	return &Manager{
		username: username,
		password: password,
		ttl:      ttl,
		log:      log,
	}
}

// Login checks the credentials and issues a session token.
func (m *Manager) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	if !userOK || !passOK {
		return "", fmt.Errorf("%w: invalid credentials", apperr.ErrValidation)
	}

	token := uuid.New().String()
	m.sessions.Store(token, time.Now().Add(m.ttl))
	m.log.Info("admin login", zap.String("username", username))
	return token, nil
}

// Validate reports whether the token belongs to a live session. Expired
// sessions are pruned on sight.
func (m *Manager) Validate(token string) bool {
	value, ok := m.sessions.Load(token)
	if !ok {
		return false
	}
	if time.Now().After(value.(time.Time)) {
		m.sessions.Delete(token)
		return false
	}
	return true
}

// Logout invalidates a session token. Unknown tokens are ignored.
func (m *Manager) Logout(token string) {
	m.sessions.Delete(token)
}
