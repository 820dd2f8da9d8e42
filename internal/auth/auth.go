// Package auth is the identity boundary in front of the admin operations.
// It checks the operator's password and issues short-lived session tokens;
// the queue engine itself never sees who is calling.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
)

type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Session is what the HTTP layer keeps for an authenticated caller.
type Session struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Options struct {
	Secret       []byte
	Username     string
	PasswordHash string
	TTL          time.Duration
	Now          func() time.Time
}

type Authenticator struct {
	secret       []byte
	username     string
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func New(options Options) (*Authenticator, error) {
	if len(options.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	ttl := options.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		secret:       options.Secret,
		username:     options.Username,
		passwordHash: []byte(options.PasswordHash),
		ttl:          ttl,
		now:          now,
	}, nil
}

// Login checks the admin credentials and returns a signed session token.
func (a *Authenticator) Login(username, password string) (string, Session, error) {
	if a.username == "" || len(a.passwordHash) == 0 {
		return "", Session{}, ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(username), a.username) {
		return "", Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", Session{}, ErrInvalidCredentials
	}
	return a.Issue(a.username, true)
}

func (a *Authenticator) Issue(username string, admin bool) (string, Session, error) {
	now := a.now()
	session := Session{
		SessionID: uuid.NewString(),
		Username:  username,
		IsAdmin:   admin,
		ExpiresAt: now.Add(a.ttl).UTC().Truncate(time.Second),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.SessionID,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", Session{}, err
	}
	return signed, session, nil
}

func (a *Authenticator) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidSession
	}
	session := Session{
		SessionID: claims.ID,
		Username:  claims.Username,
		IsAdmin:   claims.Admin,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
