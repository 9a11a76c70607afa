// Package auth implements self-contained email/password authentication for
// the networked API: bcrypt-hashed passwords and opaque bearer tokens, both
// kept in the game store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"fortuna/internal/store"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
)

type Session struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type Authenticator struct {
	store store.Store
}

func New(st store.Store) *Authenticator {
	return &Authenticator{store: st}
}

func (a *Authenticator) Signup(ctx context.Context, email, username, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return Session{}, fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return Session{}, ErrWeakPassword
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(ctx, email, username, hash)
	if err != nil {
		return Session{}, err
	}
	return a.sessionFor(ctx, user)
}

func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := a.store.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn a comparison anyway so a missing account costs the same as a
		// wrong password.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return Session{}, ErrBadCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return Session{}, ErrBadCredentials
	}
	return a.sessionFor(ctx, user)
}

// Verify resolves a bearer token to its user.
func (a *Authenticator) Verify(ctx context.Context, token string) (store.User, error) {
	if strings.TrimSpace(token) == "" {
		return store.User{}, store.ErrInvalidToken
	}
	return a.store.UserForToken(ctx, token)
}

func (a *Authenticator) sessionFor(ctx context.Context, user store.User) (Session, error) {
	token, err := a.store.CreateToken(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, UserID: user.ID, Email: user.Email, Username: user.Username}, nil
}
