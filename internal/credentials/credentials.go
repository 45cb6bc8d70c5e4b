// Package credentials supplies the bearer token attached to remote calls.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/tripsync/internal/domain"
)

// Provider returns the current bearer token or domain.ErrNoCredential.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Static serves a fixed token. An empty token means signed out.
type Static struct {
	token string
	now   func() time.Time
}

// NewStatic creates a provider for a fixed token.
func NewStatic(token string) *Static {
	return &Static{token: strings.TrimSpace(token), now: time.Now}
}

func (s *Static) Token(_ context.Context) (string, error) {
	return validate(s.token, s.now())
}

// File reads the token from disk on every call so that an external
// sign-in flow can rotate it without restarting the process.
type File struct {
	path string
	now  func() time.Time
}

// NewFile creates a provider backed by a token file.
func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

func (f *File) Token(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrNoCredential
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return validate(strings.TrimSpace(string(data)), f.now())
}

// Present reports whether p currently holds a usable credential.
func Present(ctx context.Context, p Provider) bool {
	if p == nil {
		return false
	}
	_, err := p.Token(ctx)
	return err == nil
}

// Subject returns the "sub" claim of a JWT token, or "" for opaque tokens.
// The signature is not verified: the backend does that, the client only
// needs a stable per-user scope for its local storage.
func Subject(token string) string {
	claims, ok := parseClaims(token)
	if !ok {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

func validate(token string, now time.Time) (string, error) {
	if token == "" {
		return "", domain.ErrNoCredential
	}
	claims, ok := parseClaims(token)
	if !ok {
		// Opaque token: nothing to check locally.
		return token, nil
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && !exp.After(now) {
		return "", domain.ErrNoCredential
	}
	return token, nil
}

func parseClaims(token string) (jwt.MapClaims, bool) {
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
