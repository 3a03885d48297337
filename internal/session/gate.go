package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

// NoIdentity is reported by DescribeIdentity when nobody is signed in.
const NoIdentity = "no identity available"

// Gate decides whether authenticated calls may proceed.
type Gate struct {
	store  Store
	logger *slog.Logger
}

func NewGate(store Store, logger *slog.Logger) *Gate {
	return &Gate{store: store, logger: logging.OrDefault(logger).With("component", "session")}
}

// Credential returns the stored credential and whether it is usable. Store
// failures count as "no credential".
func (g *Gate) Credential(ctx context.Context) (models.Credential, bool) {
	token, err := g.store.Token(ctx)
	if err != nil {
		g.logger.Warn("reading session token failed", "error", err)
		return models.Credential{}, false
	}
	cred := models.Credential{Token: token}
	if cred.Empty() {
		return models.Credential{}, false
	}
	if cred.UserID, err = g.store.UserID(ctx); err != nil {
		g.logger.Debug("reading session user id failed", "error", err)
	}
	return cred, true
}

// CheckCredential reports whether a non-empty credential is stored.
func (g *Gate) CheckCredential(ctx context.Context) bool {
	_, ok := g.Credential(ctx)
	return ok
}

// DescribeIdentity returns a human readable summary of the current session
// for diagnostics.
func (g *Gate) DescribeIdentity(ctx context.Context) string {
	cred, ok := g.Credential(ctx)
	if !ok {
		return NoIdentity
	}

	var subject, expires string
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cred.Token, claims); err == nil {
		subject, _ = claims.GetSubject()
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expires = exp.UTC().Format(time.RFC3339)
		}
	}

	user := cred.UserID
	if user == "" {
		user = subject
	}
	if user == "" {
		user = "<unknown>"
	}

	parts := []string{fmt.Sprintf("user %s", user)}
	if subject != "" {
		parts = append(parts, "subject="+subject)
	}
	if expires != "" {
		parts = append(parts, "expires="+expires)
	}
	return strings.Join(parts, " ")
}
