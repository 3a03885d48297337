package session

import (
	"context"

	"github.com/franckalain/mealdose/internal/models"
)

// Store persists the signed-in user's credential outside the process.
// A missing credential is reported as empty strings, not as an error.
type Store interface {
	Token(ctx context.Context) (string, error)
	UserID(ctx context.Context) (string, error)
	Set(ctx context.Context, cred models.Credential) error
	Clear(ctx context.Context) error
	Close() error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// CredentialDB is the slice of the database the sqlite driver needs.
type CredentialDB interface {
	SaveCredential(ctx context.Context, cred models.Credential) error
	GetCredential(ctx context.Context) (models.Credential, error)
	ClearCredential(ctx context.Context) error
}
