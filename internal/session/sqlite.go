package session

import (
	"context"

	"github.com/franckalain/mealdose/internal/models"
)

type sqliteStore struct {
	db CredentialDB
}

// NewSQLite builds a store backed by the local SQLite database. The
// database handle is owned by the caller and is not closed by the store.
func NewSQLite(db CredentialDB) Store {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Token(ctx context.Context) (string, error) {
	cred, err := s.db.GetCredential(ctx)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (s *sqliteStore) UserID(ctx context.Context) (string, error) {
	cred, err := s.db.GetCredential(ctx)
	if err != nil {
		return "", err
	}
	return cred.UserID, nil
}

func (s *sqliteStore) Set(ctx context.Context, cred models.Credential) error {
	return s.db.SaveCredential(ctx, cred)
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	return s.db.ClearCredential(ctx)
}

func (s *sqliteStore) Close() error {
	return nil
}
