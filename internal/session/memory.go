package session

import (
	"context"
	"sync"

	"github.com/franckalain/mealdose/internal/models"
)

type memoryStore struct {
	mu   sync.RWMutex
	cred models.Credential
}

// NewMemory builds a store that forgets the credential when the process exits.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token, nil
}

func (s *memoryStore) UserID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.UserID, nil
}

func (s *memoryStore) Set(_ context.Context, cred models.Credential) error {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.cred = models.Credential{}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
