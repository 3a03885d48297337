package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

type failingStore struct{ Store }

func (failingStore) Token(context.Context) (string, error) { return "", errors.New("disk gone") }

func TestGateCheckCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	gate := NewGate(store, logging.Discard())

	if gate.CheckCredential(ctx) {
		t.Fatal("expected false without credential")
	}

	store.Set(ctx, models.Credential{Token: "   ", UserID: "u"})
	if gate.CheckCredential(ctx) {
		t.Fatal("expected false for whitespace token")
	}

	store.Set(ctx, models.Credential{Token: "opaque", UserID: "u"})
	if !gate.CheckCredential(ctx) {
		t.Fatal("expected true with token")
	}

	cred, ok := gate.Credential(ctx)
	if !ok || cred.Token != "opaque" || cred.UserID != "u" {
		t.Fatalf("unexpected credential %+v, %v", cred, ok)
	}

	if NewGate(failingStore{NewMemory()}, logging.Discard()).CheckCredential(ctx) {
		t.Fatal("store failure must read as no credential")
	}
}

func TestGateDescribeIdentity(t *testing.T) {
	ctx := context.Background()
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "patient-42",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	tests := []struct {
		name     string
		cred     *models.Credential
		store    Store
		contains []string
		equals   string
	}{
		{name: "no credential", equals: NoIdentity},
		{name: "store failure", store: failingStore{NewMemory()}, equals: NoIdentity},
		{name: "opaque token", cred: &models.Credential{Token: "opaque", UserID: "u-7"}, equals: "user u-7"},
		{name: "opaque token without user", cred: &models.Credential{Token: "opaque"}, equals: "user <unknown>"},
		{
			name:     "jwt token",
			cred:     &models.Credential{Token: signed, UserID: "u-7"},
			contains: []string{"user u-7", "subject=patient-42", "expires=2030-01-02T03:04:05Z"},
		},
		{
			name:     "jwt token without user id",
			cred:     &models.Credential{Token: signed},
			contains: []string{"user patient-42"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store
			if store == nil {
				store = NewMemory()
			}
			if tt.cred != nil {
				store.Set(ctx, *tt.cred)
			}
			got := NewGate(store, logging.Discard()).DescribeIdentity(ctx)
			if tt.equals != "" && got != tt.equals {
				t.Fatalf("DescribeIdentity() = %q, want %q", got, tt.equals)
			}
			for _, substr := range tt.contains {
				if !strings.Contains(got, substr) {
					t.Errorf("DescribeIdentity() = %q, missing %q", got, substr)
				}
			}
		})
	}
}
