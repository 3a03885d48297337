package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

type staticCreds struct {
	cred models.Credential
}

func (s staticCreds) Credential(context.Context) (models.Credential, bool) {
	return s.cred, !s.cred.Empty()
}

var signedIn = staticCreds{cred: models.Credential{Token: "tok-123", UserID: "u1"}}

func testPayload() *models.ImagePayload {
	return &models.ImagePayload{Data: []byte("jpeg-bytes"), MediaType: "image/png", Filename: "lunch.png"}
}

func newTestClient(t *testing.T, url string, creds Credentials) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     url,
		AnalyzePath: "/api/v1/meals/analyze",
		HistoryPath: "/api/v1/meals/history",
		Timeout:     2 * time.Second,
	}, creds, logging.Discard())
}

func TestSubmitWithoutCredentialSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, staticCreds{})
	_, err := c.Submit(context.Background(), testPayload())
	if !apperrors.IsKind(err, apperrors.KindNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if _, err := c.History(context.Background()); !apperrors.IsKind(err, apperrors.KindNotAuthenticated) {
		t.Fatalf("expected not authenticated for history, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestSubmitSendsMultipartImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/meals/analyze" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		file, header, err := r.FormFile(ImageField)
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" || header.Filename != "lunch.png" {
			t.Errorf("unexpected part %q (%s)", data, header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part Content-Type = %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"meal_id":9,"name":"Hamburger","date":"2026-03-01","total_carbs":61.5,"dose":5,"glycemia":140,
			"ingredients":[{"id":1,"name":"hamburger bun","carbs_per_100g":49,"grams":80,"carbs":39.2}]}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL+"/", signedIn).Submit(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.MealID != 9 || result.DisplayName() != "Hamburger" || result.Dose != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Ingredients) != 1 || result.Ingredients[0].Grams == nil || *result.Ingredients[0].Grams != 80 {
		t.Fatalf("unexpected ingredients: %+v", result.Ingredients)
	}
}

func TestSubmitNullIngredientsBecomeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"meal_id":1,"name":null,"total_carbs":0,"dose":0,"glycemia":0,"ingredients":null}`)
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL, signedIn).Submit(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if result.Ingredients == nil || len(result.Ingredients) != 0 {
		t.Fatalf("expected empty ingredient list, got %#v", result.Ingredients)
	}
}

func TestSubmitStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   apperrors.Kind
		msg    string
	}{
		{http.StatusUnauthorized, `{"message":"token expired"}`, apperrors.KindAuthExpired, "token expired"},
		{http.StatusForbidden, `{"error":"not your meal"}`, apperrors.KindForbidden, "not your meal"},
		{http.StatusNotFound, ``, apperrors.KindNotFound, "Not Found"},
		{http.StatusInternalServerError, `{"detail":"model crashed"}`, apperrors.KindServer, "model crashed"},
		{http.StatusTeapot, `short and stout`, apperrors.KindUnexpectedStatus, "short and stout"},
		{http.StatusBadGateway, `{"code":7}`, apperrors.KindUnexpectedStatus, "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, signedIn).Submit(context.Background(), testPayload())
			if !apperrors.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if apperrors.StatusOf(err) != tt.status {
				t.Fatalf("status = %d, want %d", apperrors.StatusOf(err), tt.status)
			}
			var typed *apperrors.Error
			if !errors.As(err, &typed) || typed.Message != tt.msg {
				t.Fatalf("message = %q, want %q", typed.Message, tt.msg)
			}
		})
	}
}

func TestSubmitBodyProblems(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind apperrors.Kind
	}{
		{"empty", ``, apperrors.KindEmptyResponse},
		{"whitespace", "  \n", apperrors.KindEmptyResponse},
		{"null", `null`, apperrors.KindEmptyResponse},
		{"malformed", `{"meal_id": "nine"`, apperrors.KindResponseShape},
		{"wrong type", `{"meal_id":"nine"}`, apperrors.KindResponseShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL, signedIn).Submit(context.Background(), testPayload())
			if !apperrors.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if errors.Unwrap(err) != nil {
				t.Fatalf("decoder error should not be exposed, got %v", errors.Unwrap(err))
			}
		})
	}
}

func TestSubmitNetworkFailures(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := newTestClient(t, url, signedIn).Submit(context.Background(), testPayload())
		if !apperrors.IsKind(err, apperrors.KindNetworkUnavailable) {
			t.Fatalf("expected network unavailable, got %v", err)
		}
		if errors.Unwrap(err) == nil {
			t.Fatal("expected transport cause to be wrapped")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(Config{BaseURL: srv.URL, AnalyzePath: "/analyze", Timeout: 50 * time.Millisecond}, signedIn, logging.Discard())
		_, err := c.Submit(context.Background(), testPayload())
		if !apperrors.IsKind(err, apperrors.KindNetworkUnavailable) {
			t.Fatalf("expected network unavailable, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := newTestClient(t, srv.URL, signedIn).Submit(ctx, testPayload())
		if !apperrors.IsKind(err, apperrors.KindNetworkUnavailable) {
			t.Fatalf("expected network unavailable, got %v", err)
		}
	})
}

func TestHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/meals/history" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer token")
		}
		io.WriteString(w, `[{"id":1,"meal_type":"lunch","date":"2026-03-01","total_carbs":40,"dose":3,"glycemia":120},
			{"id":2,"meal_type":"dinner","date":null,"total_carbs":55,"dose":4,"glycemia":135}]`)
	}))
	defer srv.Close()

	entries, err := newTestClient(t, srv.URL, signedIn).History(context.Background())
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(entries) != 2 || entries[0].MealType != "lunch" || entries[1].Date != nil {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHistoryNullAndErrors(t *testing.T) {
	var mu sync.Mutex
	status, body := http.StatusOK, `null`
	respond := func(s int, b string) {
		mu.Lock()
		status, body = s, b
		mu.Unlock()
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, signedIn)

	entries, err := c.History(context.Background())
	if err != nil || entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty list, got %#v, %v", entries, err)
	}

	respond(http.StatusUnauthorized, `{"message":"expired"}`)
	if _, err := c.History(context.Background()); !apperrors.IsKind(err, apperrors.KindAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}

	respond(http.StatusOK, `{"not":"a list"}`)
	if _, err := c.History(context.Background()); !apperrors.IsKind(err, apperrors.KindResponseShape) {
		t.Fatalf("expected response shape, got %v", err)
	}
}
