package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/imaging"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(name string) { r.calls = append(r.calls, name) }

type fakeGate struct {
	rec *recorder
	ok  bool
}

func (g *fakeGate) CheckCredential(context.Context) bool {
	g.rec.add("gate")
	return g.ok
}

type fakePackager struct {
	rec *recorder
	err error
}

func (p *fakePackager) Package(imaging.Source) (*models.ImagePayload, error) {
	p.rec.add("package")
	if p.err != nil {
		return nil, p.err
	}
	return &models.ImagePayload{Data: []byte{1}, MediaType: "image/jpeg", Filename: "m.jpg"}, nil
}

type fakeAnalyzer struct {
	rec     *recorder
	result  *models.AnalysisResult
	history []models.MealHistoryEntry
	err     error
}

func (a *fakeAnalyzer) Submit(context.Context, *models.ImagePayload) (*models.AnalysisResult, error) {
	a.rec.add("submit")
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *fakeAnalyzer) History(context.Context) ([]models.MealHistoryEntry, error) {
	a.rec.add("history")
	if a.err != nil {
		return nil, a.err
	}
	return a.history, nil
}

type fakeTranslator struct {
	rec *recorder
}

func (t *fakeTranslator) TranslateMeal(_ context.Context, meal models.AnalysisResult) models.AnalysisResult {
	t.rec.add("translate")
	if meal.Name != nil {
		name := strings.ToUpper(*meal.Name)
		meal.Name = &name
	}
	return meal
}

func (t *fakeTranslator) TranslateHistoryList(_ context.Context, entries []models.MealHistoryEntry) []models.MealHistoryEntry {
	t.rec.add("translate_history")
	out := make([]models.MealHistoryEntry, len(entries))
	for i, e := range entries {
		e.MealType = strings.ToUpper(e.MealType)
		out[i] = e
	}
	return out
}

type fakeStore struct {
	saved []*models.NormalizedMeal
	err   error
}

func (s *fakeStore) SaveMeal(_ context.Context, meal *models.NormalizedMeal) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, meal)
	return nil
}

func (s *fakeStore) GetRecentMeals(_ context.Context, limit int) ([]*models.NormalizedMeal, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.saved) {
		return s.saved[:limit], nil
	}
	return s.saved, nil
}

type fixture struct {
	rec      *recorder
	gate     *fakeGate
	packager *fakePackager
	analyzer *fakeAnalyzer
	store    *fakeStore
	orch     *Orchestrator
}

func newFixture() *fixture {
	rec := &recorder{}
	name := "burger"
	f := &fixture{
		rec:      rec,
		gate:     &fakeGate{rec: rec, ok: true},
		packager: &fakePackager{rec: rec},
		analyzer: &fakeAnalyzer{rec: rec, result: &models.AnalysisResult{
			MealID: 3, Name: &name, Dose: 4, Ingredients: []models.Ingredient{{ID: 1, Name: "bun"}},
		}},
		store: &fakeStore{},
	}
	f.orch = New(Deps{
		Gate:       f.gate,
		Packager:   f.packager,
		Analyzer:   f.analyzer,
		Translator: &fakeTranslator{rec: rec},
		Store:      f.store,
		Language:   "es",
		Logger:     logging.Discard(),
	})
	f.orch.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestAnalyzeAndNormalizeRunsStagesInOrder(t *testing.T) {
	f := newFixture()
	meal, err := f.orch.AnalyzeAndNormalize(context.Background(), imaging.Source{})
	if err != nil {
		t.Fatalf("AnalyzeAndNormalize: %v", err)
	}
	if want := []string{"gate", "package", "submit", "translate"}; !reflect.DeepEqual(f.rec.calls, want) {
		t.Fatalf("calls = %v, want %v", f.rec.calls, want)
	}
	if meal.DisplayName() != "BURGER" || meal.Language != "es" || meal.RecordID == "" || meal.Dose != 4 {
		t.Fatalf("unexpected meal: %+v", meal)
	}
	if !meal.AnalyzedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("AnalyzedAt = %v", meal.AnalyzedAt)
	}
	if len(f.store.saved) != 1 || f.store.saved[0] != meal {
		t.Fatalf("meal not recorded locally: %+v", f.store.saved)
	}
}

func TestAnalyzeAndNormalizeShortCircuits(t *testing.T) {
	packErr := apperrors.New(apperrors.KindInvalidInput, "imaging.package", "no image source provided")
	submitErr := apperrors.WithStatus(apperrors.KindAuthExpired, "analysis.submit", 401, "expired")

	tests := []struct {
		name  string
		setup func(f *fixture)
		calls []string
		want  error
		kind  apperrors.Kind
	}{
		{
			name:  "gate",
			setup: func(f *fixture) { f.gate.ok = false },
			calls: []string{"gate"},
			kind:  apperrors.KindNotAuthenticated,
		},
		{
			name:  "package",
			setup: func(f *fixture) { f.packager.err = packErr },
			calls: []string{"gate", "package"},
			want:  packErr,
			kind:  apperrors.KindInvalidInput,
		},
		{
			name:  "submit",
			setup: func(f *fixture) { f.analyzer.err = submitErr },
			calls: []string{"gate", "package", "submit"},
			want:  submitErr,
			kind:  apperrors.KindAuthExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			meal, err := f.orch.AnalyzeAndNormalize(context.Background(), imaging.Source{})
			if meal != nil {
				t.Fatalf("expected no meal, got %+v", meal)
			}
			if !apperrors.IsKind(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if tt.want != nil && err != tt.want {
				t.Fatalf("error was not passed through unchanged: %v", err)
			}
			if !reflect.DeepEqual(f.rec.calls, tt.calls) {
				t.Fatalf("calls = %v, want %v", f.rec.calls, tt.calls)
			}
			if len(f.store.saved) != 0 {
				t.Fatal("failed analysis must not be recorded")
			}
		})
	}
}

func TestAnalyzeAndNormalizeIgnoresStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.err = errors.New("disk full")
	meal, err := f.orch.AnalyzeAndNormalize(context.Background(), imaging.Source{})
	if err != nil || meal == nil {
		t.Fatalf("expected meal despite store failure, got %v, %v", meal, err)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture()
	f.analyzer.history = []models.MealHistoryEntry{{ID: 1, MealType: "lunch"}, {ID: 2, MealType: "dinner"}}

	entries, err := f.orch.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 || entries[0].MealType != "LUNCH" || entries[1].MealType != "DINNER" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	f = newFixture()
	f.analyzer.err = apperrors.New(apperrors.KindNetworkUnavailable, "analysis.history", "down")
	if _, err := f.orch.History(context.Background()); !apperrors.IsKind(err, apperrors.KindNetworkUnavailable) {
		t.Fatalf("expected network unavailable, got %v", err)
	}
	if !reflect.DeepEqual(f.rec.calls, []string{"history"}) {
		t.Fatalf("translation must not run after a failed fetch: %v", f.rec.calls)
	}
}

func TestRecent(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		if _, err := f.orch.AnalyzeAndNormalize(context.Background(), imaging.Source{}); err != nil {
			t.Fatalf("AnalyzeAndNormalize: %v", err)
		}
	}
	meals, err := f.orch.Recent(context.Background(), 2)
	if err != nil || len(meals) != 2 {
		t.Fatalf("Recent = %d meals, %v", len(meals), err)
	}

	f.store.err = errors.New("locked")
	if _, err := f.orch.Recent(context.Background(), 0); !apperrors.IsKind(err, apperrors.KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	noStore := New(Deps{Gate: f.gate, Analyzer: f.analyzer})
	meals, err = noStore.Recent(context.Background(), 5)
	if err != nil || meals == nil || len(meals) != 0 {
		t.Fatalf("expected empty list without store, got %v, %v", meals, err)
	}
}
