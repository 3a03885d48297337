package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/imaging"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

// Gate reports whether a usable credential is stored.
type Gate interface {
	CheckCredential(ctx context.Context) bool
}

// Packager turns a photo source into an upload payload.
type Packager interface {
	Package(src imaging.Source) (*models.ImagePayload, error)
}

// Analyzer talks to the inference service.
type Analyzer interface {
	Submit(ctx context.Context, payload *models.ImagePayload) (*models.AnalysisResult, error)
	History(ctx context.Context) ([]models.MealHistoryEntry, error)
}

// Translator normalises service text into the user's language.
type Translator interface {
	TranslateMeal(ctx context.Context, meal models.AnalysisResult) models.AnalysisResult
	TranslateHistoryList(ctx context.Context, entries []models.MealHistoryEntry) []models.MealHistoryEntry
}

// MealStore keeps the local record of analysed meals.
type MealStore interface {
	SaveMeal(ctx context.Context, meal *models.NormalizedMeal) error
	GetRecentMeals(ctx context.Context, limit int) ([]*models.NormalizedMeal, error)
}

// Orchestrator runs a meal photo through gate, packaging, analysis and
// translation, in that order.
type Orchestrator struct {
	gate       Gate
	packager   Packager
	analyzer   Analyzer
	translator Translator
	store      MealStore
	language   string
	logger     *slog.Logger
	now        func() time.Time
}

// Deps groups the orchestrator's collaborators. Store is optional.
type Deps struct {
	Gate       Gate
	Packager   Packager
	Analyzer   Analyzer
	Translator Translator
	Store      MealStore
	Language   string
	Logger     *slog.Logger
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		gate:       d.Gate,
		packager:   d.Packager,
		analyzer:   d.Analyzer,
		translator: d.Translator,
		store:      d.Store,
		language:   d.Language,
		logger:     logging.OrDefault(d.Logger).With("component", "pipeline"),
		now:        time.Now,
	}
}

// AnalyzeAndNormalize analyses one meal photo and returns it in the user's
// language. The first failing stage's error is returned unchanged.
func (o *Orchestrator) AnalyzeAndNormalize(ctx context.Context, src imaging.Source) (*models.NormalizedMeal, error) {
	if !o.gate.CheckCredential(ctx) {
		return nil, apperrors.New(apperrors.KindNotAuthenticated, "pipeline.analyze", "sign in to analyse meals")
	}

	payload, err := o.packager.Package(src)
	if err != nil {
		return nil, err
	}

	result, err := o.analyzer.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	meal := &models.NormalizedMeal{
		AnalysisResult: o.translator.TranslateMeal(ctx, *result),
		Language:       o.language,
		RecordID:       uuid.New().String(),
		AnalyzedAt:     o.now(),
	}
	o.logger.Info("meal analysed",
		"record_id", meal.RecordID,
		"meal_id", meal.MealID,
		"ingredients", len(meal.Ingredients),
		"dose", meal.Dose,
	)

	if o.store != nil {
		if err := o.store.SaveMeal(ctx, meal); err != nil {
			o.logger.Warn("recording meal locally failed", "record_id", meal.RecordID, "error", err)
		}
	}
	return meal, nil
}

// History returns the service's meal history in the user's language.
func (o *Orchestrator) History(ctx context.Context) ([]models.MealHistoryEntry, error) {
	entries, err := o.analyzer.History(ctx)
	if err != nil {
		return nil, err
	}
	return o.translator.TranslateHistoryList(ctx, entries), nil
}

// Recent returns the meals analysed on this device, newest first.
func (o *Orchestrator) Recent(ctx context.Context, limit int) ([]*models.NormalizedMeal, error) {
	if o.store == nil {
		return []*models.NormalizedMeal{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	meals, err := o.store.GetRecentMeals(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "pipeline.recent", "failed to read local history", err)
	}
	if meals == nil {
		meals = []*models.NormalizedMeal{}
	}
	return meals, nil
}
