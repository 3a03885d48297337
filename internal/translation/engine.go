package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/ml"
	"github.com/franckalain/mealdose/internal/models"
)

// Direction names one of the two translation directions.
type Direction string

const (
	ToTarget Direction = "to_target"
	ToSource Direction = "to_source"
)

// errReleased is reported when Release ran while a model was provisioning.
var errReleased = errors.New("engine released during provisioning")

const defaultWorkers = 4

// Options configures an Engine.
type Options struct {
	// Pair is the source to target direction; the reverse is derived.
	Pair       ml.LanguagePair
	Factory    ml.Factory
	Dictionary *Dictionary
	Conditions ml.DownloadConditions
	// Bus receives a Failure for every fallback. Optional.
	Bus     evbus.Bus
	Workers int
	Logger  *slog.Logger
}

type directionState struct {
	name Direction
	pair ml.LanguagePair

	mu    sync.Mutex
	ready bool
	model ml.Translator
	gen   uint64
}

func (d *directionState) snapshot() (ml.Translator, bool, uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model, d.ready, d.gen
}

// Engine translates meal text between the user's language and the analysis
// service's language. Its operations never fail; failures fall back to the
// capitalized input and are reported on the bus.
type Engine struct {
	factory    ml.Factory
	dict       *Dictionary
	conditions ml.DownloadConditions
	bus        evbus.Bus
	workers    int
	logger     *slog.Logger

	toTarget *directionState
	toSource *directionState
	flights  singleflight.Group
}

func NewEngine(opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		factory:    opts.Factory,
		dict:       opts.Dictionary,
		conditions: opts.Conditions,
		bus:        opts.Bus,
		workers:    workers,
		logger:     logging.OrDefault(opts.Logger).With("component", "translation"),
		toTarget:   &directionState{name: ToTarget, pair: opts.Pair},
		toSource:   &directionState{name: ToSource, pair: opts.Pair.Reverse()},
	}
}

// TranslateToTarget translates text into the user's language, consulting the
// dictionary before the model.
func (e *Engine) TranslateToTarget(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	if phrase, ok := e.dict.Lookup(text); ok {
		return Capitalize(phrase)
	}
	return e.translate(ctx, e.toTarget, text)
}

// TranslateToSource translates text back into the service's language. It
// only uses the model.
func (e *Engine) TranslateToSource(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return e.translate(ctx, e.toSource, text)
}

// TranslateIngredients translates each ingredient name, keeping order and
// every other field.
func (e *Engine) TranslateIngredients(ctx context.Context, items []models.Ingredient) []models.Ingredient {
	if items == nil {
		return nil
	}
	out := make([]models.Ingredient, len(items))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			item.Name = e.TranslateToTarget(ctx, item.Name)
			out[i] = item
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// TranslateMeal translates the meal name, when present, and its ingredients.
func (e *Engine) TranslateMeal(ctx context.Context, meal models.AnalysisResult) models.AnalysisResult {
	if meal.Name != nil {
		name := e.TranslateToTarget(ctx, *meal.Name)
		meal.Name = &name
	}
	meal.Ingredients = e.TranslateIngredients(ctx, meal.Ingredients)
	return meal
}

// TranslateHistoryEntry translates the entry's meal type.
func (e *Engine) TranslateHistoryEntry(ctx context.Context, entry models.MealHistoryEntry) models.MealHistoryEntry {
	entry.MealType = e.TranslateToTarget(ctx, entry.MealType)
	return entry
}

// TranslateHistoryList translates every entry, keeping order.
func (e *Engine) TranslateHistoryList(ctx context.Context, entries []models.MealHistoryEntry) []models.MealHistoryEntry {
	if entries == nil {
		return nil
	}
	out := make([]models.MealHistoryEntry, len(entries))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			out[i] = e.TranslateHistoryEntry(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// IsReady reports whether both directions are provisioned.
func (e *Engine) IsReady() bool {
	_, target, _ := e.toTarget.snapshot()
	_, source, _ := e.toSource.snapshot()
	return target && source
}

// Prepare provisions both directions up front. Failures are reported like
// any other and returned joined; the engine stays usable either way.
func (e *Engine) Prepare(ctx context.Context) error {
	var errs []error
	for _, d := range []*directionState{e.toTarget, e.toSource} {
		if _, err := e.ensureReady(ctx, d, ""); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// Release closes both models and clears readiness. The next translation
// provisions again.
func (e *Engine) Release() {
	for _, d := range []*directionState{e.toTarget, e.toSource} {
		d.mu.Lock()
		d.gen++
		model := d.model
		d.model = nil
		d.ready = false
		d.mu.Unlock()

		if model != nil {
			if err := model.Close(); err != nil {
				e.logger.Debug("closing translation model failed", "direction", d.name, "error", err)
			}
		}
	}
}

func (e *Engine) translate(ctx context.Context, d *directionState, text string) string {
	model, err := e.ensureReady(ctx, d, text)
	if err != nil {
		return Capitalize(text)
	}
	out, err := model.Translate(ctx, text)
	if err != nil {
		e.report(d.name, StageTranslate, text, err)
		return Capitalize(text)
	}
	return Capitalize(out)
}

type stageError struct {
	stage string
	err   error
}

func (s *stageError) Error() string { return s.stage + ": " + s.err.Error() }
func (s *stageError) Unwrap() error { return s.err }

// ensureReady returns the direction's model, provisioning it when needed.
// Concurrent callers share one provisioning run per generation.
func (e *Engine) ensureReady(ctx context.Context, d *directionState, text string) (ml.Translator, error) {
	model, ready, gen := d.snapshot()
	if ready {
		return model, nil
	}

	key := fmt.Sprintf("%s#%d", d.name, gen)
	v, err, _ := e.flights.Do(key, func() (any, error) {
		// Provisioning outlives any single caller
		return e.provision(context.WithoutCancel(ctx), d, gen)
	})
	if err != nil {
		stage := StageProvision
		var se *stageError
		if errors.As(err, &se) {
			stage, err = se.stage, se.err
		}
		e.report(d.name, stage, text, err)
		return nil, err
	}
	return v.(ml.Translator), nil
}

func (e *Engine) provision(ctx context.Context, d *directionState, gen uint64) (ml.Translator, error) {
	if model, ready, _ := d.snapshot(); ready {
		return model, nil
	}
	if e.factory == nil {
		return nil, &stageError{stage: StageCreate, err: errors.New("no translation model configured")}
	}

	model, err := e.factory.CreateModel(d.pair)
	if err != nil {
		return nil, &stageError{stage: StageCreate, err: err}
	}
	e.logger.Debug("provisioning translation model", "direction", d.name, "pair", d.pair.String())
	if err := model.Provision(ctx, e.conditions); err != nil {
		model.Close()
		return nil, &stageError{stage: StageProvision, err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		model.Close()
		return nil, &stageError{stage: StageProvision, err: errReleased}
	}
	d.model = model
	d.ready = true
	e.logger.Info("translation model ready", "direction", d.name, "pair", d.pair.String())
	return model, nil
}

func (e *Engine) report(dir Direction, stage, text string, err error) {
	f := Failure{Direction: dir, Stage: stage, Text: text, Err: err}
	if e.bus == nil {
		e.logger.Warn("translation fell back to original text", "direction", dir, "stage", stage, "text", text, "error", err)
		return
	}
	e.bus.Publish(TopicFailure, f)
}
