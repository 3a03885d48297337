package ml

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConditionsNotMet is returned by Provision when the download
	// conditions cannot be satisfied on the current link.
	ErrConditionsNotMet = errors.New("download conditions not met")
	// ErrNotProvisioned is returned by Translate before Provision succeeded.
	ErrNotProvisioned = errors.New("model not provisioned")
	// ErrEmptyOutput is returned when the model produced no usable text.
	ErrEmptyOutput = errors.New("model returned no translation")
)

// LanguagePair is a translation direction, as ISO 639-1 codes.
type LanguagePair struct {
	Source string
	Target string
}

// Reverse returns the opposite direction.
func (p LanguagePair) Reverse() LanguagePair {
	return LanguagePair{Source: p.Target, Target: p.Source}
}

func (p LanguagePair) String() string {
	return p.Source + "->" + p.Target
}

// DownloadConditions constrain when a model may be provisioned.
type DownloadConditions struct {
	RequireUnmetered bool
}

// Translator represents a machine translation model for one direction
type Translator interface {
	// Provision makes the model usable, fetching whatever it needs
	Provision(ctx context.Context, conditions DownloadConditions) error
	// Translate converts text from the pair's source to its target language
	Translate(ctx context.Context, text string) (string, error)
	// Close releases the model
	Close() error
}

// Factory creates a new translator instance for a language pair
type Factory interface {
	CreateModel(pair LanguagePair) (Translator, error)
}

// NewFactory creates a model factory based on the model type
func NewFactory(modelType, configPath string) (Factory, error) {
	switch modelType {
	case "google":
		config := GoogleConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		return NewGoogleModelFactory(config), nil
	case "openai":
		config := OpenAIConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load OpenAI config: %w", err)
		}
		return NewOpenAIModelFactory(config), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
}

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// instruction is the system prompt shared by the hosted backends.
func instruction(pair LanguagePair) string {
	return fmt.Sprintf(
		"You translate food and meal names from %s to %s. "+
			"Reply with the translation only, without quotes, notes or explanations.",
		languageName(pair.Source), languageName(pair.Target),
	)
}

// cleanOutput strips the decoration chat models like to add around an answer.
func cleanOutput(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyOutput
	}
	return s, nil
}
