package ml

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
)

const defaultGoogleModel = "gemini-1.5-flash"

// GoogleConfig holds configuration for the Google model
type GoogleConfig struct {
	BaseConfig
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsFile string `json:"credentials_file"`
	Model           string `json:"model"`
	// Metered marks the link as metered, so provisioning refuses to run when
	// unmetered downloads are required.
	Metered bool `json:"metered"`
}

// Load loads the Google configuration
func (c *GoogleConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "google", c); err != nil {
		return err
	}

	// Fall back to environment variables if not set
	if c.ProjectID == "" {
		c.ProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	}
	if c.Location == "" {
		c.Location = os.Getenv("GOOGLE_LOCATION")
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = os.Getenv("GOOGLE_CREDENTIALS_FILE")
	}
	if c.Model == "" {
		c.Model = defaultGoogleModel
	}

	return nil
}

// GoogleModel implements the Translator interface for Google's Vertex AI
type GoogleModel struct {
	config GoogleConfig
	pair   LanguagePair

	mu     sync.Mutex
	client *genai.Client
	model  *genai.GenerativeModel
}

// GoogleModelFactory implements Factory for Google models
type GoogleModelFactory struct {
	config GoogleConfig
}

// NewGoogleModelFactory creates a new Google model factory
func NewGoogleModelFactory(config GoogleConfig) *GoogleModelFactory {
	return &GoogleModelFactory{config: config}
}

// CreateModel creates a new Google model instance
func (f *GoogleModelFactory) CreateModel(pair LanguagePair) (Translator, error) {
	if f.config.ProjectID == "" || f.config.Location == "" {
		return nil, fmt.Errorf("google model needs project_id and location")
	}
	return &GoogleModel{
		config: f.config,
		pair:   pair,
	}, nil
}

// Provision connects to Vertex AI and checks the model answers
func (m *GoogleModel) Provision(ctx context.Context, conditions DownloadConditions) error {
	if conditions.RequireUnmetered && m.config.Metered {
		return ErrConditionsNotMet
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		return nil
	}

	opts := []option.ClientOption{}
	if m.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(m.config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, m.config.ProjectID, m.config.Location, opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	model := client.GenerativeModel(m.config.Model)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction(m.pair))},
	}

	// A token count is the cheapest call that proves credentials and model name
	if _, err := model.CountTokens(ctx, genai.Text("bread")); err != nil {
		client.Close()
		return fmt.Errorf("model %s unavailable: %w", m.config.Model, err)
	}

	m.client = client
	m.model = model
	return nil
}

// Translate translates text using Gemini
func (m *GoogleModel) Translate(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	model := m.model
	m.mu.Unlock()
	if model == nil {
		return "", ErrNotProvisioned
	}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("failed to call ai: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyOutput
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return cleanOutput(sb.String())
}

// Close releases the Vertex AI client
func (m *GoogleModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = nil
	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	return err
}
