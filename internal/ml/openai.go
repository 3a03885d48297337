package ml

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds configuration for OpenAI compatible endpoints
type OpenAIConfig struct {
	BaseConfig
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	Metered bool   `json:"metered"`
}

// Load loads the OpenAI configuration
func (c *OpenAIConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "openai", c); err != nil {
		return err
	}

	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if c.Model == "" {
		c.Model = defaultOpenAIModel
	}
	return nil
}

// OpenAIModel implements the Translator interface over the chat completions API
type OpenAIModel struct {
	config OpenAIConfig
	pair   LanguagePair

	mu     sync.Mutex
	client *openai.Client
}

// OpenAIModelFactory implements Factory for OpenAI models
type OpenAIModelFactory struct {
	config OpenAIConfig
}

// NewOpenAIModelFactory creates a new OpenAI model factory
func NewOpenAIModelFactory(config OpenAIConfig) *OpenAIModelFactory {
	return &OpenAIModelFactory{config: config}
}

// CreateModel creates a new OpenAI model instance
func (f *OpenAIModelFactory) CreateModel(pair LanguagePair) (Translator, error) {
	if f.config.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	return &OpenAIModel{config: f.config, pair: pair}, nil
}

// Provision builds the client and checks the configured model exists
func (m *OpenAIModel) Provision(ctx context.Context, conditions DownloadConditions) error {
	if conditions.RequireUnmetered && m.config.Metered {
		return ErrConditionsNotMet
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return nil
	}

	clientConfig := openai.DefaultConfig(m.config.APIKey)
	if m.config.BaseURL != "" {
		clientConfig.BaseURL = m.config.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	if _, err := client.GetModel(ctx, m.config.Model); err != nil {
		return fmt.Errorf("model %s unavailable: %w", m.config.Model, err)
	}
	m.client = client
	return nil
}

// Translate translates text with a single chat completion
func (m *OpenAIModel) Translate(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return "", ErrNotProvisioned
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction(m.pair)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyOutput
	}
	return cleanOutput(resp.Choices[0].Message.Content)
}

// Close drops the client; the HTTP transport holds no per-model resources
func (m *OpenAIModel) Close() error {
	m.mu.Lock()
	m.client = nil
	m.mu.Unlock()
	return nil
}
