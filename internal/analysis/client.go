package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

// ImageField is the multipart field carrying the meal photo.
const ImageField = "image"

// Credentials supplies the bearer token for authorised calls.
type Credentials interface {
	Credential(ctx context.Context) (models.Credential, bool)
}

// Config points the client at the inference service.
type Config struct {
	BaseURL     string
	AnalyzePath string
	HistoryPath string
	Timeout     time.Duration
}

// Client submits meal photos to the inference service.
type Client struct {
	cfg    Config
	creds  Credentials
	http   *resty.Client
	logger *slog.Logger
}

func NewClient(cfg Config, creds Credentials, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger = logging.OrDefault(logger).With("component", "analysis")
	rc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{logger})
	return &Client{cfg: cfg, creds: creds, http: rc, logger: logger}
}

// Submit uploads payload and returns the decoded analysis. Every failure is
// an *apperrors.Error whose kind tells the caller how to react.
func (c *Client) Submit(ctx context.Context, payload *models.ImagePayload) (*models.AnalysisResult, error) {
	const op = "analysis.submit"

	cred, ok := c.creds.Credential(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.KindNotAuthenticated, op, "no active session")
	}
	if payload == nil || len(payload.Data) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, op, "image payload is empty")
	}

	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.Token).
		SetHeader("Accept", "application/json").
		SetMultipartField(ImageField, payload.Filename, payload.MediaType, bytes.NewReader(payload.Data)).
		Post(c.url(c.cfg.AnalyzePath))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkUnavailable, op, "analysis request failed", err)
	}
	c.logger.Debug("analysis response", "status", resp.StatusCode(), "bytes", len(resp.Body()), "elapsed", time.Since(started))

	if err := classify(op, resp); err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := decode(op, resp.Body(), &result); err != nil {
		return nil, err
	}
	result.Normalize()
	return &result, nil
}

// History fetches the user's past meals from the inference service.
func (c *Client) History(ctx context.Context) ([]models.MealHistoryEntry, error) {
	const op = "analysis.history"

	cred, ok := c.creds.Credential(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.KindNotAuthenticated, op, "no active session")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.Token).
		SetHeader("Accept", "application/json").
		Get(c.url(c.cfg.HistoryPath))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetworkUnavailable, op, "history request failed", err)
	}
	if err := classify(op, resp); err != nil {
		return nil, err
	}

	var entries []models.MealHistoryEntry
	if isBlank(resp.Body()) {
		return []models.MealHistoryEntry{}, nil
	}
	if err := json.Unmarshal(resp.Body(), &entries); err != nil {
		return nil, apperrors.New(apperrors.KindResponseShape, op, "malformed history response: "+err.Error())
	}
	if entries == nil {
		entries = []models.MealHistoryEntry{}
	}
	return entries, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// classify turns a non-2xx response into a typed error.
func classify(op string, resp *resty.Response) error {
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}

	msg := serverMessage(resp.Body())
	if msg == "" {
		msg = http.StatusText(status)
	}

	var kind apperrors.Kind
	switch status {
	case http.StatusUnauthorized:
		kind = apperrors.KindAuthExpired
	case http.StatusForbidden:
		kind = apperrors.KindForbidden
	case http.StatusNotFound:
		kind = apperrors.KindNotFound
	case http.StatusInternalServerError:
		kind = apperrors.KindServer
	default:
		kind = apperrors.KindUnexpectedStatus
	}
	return apperrors.WithStatus(kind, op, status, msg)
}

// decode parses a 2xx analysis body. The decoder error text is kept but the
// decoder error itself is not wrapped.
func decode(op string, body []byte, out *models.AnalysisResult) error {
	if isBlank(body) {
		return apperrors.New(apperrors.KindEmptyResponse, op, "analysis response has no body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.KindResponseShape, op, "malformed analysis response: "+err.Error())
	}
	return nil
}

func isBlank(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// serverMessage extracts the human readable part of an error body.
func serverMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	return string(trimmed)
}

// restyLogger routes resty's own diagnostics through slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) { r.l.Error(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...interface{})  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...interface{}) { r.l.Debug(fmt.Sprintf(format, v...)) }
