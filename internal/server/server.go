package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/franckalain/mealdose/internal/errors"
	"github.com/franckalain/mealdose/internal/imaging"
	"github.com/franckalain/mealdose/internal/logging"
	"github.com/franckalain/mealdose/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the bridge only listens for the local presentation layer
	},
}

// Pipeline is the analysis flow exposed over the socket.
type Pipeline interface {
	AnalyzeAndNormalize(ctx context.Context, src imaging.Source) (*models.NormalizedMeal, error)
	History(ctx context.Context) ([]models.MealHistoryEntry, error)
	Recent(ctx context.Context, limit int) ([]*models.NormalizedMeal, error)
}

// Translator handles ad-hoc translation requests.
type Translator interface {
	TranslateToTarget(ctx context.Context, text string) string
	TranslateToSource(ctx context.Context, text string) string
}

// Sessions stores the credential the presentation layer signs in with.
type Sessions interface {
	Set(ctx context.Context, cred models.Credential) error
	Clear(ctx context.Context) error
}

// Identity describes the current session.
type Identity interface {
	CheckCredential(ctx context.Context) bool
	DescribeIdentity(ctx context.Context) string
}

// Deps groups what the server needs.
type Deps struct {
	Pipeline   Pipeline
	Translator Translator
	Sessions   Sessions
	Identity   Identity
	Logger     *slog.Logger
	Debug      bool
}

type Server struct {
	pipeline   Pipeline
	translator Translator
	sessions   Sessions
	identity   Identity
	clients    sync.Map
	logger     *slog.Logger
	debug      bool
}

func New(d Deps) *Server {
	logger := logging.OrDefault(d.Logger).With("component", "server")
	if d.Debug {
		logger.Debug("Debug logging enabled")
	}
	return &Server{
		pipeline:   d.Pipeline,
		translator: d.Translator,
		sessions:   d.Sessions,
		identity:   d.Identity,
		logger:     logger,
		debug:      d.Debug,
	}
}

// Handler returns the HTTP routes: websocket, health check and static files.
func (s *Server) Handler(staticDir string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start(port, staticDir string) error {
	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(staticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case err := <-errChan:
		return fmt.Errorf("listen and serve: %w", err)
	case sig := <-sigChan:
		s.logger.Info("Shutting down server...", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	return httpServer.Shutdown(ctx)
}

func (s *Server) closeClients() {
	s.clients.Range(func(key, value any) bool {
		if conn, ok := value.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
}

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type loginData struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

type analyzeData struct {
	Image    string `json:"image"`  // base64
	Source   string `json:"source"` // "camera" or "gallery"
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
}

type translateData struct {
	Text      string `json:"text"`
	Direction string `json:"direction"` // "target" (default) or "source"
}

type recentData struct {
	Limit int `json:"limit"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Store client connection
	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)
	logger := s.logger.With("client_id", clientID)
	logger.Debug("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Error reading message", "error", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Debug("Error parsing message", "error", err)
			s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, "server.message", "Invalid message format"))
			continue
		}

		s.handleWebSocketMessage(ctx, conn, msg)
	}
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn *websocket.Conn, msg inbound) {
	switch msg.Type {
	case "login":
		s.handleLogin(ctx, conn, msg.Data)
	case "logout":
		s.handleLogout(ctx, conn)
	case "whoami":
		s.sendMessage(conn, "identity", s.identityPayload(ctx))
	case "analyze":
		s.handleAnalyze(ctx, conn, msg.Data)
	case "translate":
		s.handleTranslate(ctx, conn, msg.Data)
	case "get_history":
		s.handleGetHistory(ctx, conn)
	case "get_recent":
		s.handleGetRecent(ctx, conn, msg.Data)
	default:
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, "server.message", "Unknown message type"))
	}
}

func decodeData(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (s *Server) identityPayload(ctx context.Context) map[string]any {
	return map[string]any{
		"authenticated": s.identity.CheckCredential(ctx),
		"identity":      s.identity.DescribeIdentity(ctx),
	}
}

func (s *Server) handleLogin(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) {
	const op = "server.login"
	var data loginData
	if err := decodeData(raw, &data); err != nil {
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, op, "Invalid login data"))
		return
	}
	cred := models.Credential{Token: data.Token, UserID: data.UserID}
	if cred.Empty() {
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, op, "Token is required"))
		return
	}
	if err := s.sessions.Set(ctx, cred); err != nil {
		s.logger.Error("Error storing credential", "error", err)
		s.sendError(conn, apperrors.Wrap(apperrors.KindStorage, op, "Failed to store session", err))
		return
	}
	s.sendMessage(conn, "session", s.identityPayload(ctx))
}

func (s *Server) handleLogout(ctx context.Context, conn *websocket.Conn) {
	if err := s.sessions.Clear(ctx); err != nil {
		s.logger.Error("Error clearing credential", "error", err)
		s.sendError(conn, apperrors.Wrap(apperrors.KindStorage, "server.logout", "Failed to clear session", err))
		return
	}
	s.sendMessage(conn, "session", s.identityPayload(ctx))
}

func (s *Server) handleAnalyze(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) {
	const op = "server.analyze"
	var data analyzeData
	if err := decodeData(raw, &data); err != nil {
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, op, "Invalid analyze data"))
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(data.Image)
	if err != nil {
		s.logger.Debug("Error decoding image", "error", err)
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, op, "Invalid image format"))
		return
	}

	var src imaging.Source
	switch data.Source {
	case "camera":
		capture, err := imaging.DecodeCapture(imageData)
		if err != nil {
			s.sendError(conn, err)
			return
		}
		src.Camera = capture
	case "", "gallery":
		if len(imageData) > 0 {
			src.Gallery = &imaging.GallerySelection{
				URI:      data.Filename,
				MimeType: data.MimeType,
				Reader:   bytes.NewReader(imageData),
			}
		}
	default:
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, op, "Unknown image source"))
		return
	}

	meal, err := s.pipeline.AnalyzeAndNormalize(ctx, src)
	if err != nil {
		s.logger.Info("Meal analysis failed", "kind", apperrors.KindOf(err), "error", err)
		s.sendError(conn, err)
		return
	}
	s.sendMessage(conn, "analysis_result", meal)
}

func (s *Server) handleTranslate(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) {
	var data translateData
	if err := decodeData(raw, &data); err != nil {
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, "server.translate", "Invalid translate data"))
		return
	}

	var translated string
	switch data.Direction {
	case "", "target":
		data.Direction = "target"
		translated = s.translator.TranslateToTarget(ctx, data.Text)
	case "source":
		translated = s.translator.TranslateToSource(ctx, data.Text)
	default:
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, "server.translate", "Unknown direction"))
		return
	}
	s.sendMessage(conn, "translation", map[string]string{
		"text":       data.Text,
		"translated": translated,
		"direction":  data.Direction,
	})
}

func (s *Server) handleGetHistory(ctx context.Context, conn *websocket.Conn) {
	entries, err := s.pipeline.History(ctx)
	if err != nil {
		s.logger.Info("Error retrieving history", "error", err)
		s.sendError(conn, err)
		return
	}
	s.sendMessage(conn, "history", map[string]any{"items": entries})
}

func (s *Server) handleGetRecent(ctx context.Context, conn *websocket.Conn, raw json.RawMessage) {
	var data recentData
	if err := decodeData(raw, &data); err != nil {
		s.sendError(conn, apperrors.New(apperrors.KindInvalidInput, "server.recent", "Invalid recent data"))
		return
	}
	meals, err := s.pipeline.Recent(ctx, data.Limit)
	if err != nil {
		s.logger.Error("Error retrieving recent meals", "error", err)
		s.sendError(conn, err)
		return
	}
	s.sendMessage(conn, "recent", map[string]any{"items": meals})
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}

	if s.debug {
		s.logger.Debug("Sending message to client", "type", messageType)
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("Error sending message", "type", messageType, "error", err)
	}
}

// sendError reports err with the reaction the user should be offered.
func (s *Server) sendError(conn *websocket.Conn, err error) {
	message := err.Error()
	var typed *apperrors.Error
	if errors.As(err, &typed) {
		message = typed.Message
	}

	s.sendMessage(conn, "error", map[string]any{
		"kind":    apperrors.KindOf(err),
		"action":  apperrors.ActionFor(err),
		"status":  apperrors.StatusOf(err),
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
