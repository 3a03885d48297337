package translation

import (
	"log/slog"

	evbus "github.com/asaskevich/EventBus"

	"github.com/franckalain/mealdose/internal/logging"
)

// TopicFailure is the bus topic translation failures are published on.
const TopicFailure = "translation:failure"

// Failure stages.
const (
	StageCreate    = "create"
	StageProvision = "provision"
	StageTranslate = "translate"
)

// Failure describes a translation that fell back to the original text.
type Failure struct {
	Direction Direction
	Stage     string
	Text      string
	Err       error
}

// LogFailures subscribes a logger that records every failure at warn level.
func LogFailures(bus evbus.Bus, logger *slog.Logger) error {
	logger = logging.OrDefault(logger).With("component", "translation")
	return bus.Subscribe(TopicFailure, func(f Failure) {
		logger.Warn("translation fell back to original text",
			"direction", f.Direction,
			"stage", f.Stage,
			"text", f.Text,
			"error", f.Err,
		)
	})
}
