// Package notifications carries user-visible signals ("Team created
// successfully!", "Failed to fetch matches") from the synchronizer to
// whatever surfaces them: the log, the API's recent-notices buffer, the
// websocket stream and NATS.
package notifications

import (
	"log/slog"
	"time"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

// Level is the severity a view uses to style a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one user-visible signal.
type Notice struct {
	Level   Level      `json:"level"`
	Op      string     `json:"op"`
	Kind    model.Kind `json:"kind,omitempty"`
	Message string     `json:"message"`
	Error   string     `json:"error,omitempty"`
	Time    time.Time  `json:"time"`
}

// Notifier receives notices. Implementations must not block the caller.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Fanout delivers each notice to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(n Notice) {
	for _, x := range f {
		if x != nil {
			x.Notify(n)
		}
	}
}

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Notice) {})

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notice) {
	attrs := []any{"op", n.Op, "message", n.Message}
	if n.Kind != "" {
		attrs = append(attrs, "kind", n.Kind)
	}
	if n.Error != "" {
		attrs = append(attrs, "error", n.Error)
	}
	switch n.Level {
	case LevelError:
		l.logger.Error("Notice", attrs...)
	case LevelWarning:
		l.logger.Warn("Notice", attrs...)
	default:
		l.logger.Info("Notice", attrs...)
	}
}
