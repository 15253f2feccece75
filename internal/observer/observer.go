package observer

import (
	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/logging"
)

// Level is the severity of an observer log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns a human-readable name for the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Observer receives progress, log, and error events from a protocol engine.
//
// Implementations must be fast and must never block: engines call these methods
// synchronously from the middle of timed protocol exchanges, and a slow observer
// would distort the timing the device firmware expects. Observers must not
// influence protocol control flow in any way.
type Observer interface {
	// Progress reports overall operation progress in the range [0, 100].
	Progress(percent float64)

	// Log reports a leveled, human-readable status message.
	Log(level Level, msg string)

	// Busy toggles the busy state at the start and end of an operation.
	Busy(busy bool)

	// ReportError reports a user-facing failure with optional technical detail.
	ReportError(msg string, detail string)
}

// Nop is an Observer that discards all events.
type Nop struct{}

func (Nop) Progress(float64)           {}
func (Nop) Log(Level, string)          {}
func (Nop) Busy(bool)                  {}
func (Nop) ReportError(string, string) {}

// Logger is an Observer that forwards all events to the logging package.
type Logger struct {
	// Name tags every event with the originating engine (e.g. "sprd", "mtk")
	Name string
}

func (o *Logger) Progress(percent float64) {
	logging.Debug("Progress",
		zap.String("engine", o.Name),
		zap.Float64("percent", percent),
	)
}

func (o *Logger) Log(level Level, msg string) {
	field := zap.String("engine", o.Name)
	switch level {
	case LevelDebug:
		logging.Debug(msg, field)
	case LevelWarn:
		logging.Warn(msg, field)
	case LevelError:
		logging.Error(msg, field)
	default:
		logging.Info(msg, field)
	}
}

func (o *Logger) Busy(busy bool) {
	logging.Debug("Busy state",
		zap.String("engine", o.Name),
		zap.Bool("busy", busy),
	)
}

func (o *Logger) ReportError(msg string, detail string) {
	logging.Error(msg,
		zap.String("engine", o.Name),
		zap.String("detail", detail),
	)
}

// Funcs is an Observer assembled from optional callbacks. Nil callbacks are
// skipped. This is the easiest way for a caller to hook a subset of events.
type Funcs struct {
	OnProgress func(percent float64)
	OnLog      func(level Level, msg string)
	OnBusy     func(busy bool)
	OnError    func(msg string, detail string)
}

func (f *Funcs) Progress(percent float64) {
	if f.OnProgress != nil {
		f.OnProgress(percent)
	}
}

func (f *Funcs) Log(level Level, msg string) {
	if f.OnLog != nil {
		f.OnLog(level, msg)
	}
}

func (f *Funcs) Busy(busy bool) {
	if f.OnBusy != nil {
		f.OnBusy(busy)
	}
}

func (f *Funcs) ReportError(msg string, detail string) {
	if f.OnError != nil {
		f.OnError(msg, detail)
	}
}

// Multi fans events out to several observers in order.
func Multi(observers ...Observer) Observer {
	return &multi{observers: observers}
}

type multi struct {
	observers []Observer
}

func (m *multi) Progress(percent float64) {
	for _, o := range m.observers {
		o.Progress(percent)
	}
}

func (m *multi) Log(level Level, msg string) {
	for _, o := range m.observers {
		o.Log(level, msg)
	}
}

func (m *multi) Busy(busy bool) {
	for _, o := range m.observers {
		o.Busy(busy)
	}
}

func (m *multi) ReportError(msg string, detail string) {
	for _, o := range m.observers {
		o.ReportError(msg, detail)
	}
}
