package bridge

import (
	"log/slog"

	"github.com/starford/obridge/internal/models"
)

// Notifier is the fire-and-forget user notification surface.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(message string) { f(message) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(message string) {
	n.Logger.Info(message)
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(message string) {
	for _, n := range m {
		n.Notify(message)
	}
}

// RunFinished implements RunListener.
func (m Multi) RunFinished(run models.Run) {
	for _, n := range m {
		if l, ok := n.(RunListener); ok {
			l.RunFinished(run)
		}
	}
}

// RunListener is implemented by notifiers that also want completed runs.
type RunListener interface {
	RunFinished(run models.Run)
}
