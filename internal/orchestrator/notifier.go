package orchestrator

import "log/slog"

// Notice is a short user-facing message, shown as a toast or printed
type Notice struct {
	Title       string
	Description string
	Destructive bool
}

// Notifier surfaces notices to the user
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a logger
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if n.Destructive {
		log.Warn("notice", "title", n.Title, "description", n.Description)
		return
	}
	log.Info("notice", "title", n.Title, "description", n.Description)
}
