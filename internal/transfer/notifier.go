package transfer

import "log/slog"

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a user-facing message about a transfer.
type Notification struct {
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	TxHash    string `json:"txHash,omitempty"`
	RequestID string `json:"requestId"`
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the default logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		slog.Warn(n.Message, "request", n.RequestID, "tx", n.TxHash)
		return
	}
	slog.Info(n.Message, "request", n.RequestID, "tx", n.TxHash)
}
