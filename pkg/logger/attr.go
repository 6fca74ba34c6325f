package logger

import (
	"log/slog"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Channel records the delivery channel under the key "channel".
// Accepts any string-typed channel value.
func Channel[T ~string](channel T) slog.Attr {
	if channel == "" {
		return slog.Attr{}
	}
	return slog.String("channel", string(channel))
}

// Severity records the notification severity under the key "severity".
func Severity[T ~string](severity T) slog.Attr {
	if severity == "" {
		return slog.Attr{}
	}
	return slog.String("severity", string(severity))
}

// NotificationID records the delivery record identifier under the key
// "notification_id".
func NotificationID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("notification_id", id)
}

// BatchID records the batch identifier under the key "batch_id".
func BatchID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("batch_id", id)
}
