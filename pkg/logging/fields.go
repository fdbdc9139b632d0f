package logging

import "log/slog"

// Domain identifiers

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Message(id string) slog.Attr {
	return slog.String("message_id", id)
}

func Email(addr string) slog.Attr {
	return slog.String("email", addr)
}

func Sender(s string) slog.Attr {
	return slog.String("sender", s)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
