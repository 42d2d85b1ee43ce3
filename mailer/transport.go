package mailer

import (
	"context"
	"log/slog"
)

// Transport delivers one rendered message. Implementations report failures
// through the returned error and never panic.
type Transport interface {
	Name() string
	Send(ctx context.Context, to, subject, html, text string) error
}

// LogTransport writes messages to the logger instead of delivering them.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	if log == nil {
		log = slog.Default()
	}
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, to, subject, _, text string) error {
	t.log.Info("mail", slog.String("to", to), slog.String("subject", subject), slog.String("text", text))
	return nil
}
