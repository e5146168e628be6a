package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/notify-dispatch/internal/pkg/logger"
)

// LogSender accepts every message and only writes it to the log. It backs
// dry runs and local development.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender() *LogSender {
	return &LogSender{log: logger.Named("transport.log")}
}

// Name implements Sender.
func (s *LogSender) Name() string { return "log" }

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, classified("log", KindTimeout, err)
	}
	id := "log-" + uuid.New().String()
	s.log.Info("email accepted", "to", msg.To, "subject", msg.Subject, "message_id", id, "bytes", len(msg.HTML))
	return Result{MessageID: id, Provider: "log"}, nil
}
