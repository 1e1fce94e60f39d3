package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender records that credentials were issued without revealing them.
// It is the only channel when no SMTP relay or broker is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name implements Sender
func (l *LogSender) Name() string { return "log" }

// SendCredentials logs the recipient only
func (l *LogSender) SendCredentials(_ context.Context, c Credentials) error {
	l.logger.Info("credentials issued",
		zap.String("email", c.Email),
		zap.String("work_id", c.WorkID),
		zap.Stringer("password", c.Password))
	return nil
}
