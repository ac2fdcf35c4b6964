package mail

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogTransport is the dry-run transport: it validates and logs the message.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates a dry-run transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTransport{logger: logger}
}

// Send implements Transport.
func (t *LogTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, &TransportError{Provider: "log", Detail: "rejected before send", Cause: err}
	}
	id := uuid.NewString()
	t.logger.Info("Dry-run email",
		zap.String("message_id", id),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("content_type", msg.ContentType.MIME()),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return Receipt{OK: true, StatusCode: http.StatusAccepted, MessageID: id, Provider: "log"}, nil
}
