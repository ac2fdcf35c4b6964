package mail

import (
	"context"
	"net/http"
	"strings"

	"github.com/jcjurado/outreach/internal/circuitbreaker"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// sendgridClient is the subset of *sendgrid.Client the transport uses.
type sendgridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridTransport delivers through the SendGrid v3 mail API.
type SendGridTransport struct {
	client  sendgridClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSendGridTransport creates a transport from an API key.
func NewSendGridTransport(apiKey string, breaker circuitbreaker.Config, logger *zap.Logger) *SendGridTransport {
	return newSendGridTransport(sendgrid.NewSendClient(apiKey), breaker, logger)
}

func newSendGridTransport(client sendgridClient, cfg circuitbreaker.Config, logger *zap.Logger) *SendGridTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := circuitbreaker.NewCircuitBreaker("sendgrid", cfg, logger)
	circuitbreaker.GlobalMetricsCollector.RegisterCircuitBreaker("sendgrid", "outreach", cb)
	return &SendGridTransport{client: client, breaker: cb, logger: logger}
}

// Send implements Transport.
func (t *SendGridTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, &TransportError{Provider: "sendgrid", Detail: "rejected before send", Cause: err}
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("", msg.From))
	m.Subject = msg.Subject
	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", msg.To))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent(msg.ContentType.MIME(), msg.Body))

	var resp *rest.Response
	err := t.breaker.Execute(ctx, func() error {
		var err error
		resp, err = t.client.SendWithContext(ctx, m)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return &TransportError{Provider: "sendgrid", StatusCode: resp.StatusCode, Detail: strings.TrimSpace(resp.Body)}
		}
		return nil
	})
	circuitbreaker.GlobalMetricsCollector.RecordRequest("sendgrid", "outreach", t.breaker.State(), err == nil)

	if err != nil {
		if te, ok := AsTransportError(err); ok {
			return Receipt{StatusCode: te.StatusCode, Provider: "sendgrid"}, te
		}
		return Receipt{Provider: "sendgrid"}, &TransportError{Provider: "sendgrid", Detail: "request failed", Cause: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return Receipt{StatusCode: resp.StatusCode, Provider: "sendgrid"},
			&TransportError{Provider: "sendgrid", StatusCode: resp.StatusCode, Detail: strings.TrimSpace(resp.Body)}
	}

	receipt := Receipt{OK: true, StatusCode: resp.StatusCode, Provider: "sendgrid"}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		receipt.MessageID = ids[0]
	}
	t.logger.Info("Email sent",
		zap.String("to", msg.To),
		zap.String("content_type", string(msg.ContentType)),
		zap.Int("status", resp.StatusCode),
	)
	return receipt, nil
}
