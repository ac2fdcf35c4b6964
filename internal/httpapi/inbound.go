package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jcjurado/outreach/internal/config"
	"github.com/jcjurado/outreach/internal/idempotency"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/tracing"
	"github.com/jcjurado/outreach/internal/util"
	"github.com/jcjurado/outreach/internal/workflows"
)

// AckBody is written for every inbound delivery, whatever happens downstream.
// The inbound transport retries on anything but success, so failures stay on
// this side of the boundary.
const AckBody = "Recibido y Procesado"

// ReplySubmitter starts reply runs.
type ReplySubmitter interface {
	SubmitReply(ctx context.Context, e service.InboundEmail) (string, bool, error)
	RunReply(ctx context.Context, e service.InboundEmail) (workflows.RunResult, bool, error)
}

// Deduper claims inbound event keys. A nil Deduper disables deduplication.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// InboundHandler receives inbound email events and answers each with AckBody.
type InboundHandler struct {
	submitter ReplySubmitter
	dedupe    Deduper
	settings  func() config.WebhookConfig
	logger    *zap.Logger
}

// NewInboundHandler creates the webhook handler. settings is read per request
// so webhook.async follows config reloads.
func NewInboundHandler(submitter ReplySubmitter, dedupe Deduper, settings func() config.WebhookConfig, logger *zap.Logger) *InboundHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboundHandler{submitter: submitter, dedupe: dedupe, settings: settings, logger: logger}
}

// RegisterRoutes registers the webhook path and its versioned alias. Neither
// is method-bound: a wrong method is still acknowledged.
func (h *InboundHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/recibir-correo", h.handleInbound)
	mux.HandleFunc("/v1/inbound/email", h.handleInbound)
}

func (h *InboundHandler) handleInbound(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "inbound.email")
	outcome := "accepted"
	defer func() {
		if rec := recover(); rec != nil {
			outcome = "panic"
			h.logger.Error("Inbound handler panic", zap.Any("panic", rec), zap.Stack("stack"))
		}
		metrics.WebhookEvents.WithLabelValues(outcome).Inc()
		span.End()
		writeAck(w)
	}()

	if r.Method != http.MethodPost {
		outcome = "bad_method"
		h.logger.Warn("Inbound request with unexpected method", zap.String("method", r.Method))
		return
	}

	settings := h.settings()
	event, err := parseInbound(w, r, settings.MaxBodyBytes)
	if err != nil {
		outcome = "bad_form"
		h.logger.Warn("Inbound form rejected", zap.Error(err))
		return
	}
	h.logger.Info("Inbound email received",
		zap.String("from", event.From),
		zap.String("subject", event.Subject),
		zap.Int("text_bytes", len(event.Text)),
		zap.String("preview", util.Preview(event.Text, 80)),
	)

	key := idempotency.Key(event.From, event.Subject, event.Text)
	if h.dedupe != nil {
		claimed, err := h.dedupe.Claim(ctx, key)
		switch {
		case err != nil:
			h.logger.Warn("Dedupe unavailable, processing event", zap.Error(err))
		case !claimed:
			outcome = "duplicate"
			return
		}
	}

	if settings.Async {
		outcome = h.enqueue(ctx, settings, event, key)
	} else {
		outcome = h.runSync(ctx, settings, event, key)
	}
}

func (h *InboundHandler) enqueue(ctx context.Context, settings config.WebhookConfig, event service.InboundEmail, key string) string {
	ctx, cancel := context.WithTimeout(ctx, settings.EnqueueTimeout)
	defer cancel()

	runID, duplicate, err := h.submitter.SubmitReply(ctx, event)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		h.logger.Warn("Inbound event not actionable", zap.Error(err))
		h.release(key)
		return "invalid"
	case err != nil:
		h.logger.Error("Failed to enqueue reply run", zap.Error(err))
		h.release(key)
		return "enqueue_failed"
	case duplicate:
		return "duplicate"
	}
	h.logger.Info("Reply run enqueued", zap.String("run_id", runID))
	return "enqueued"
}

func (h *InboundHandler) runSync(ctx context.Context, settings config.WebhookConfig, event service.InboundEmail, key string) string {
	ctx, cancel := context.WithTimeout(ctx, settings.SyncTimeout)
	defer cancel()

	res, duplicate, err := h.submitter.RunReply(ctx, event)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.logger.Warn("Inbound event not actionable", zap.Error(err))
			h.release(key)
			return "invalid"
		}
		fields := []zap.Field{zap.Error(err)}
		if oe, ok := workflows.AsOrchestrationError(err); ok {
			fields = append(fields, zap.String("error_kind", string(oe.Kind)), zap.String("stage", string(oe.Stage)))
		}
		h.logger.Error("Reply run failed", fields...)
		return "pipeline_failed"
	}
	if duplicate {
		return "duplicate"
	}
	h.logger.Info("Reply delivered",
		zap.String("run_id", res.RunID),
		zap.String("winner", res.FinalAgentLabel),
		zap.Int("provider_status", res.Delivery.Receipt.StatusCode),
	)
	return "delivered"
}

// release drops the dedupe claim of an event that was never started, so a
// later delivery of it is not discarded.
func (h *InboundHandler) release(key string) {
	if h.dedupe == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.dedupe.Release(ctx, key); err != nil {
		h.logger.Warn("Failed to release dedupe claim", zap.Error(err))
	}
}

func parseInbound(w http.ResponseWriter, r *http.Request, maxBytes int64) (service.InboundEmail, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(32 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return service.InboundEmail{}, err
	}
	return service.InboundEmail{
		From:    strings.TrimSpace(r.PostFormValue("from")),
		Subject: strings.TrimSpace(r.PostFormValue("subject")),
		Text:    r.PostFormValue("text"),
	}, nil
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, AckBody)
}
