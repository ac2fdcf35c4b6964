// Package mail is the outbound transport: one Send per delivered message.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ContentType of a delivered body.
type ContentType string

const (
	ContentHTML ContentType = "html"
	ContentText ContentType = "text"
)

// MIME returns the MIME type for the content type.
func (c ContentType) MIME() string {
	if c == ContentText {
		return "text/plain"
	}
	return "text/html"
}

// ParseContentType accepts "html"/"text" and their MIME forms.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html", "text/html":
		return ContentHTML, nil
	case "text", "plain", "text/plain":
		return ContentText, nil
	}
	return "", fmt.Errorf("unsupported content type %q", s)
}

// Message is one outbound email.
type Message struct {
	From        string      `json:"from"`
	To          string      `json:"to"`
	Subject     string      `json:"subject"`
	ContentType ContentType `json:"content_type"`
	Body        string      `json:"body"`
}

// Validate checks addresses and required fields.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: from %q: %v", ErrInvalidMessage, m.From, err)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: to %q: %v", ErrInvalidMessage, m.To, err)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Receipt is what the provider acknowledged.
type Receipt struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	MessageID  string `json:"message_id,omitempty"`
	Provider   string `json:"provider"`
}

// Transport sends a message exactly once per call; implementations must not
// retry internally.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

var ErrInvalidMessage = errors.New("invalid message")

// TransportError is a provider-level send failure.
type TransportError struct {
	Provider   string
	StatusCode int
	Detail     string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s send failed with status %d: %s", e.Provider, e.StatusCode, e.Detail)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s send failed: %s: %v", e.Provider, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s send failed: %s", e.Provider, e.Detail)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// AsTransportError extracts a TransportError from err's chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Domain returns the lower-cased domain of an address, or "".
func Domain(address string) string {
	a, err := mail.ParseAddress(address)
	if err != nil {
		return ""
	}
	at := strings.LastIndexByte(a.Address, '@')
	if at < 0 {
		return ""
	}
	return strings.ToLower(a.Address[at+1:])
}
