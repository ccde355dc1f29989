package notification

import (
	"context"
	"strings"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonLogOnly          Reason = "log_only"
	ReasonNotConfigured    Reason = "not_configured"
	ReasonInvalidRecipient Reason = "invalid_recipient"
	ReasonTimeout          Reason = "timeout"
	ReasonTransport        Reason = "transport_error"
)

func (r Reason) String() string {
	switch r {
	case ReasonLogOnly, ReasonNotConfigured, ReasonInvalidRecipient, ReasonTimeout, ReasonTransport:
		return string(r)
	default:
		return "delivered"
	}
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound email. HTML is optional; Text is always sent.
type Message struct {
	To         string
	Subject    string
	Text       string
	HTML       string
	Attachment *Attachment
	// Kind labels the message in logs and metrics, e.g. "followup".
	Kind string
}

// Result is the explicit outcome of a send. Expected failures such as
// missing credentials are reported here, never as panics.
type Result struct {
	Delivered bool
	Reason    Reason
	Err       error
}

func Delivered() Result {
	return Result{Delivered: true}
}

func Failed(reason Reason, err error) Result {
	return Result{Delivered: false, Reason: reason, Err: err}
}

// Gateway sends a single email. It does not retry.
type Gateway interface {
	Send(ctx context.Context, msg Message) Result
}

func validRecipient(to string) bool {
	to = strings.TrimSpace(to)
	at := strings.LastIndex(to, "@")
	return at > 0 && at < len(to)-1 && !strings.ContainsAny(to, " \t\r\n")
}
