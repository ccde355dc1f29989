package notification

import (
	"context"
	"fmt"
	"io"
	"time"

	"smallbiznis-reputation/pkg/config"
	"smallbiznis-reputation/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var Module = fx.Module("notification", fx.Provide(NewSMTPGateway))

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPGateway struct {
	dialer     sender
	configured bool
	production bool
	from       string
	fromName   string
	timeout    time.Duration
}

func NewSMTPGateway(cfg *config.Config) Gateway {
	s := cfg.SMTP
	g := &SMTPGateway{
		configured: s.Host != "" && s.Username != "" && s.Password != "",
		production: cfg.IsProduction(),
		from:       s.FromEmail,
		fromName:   s.FromName,
		timeout:    s.Timeout,
	}
	if g.from == "" {
		g.from = s.Username
	}
	if g.timeout <= 0 {
		g.timeout = 30 * time.Second
	}
	if g.configured {
		g.dialer = gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	} else {
		zap.L().Warn("[Notification] SMTP credentials not configured", zap.Bool("production", g.production))
	}
	return g
}

func (g *SMTPGateway) Send(ctx context.Context, msg Message) Result {
	res := g.send(ctx, msg)
	metrics.NotificationsTotal.WithLabelValues(msg.Kind, res.Reason.String()).Inc()

	zapLog := zap.L().With(
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	switch {
	case res.Reason == ReasonLogOnly:
		zapLog.Info("[Notification] log-only mode, email not sent", zap.Bool("has_attachment", msg.Attachment != nil))
	case !res.Delivered:
		zapLog.Warn("[Notification] email not delivered", zap.String("reason", res.Reason.String()), zap.Error(res.Err))
	default:
		zapLog.Info("[Notification] email sent")
	}
	return res
}

func (g *SMTPGateway) send(ctx context.Context, msg Message) Result {
	if !validRecipient(msg.To) {
		return Failed(ReasonInvalidRecipient, fmt.Errorf("invalid recipient %q", msg.To))
	}

	if !g.configured {
		if g.production {
			return Failed(ReasonNotConfigured, fmt.Errorf("smtp credentials not configured"))
		}
		return Result{Delivered: true, Reason: ReasonLogOnly}
	}

	m := buildMessage(g.from, g.fromName, msg)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return Failed(ReasonTransport, err)
		}
		return Delivered()
	case <-ctx.Done():
		return Failed(ReasonTimeout, ctx.Err())
	}
}

func buildMessage(from, fromName string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if a := msg.Attachment; a != nil {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.ContentType},
			}))
		}
		m.Attach(a.Filename, settings...)
	}
	return m
}
