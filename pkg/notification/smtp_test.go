package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"smallbiznis-reputation/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSender struct {
	err   error
	delay time.Duration
	sent  []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func TestSendLogOnlyWhenUnconfiguredInDevelopment(t *testing.T) {
	gw := NewSMTPGateway(&config.Config{AppEnv: "development"})

	res := gw.Send(context.Background(), Message{To: "jane@example.com", Subject: "hi", Text: "body"})
	require.True(t, res.Delivered)
	require.Equal(t, ReasonLogOnly, res.Reason)
}

func TestSendNotConfiguredInProduction(t *testing.T) {
	gw := NewSMTPGateway(&config.Config{AppEnv: "production"})

	res := gw.Send(context.Background(), Message{To: "jane@example.com", Subject: "hi", Text: "body"})
	require.False(t, res.Delivered)
	require.Equal(t, ReasonNotConfigured, res.Reason)
	require.Error(t, res.Err)
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	gw := NewSMTPGateway(&config.Config{AppEnv: "development"})

	for _, to := range []string{"", "jane", "@example.com", "jane@", "ja ne@example.com"} {
		res := gw.Send(context.Background(), Message{To: to})
		require.False(t, res.Delivered, to)
		require.Equal(t, ReasonInvalidRecipient, res.Reason, to)
	}
}

func TestSendDeliversThroughDialer(t *testing.T) {
	fs := &fakeSender{}
	gw := &SMTPGateway{dialer: fs, configured: true, from: "noreply@example.com", timeout: time.Second}

	res := gw.Send(context.Background(), Message{
		To:         "jane@example.com",
		Subject:    "Report",
		Text:       "attached",
		Attachment: &Attachment{Filename: "report.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	require.True(t, res.Delivered)
	require.Len(t, fs.sent, 1)
	require.Equal(t, []string{"Report"}, fs.sent[0].GetHeader("Subject"))
}

func TestSendTransportError(t *testing.T) {
	fs := &fakeSender{err: errors.New("connection refused")}
	gw := &SMTPGateway{dialer: fs, configured: true, from: "noreply@example.com", timeout: time.Second}

	res := gw.Send(context.Background(), Message{To: "jane@example.com"})
	require.False(t, res.Delivered)
	require.Equal(t, ReasonTransport, res.Reason)
}

func TestSendTimesOut(t *testing.T) {
	fs := &fakeSender{delay: 200 * time.Millisecond}
	gw := &SMTPGateway{dialer: fs, configured: true, from: "noreply@example.com", timeout: 10 * time.Millisecond}

	res := gw.Send(context.Background(), Message{To: "jane@example.com"})
	require.False(t, res.Delivered)
	require.Equal(t, ReasonTimeout, res.Reason)
}
