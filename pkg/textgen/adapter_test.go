package textgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smallbiznis-reputation/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeCompleter struct {
	out     string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func TestSentimentFallsBackOnError(t *testing.T) {
	a := NewAdapter(&fakeCompleter{err: errors.New("503")})

	label, confidence := a.AnalyzeSentiment(context.Background(), "meh")
	require.Equal(t, "neutral", label)
	require.Equal(t, 0.5, confidence)
}

func TestSentimentFallsBackWithoutCompleter(t *testing.T) {
	a := NewAdapter(nil)

	label, confidence := a.AnalyzeSentiment(context.Background(), "great")
	require.Equal(t, "neutral", label)
	require.Equal(t, 0.5, confidence)
}

func TestSentimentParsesReply(t *testing.T) {
	a := NewAdapter(&fakeCompleter{out: "SENTIMENT: Frustrated\nCONFIDENCE: 0.82"})

	label, confidence := a.AnalyzeSentiment(context.Background(), "slow service")
	require.Equal(t, "frustrated", label)
	require.InDelta(t, 0.82, confidence, 1e-9)
}

func TestSentimentUnparseable(t *testing.T) {
	cases := []string{
		"I think the customer is happy",
		"SENTIMENT: ecstatic\nCONFIDENCE: 0.9",
	}
	for _, out := range cases {
		res := NewAdapter(&fakeCompleter{out: out}).Generate(context.Background(), Request{Kind: TaskSentiment})
		require.True(t, res.Fallback, out)
		require.Equal(t, "neutral", res.Sentiment)
		require.Equal(t, 0.5, res.Confidence)
	}
}

func TestSentimentBadConfidenceKeepsLabel(t *testing.T) {
	label, confidence, ok := ParseSentiment("SENTIMENT: angry\nCONFIDENCE: very")
	require.True(t, ok)
	require.Equal(t, "angry", label)
	require.Equal(t, 0.5, confidence)
}

func TestCategorize(t *testing.T) {
	require.Equal(t, "praise", NewAdapter(&fakeCompleter{out: "Praise."}).Categorize(context.Background(), "x"))
	require.Equal(t, "feedback", NewAdapter(&fakeCompleter{out: "question"}).Categorize(context.Background(), "x"))
	require.Equal(t, "feedback", NewAdapter(&fakeCompleter{err: errors.New("down")}).Categorize(context.Background(), "x"))
}

func TestDraftReplyFallback(t *testing.T) {
	a := NewAdapter(&fakeCompleter{err: errors.New("timeout")})

	reply := a.DraftReply(context.Background(), "ok", 4, "Acme", "friendly")
	require.Equal(t, "Thank you for your 4-star review. We appreciate your feedback and look forward to serving you again.", reply)
}

func TestDraftReplyUsesTone(t *testing.T) {
	fc := &fakeCompleter{out: "Thanks so much!"}
	a := NewAdapter(fc)

	require.Equal(t, "Thanks so much!", a.DraftReply(context.Background(), "loved it", 5, "Acme", "casual"))
	require.Contains(t, fc.prompts[0], "casual and conversational")
	require.Contains(t, fc.prompts[0], "Rating: 5/5 stars")
}

func TestDraftFollowUp(t *testing.T) {
	fc := &fakeCompleter{out: "SUBJECT: We miss you\nBODY: Hi Jane,\n\nPlease review us."}
	a := NewAdapter(fc)

	subject, body := a.DraftFollowUp(context.Background(), "Jane", "Acme", 3, "")
	require.Equal(t, "We miss you", subject)
	require.Equal(t, "Hi Jane,\n\nPlease review us.", body)
	require.Contains(t, fc.prompts[0], "10% off next service")
}

func TestDraftFollowUpFallback(t *testing.T) {
	a := NewAdapter(&fakeCompleter{err: errors.New("boom")})

	subject, body := a.DraftFollowUp(context.Background(), "Jane", "Acme", 1, "")
	require.Equal(t, "Share your experience with Acme", subject)
	require.True(t, strings.HasPrefix(body, "Hi Jane,"))
}

func TestDraftFollowUpPartialReply(t *testing.T) {
	a := NewAdapter(&fakeCompleter{out: "BODY: just the body"})

	subject, body := a.DraftFollowUp(context.Background(), "Jane", "Acme", 2, "")
	require.Equal(t, "Quick reminder - Share your experience with Acme", subject)
	require.Equal(t, "just the body", body)
}

func TestChatClient(t *testing.T) {
	var gotPath, gotAuth string
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" praise "}}]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.AI.BaseURL = srv.URL
	cfg.AI.APIKey = "secret"
	cfg.AI.Model = "mistral-small-latest"
	cfg.AI.Timeout = time.Second

	out, err := NewCompleter(cfg).Complete(context.Background(), "hi", 10, 0.1)
	require.NoError(t, err)
	require.Equal(t, "praise", out)
	require.Equal(t, "/chat/completions", gotPath)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "mistral-small-latest", got.Model)
	require.Equal(t, "hi", got.Messages[0].Content)
}

func TestChatClientNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.AI.BaseURL = srv.URL
	cfg.AI.APIKey = "secret"

	_, err := NewCompleter(cfg).Complete(context.Background(), "hi", 10, 0.1)
	require.Error(t, err)
}

func TestUnconfiguredCompleter(t *testing.T) {
	_, err := NewCompleter(&config.Config{}).Complete(context.Background(), "hi", 10, 0.1)
	require.ErrorIs(t, err, ErrNotConfigured)
}
