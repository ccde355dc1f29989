package textgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"smallbiznis-reputation/pkg/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("textgen",
	fx.Provide(NewCompleter, NewAdapter),
)

type TaskKind string

const (
	TaskSentiment     TaskKind = "sentiment"
	TaskCategorize    TaskKind = "categorize"
	TaskDraftReply    TaskKind = "draft-reply"
	TaskDraftFollowUp TaskKind = "draft-followup-email"
)

func (k TaskKind) String() string {
	switch k {
	case TaskSentiment, TaskCategorize, TaskDraftReply, TaskDraftFollowUp:
		return string(k)
	default:
		return ""
	}
}

const (
	DefaultSentiment  = "neutral"
	DefaultConfidence = 0.5
	DefaultCategory   = "feedback"
	DefaultIncentive  = "10% off next service"
)

var sentiments = map[string]bool{
	"satisfied":  true,
	"confused":   true,
	"frustrated": true,
	"angry":      true,
	"neutral":    true,
}

var categories = map[string]bool{
	"complaint":  true,
	"praise":     true,
	"suggestion": true,
}

var toneStyles = map[string]string{
	"professional": "professional and courteous",
	"friendly":     "warm and friendly",
	"casual":       "casual and conversational",
}

type Request struct {
	Kind         TaskKind
	ReviewText   string
	Rating       int
	BusinessName string
	CustomerName string
	Tone         string
	Step         int
	Incentive    string
}

type Response struct {
	Sentiment  string
	Confidence float64
	Category   string
	Reply      string
	Subject    string
	Body       string
	// Fallback is set when the value is a documented default rather than
	// parsed model output.
	Fallback bool
}

// Adapter turns task requests into prompts and parses the replies. It never
// returns an error: transport failures, non-2xx replies and unparseable
// content all degrade to fixed defaults.
type Adapter struct {
	completer Completer
}

func NewAdapter(c Completer) *Adapter {
	return &Adapter{completer: c}
}

func (a *Adapter) Generate(ctx context.Context, req Request) Response {
	var res Response
	switch req.Kind {
	case TaskSentiment:
		res = a.sentiment(ctx, req.ReviewText)
	case TaskCategorize:
		res = a.categorize(ctx, req.ReviewText)
	case TaskDraftReply:
		res = a.reply(ctx, req)
	case TaskDraftFollowUp:
		res = a.followUp(ctx, req)
	default:
		zap.L().Warn("[TextGen] unknown task kind", zap.String("kind", string(req.Kind)))
		return Response{Fallback: true}
	}

	if res.Fallback {
		metrics.TextGenFallbacksTotal.WithLabelValues(req.Kind.String()).Inc()
	}
	return res
}

func (a *Adapter) AnalyzeSentiment(ctx context.Context, text string) (string, float64) {
	res := a.Generate(ctx, Request{Kind: TaskSentiment, ReviewText: text})
	return res.Sentiment, res.Confidence
}

func (a *Adapter) Categorize(ctx context.Context, text string) string {
	return a.Generate(ctx, Request{Kind: TaskCategorize, ReviewText: text}).Category
}

func (a *Adapter) DraftReply(ctx context.Context, text string, rating int, businessName, tone string) string {
	return a.Generate(ctx, Request{
		Kind:         TaskDraftReply,
		ReviewText:   text,
		Rating:       rating,
		BusinessName: businessName,
		Tone:         tone,
	}).Reply
}

func (a *Adapter) DraftFollowUp(ctx context.Context, customerName, businessName string, step int, incentive string) (string, string) {
	res := a.Generate(ctx, Request{
		Kind:         TaskDraftFollowUp,
		CustomerName: customerName,
		BusinessName: businessName,
		Step:         step,
		Incentive:    incentive,
	})
	return res.Subject, res.Body
}

func (a *Adapter) complete(ctx context.Context, kind TaskKind, prompt string, maxTokens int, temperature float64) (string, bool) {
	if a.completer == nil {
		return "", false
	}
	out, err := a.completer.Complete(ctx, prompt, maxTokens, temperature)
	if err != nil {
		zap.L().Warn("[TextGen] completion failed", zap.String("task", kind.String()), zap.Error(err))
		return "", false
	}
	return out, true
}

func (a *Adapter) sentiment(ctx context.Context, text string) Response {
	fallback := Response{Sentiment: DefaultSentiment, Confidence: DefaultConfidence, Fallback: true}

	out, ok := a.complete(ctx, TaskSentiment, sentimentPrompt(text), 100, 0.1)
	if !ok {
		return fallback
	}

	label, confidence, ok := ParseSentiment(out)
	if !ok {
		return fallback
	}
	return Response{Sentiment: label, Confidence: confidence}
}

// ParseSentiment reads the SENTIMENT:/CONFIDENCE: lines. A missing or
// unknown label makes the whole reply unparseable; a bad confidence alone
// falls back to 0.5.
func ParseSentiment(out string) (string, float64, bool) {
	label := ""
	confidence := DefaultConfidence

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SENTIMENT:"):
			label = strings.ToLower(strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "SENTIMENT:")), "[]."))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			v, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), "[]"), 64)
			if err == nil && v >= 0 && v <= 1 {
				confidence = v
			}
		}
	}

	if !sentiments[label] {
		return "", 0, false
	}
	return label, confidence, true
}

func (a *Adapter) categorize(ctx context.Context, text string) Response {
	out, ok := a.complete(ctx, TaskCategorize, categorizePrompt(text), 20, 0.1)
	if !ok {
		return Response{Category: DefaultCategory, Fallback: true}
	}

	category := strings.ToLower(strings.Trim(strings.TrimSpace(out), "."))
	if !categories[category] {
		return Response{Category: DefaultCategory, Fallback: true}
	}
	return Response{Category: category}
}

func (a *Adapter) reply(ctx context.Context, req Request) Response {
	out, ok := a.complete(ctx, TaskDraftReply, replyPrompt(req), 200, 0.7)
	if !ok {
		return Response{Reply: FallbackReply(req.Rating), Fallback: true}
	}
	return Response{Reply: out}
}

// FallbackReply is the fixed thank-you used when no draft can be generated.
func FallbackReply(rating int) string {
	return fmt.Sprintf("Thank you for your %d-star review. We appreciate your feedback and look forward to serving you again.", rating)
}

func (a *Adapter) followUp(ctx context.Context, req Request) Response {
	out, ok := a.complete(ctx, TaskDraftFollowUp, followUpPrompt(req), 300, 0.7)
	if !ok {
		subject, body := FallbackFollowUp(req.CustomerName, req.BusinessName)
		return Response{Subject: subject, Body: body, Fallback: true}
	}

	subject, body := ParseFollowUp(out)
	if subject == "" && body == "" {
		subject, body = FallbackFollowUp(req.CustomerName, req.BusinessName)
		return Response{Subject: subject, Body: body, Fallback: true}
	}
	if subject == "" {
		subject = fmt.Sprintf("Quick reminder - Share your experience with %s", req.BusinessName)
	}
	if body == "" {
		body = fmt.Sprintf("Hi %s,\n\nWe hope you enjoyed your recent experience with %s. Could you take a moment to share your feedback? It would mean a lot to us.\n\nThank you!", req.CustomerName, req.BusinessName)
	}
	return Response{Subject: subject, Body: body}
}

// ParseFollowUp reads "SUBJECT: ..." and everything from "BODY:" onwards.
func ParseFollowUp(out string) (string, string) {
	lines := strings.Split(out, "\n")
	subject, body := "", ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "SUBJECT:") {
			subject = strings.TrimSpace(strings.TrimPrefix(trimmed, "SUBJECT:"))
			continue
		}
		if strings.HasPrefix(trimmed, "BODY:") {
			rest := append([]string{strings.TrimPrefix(trimmed, "BODY:")}, lines[i+1:]...)
			body = strings.TrimSpace(strings.Join(rest, "\n"))
			break
		}
	}
	return subject, body
}

// FallbackFollowUp is the fixed nurture email used when drafting fails.
func FallbackFollowUp(customerName, businessName string) (string, string) {
	subject := fmt.Sprintf("Share your experience with %s", businessName)
	body := fmt.Sprintf("Hi %s,\n\nWe'd love to hear about your experience with %s. Your feedback helps us improve our service.\n\nThank you!", customerName, businessName)
	return subject, body
}
