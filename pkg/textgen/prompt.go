package textgen

import "fmt"

func sentimentPrompt(text string) string {
	return fmt.Sprintf(`Analyze the sentiment of this customer review and categorize it as one of: satisfied, confused, frustrated, angry, neutral.

Review: "%s"

Respond with only the sentiment category and a confidence score (0-1) in this exact format:
SENTIMENT: [category]
CONFIDENCE: [score]`, text)
}

func categorizePrompt(text string) string {
	return fmt.Sprintf(`Categorize this customer feedback as one of: complaint, praise, suggestion

Feedback: "%s"

Respond with only the category:`, text)
}

func replyPrompt(req Request) string {
	style, ok := toneStyles[req.Tone]
	if !ok {
		style = toneStyles["professional"]
	}

	return fmt.Sprintf(`You are a customer service representative for %s. Generate a %s response to this customer review.

Rating: %d/5 stars
Review: "%s"

Guidelines:
- Be empathetic and understanding
- Thank the customer for their feedback
- Address specific concerns if rating is low
- For high ratings, express gratitude and encourage future visits
- Keep response under 150 words
- Be genuine and avoid overly scripted language

Response:`, req.BusinessName, style, req.Rating, req.ReviewText)
}

func followUpPrompt(req Request) string {
	incentive := req.Incentive
	if incentive == "" {
		incentive = DefaultIncentive
	}

	var prompt string
	switch req.Step {
	case 2:
		prompt = fmt.Sprintf("Write a second follow-up email to %s emphasizing the importance of customer feedback for %s. Mention how reviews help improve service.", req.CustomerName, req.BusinessName)
	case 3:
		prompt = fmt.Sprintf("Write a final follow-up email to %s offering a small incentive: %s in exchange for an honest review of %s.", req.CustomerName, incentive, req.BusinessName)
	default:
		prompt = fmt.Sprintf("Write a friendly reminder email asking %s to leave a review for %s. Keep it brief and polite.", req.CustomerName, req.BusinessName)
	}

	return prompt + "\n\nProvide both a subject line and email body. Format as:\nSUBJECT: [subject]\nBODY: [body]"
}
