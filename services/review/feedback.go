package review

import (
	"fmt"
	"strings"
)

type issue struct {
	key   string
	label string
}

var feedbackIssues = []issue{
	{"service_quality", "Service Quality"},
	{"staff_behavior", "Staff Behavior"},
	{"cleanliness", "Cleanliness"},
	{"wait_time", "Wait Time"},
	{"pricing", "Pricing"},
	{"communication", "Communication"},
	{"other", "Other"},
}

// FeedbackIssues lists the issue labels offered on the detailed feedback form.
func FeedbackIssues() []string {
	out := make([]string, 0, len(feedbackIssues))
	for _, i := range feedbackIssues {
		out = append(out, i.label)
	}
	return out
}

// normalizeIssues maps form keys or labels onto labels in form order,
// dropping duplicates. Unknown values are returned as the second result.
func normalizeIssues(in []string) ([]string, []string) {
	selected := map[string]bool{}
	var unknown []string
	for _, raw := range in {
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		found := false
		for _, i := range feedbackIssues {
			if strings.EqualFold(v, i.key) || strings.EqualFold(v, i.label) {
				selected[i.label] = true
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, v)
		}
	}

	out := make([]string, 0, len(selected))
	for _, i := range feedbackIssues {
		if selected[i.label] {
			out = append(out, i.label)
		}
	}
	return out, unknown
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// FormatDetailedFeedback merges the structured low-rating feedback into the
// review comment.
func FormatDetailedFeedback(original string, issues []string, whatWentWrong, suggestions string, contactMe bool) string {
	identified := "None specified"
	if len(issues) > 0 {
		identified = strings.Join(issues, ", ")
	}
	contact := "No"
	if contactMe {
		contact = "Yes"
	}

	return fmt.Sprintf("Original Comment: %s\n\nIssues Identified: %s\n\nWhat went wrong: %s\n\nSuggestions for improvement: %s\n\nContact requested: %s",
		strings.TrimSpace(original),
		identified,
		orDefault(whatWentWrong, "Not specified"),
		orDefault(suggestions, "Not specified"),
		contact,
	)
}

func lowRatingSubject(rating int, customerName string) string {
	return fmt.Sprintf("Low Rating Alert - %d stars from %s", rating, customerName)
}

func lowRatingBody(rating int, customerName, comment string) string {
	return fmt.Sprintf("You have received a %d-star review from %s.\n\nComment: %s\n\nPlease log into your dashboard to respond to this review.",
		rating, customerName, comment)
}

func responseSubject(businessName string) string {
	return fmt.Sprintf("Thank you for your review - %s", businessName)
}
