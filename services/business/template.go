package business

import "strings"

const (
	DefaultRewardValue = "10% off next service"
	// FallbackName stands in for a business without a display name.
	FallbackName = "our business"
)

// Placeholders recognised in template subjects and bodies.
const (
	PlaceholderCustomerName = "{customer_name}"
	PlaceholderBusinessName = "{business_name}"
	PlaceholderReviewLink   = "{review_link}"
)

// Vars fills template placeholders.
type Vars struct {
	CustomerName string
	BusinessName string
	ReviewLink   string
}

// Render substitutes every known placeholder in text. Unknown braces are
// left untouched.
func Render(text string, v Vars) string {
	return strings.NewReplacer(
		PlaceholderCustomerName, v.CustomerName,
		PlaceholderBusinessName, v.BusinessName,
		PlaceholderReviewLink, v.ReviewLink,
	).Replace(text)
}

type preset struct {
	name      string
	subject   string
	message   string
	isDefault bool
}

var presets = []preset{
	{
		name:    "Professional Classic",
		subject: "We'd love your feedback on your recent visit!",
		message: `Dear {customer_name},

Thank you for choosing {business_name} for your recent service. We hope you had a great experience!

We would really appreciate if you could take a moment to share your feedback about our service. Your review helps us improve and helps other customers make informed decisions.

Please click the link below to leave your review:
{review_link}

Thank you for your time and support!

Best regards,
{business_name} Team`,
		isDefault: true,
	},
	{
		name:    "Friendly & Personal",
		subject: "How was your experience with us? 😊",
		message: `Hi {customer_name}!

We hope you loved your recent visit to {business_name}!

Your opinion means the world to us, and we'd be so grateful if you could share your experience. It only takes a minute and helps other customers discover what makes us special.

Ready to share your thoughts?
{review_link}

Thanks a bunch!
The {business_name} family 💙`,
	},
	{
		name:    "Concise & Direct",
		subject: "Quick feedback request",
		message: `Hello {customer_name},

Thank you for visiting {business_name}.

We'd appreciate your quick feedback: {review_link}

Your review helps us serve you better.

Thanks,
{business_name}`,
	},
	{
		name:    "Gratitude-Focused",
		subject: "Thank you - we'd love to hear from you!",
		message: `Dear {customer_name},

We're truly grateful you chose {business_name} and wanted to reach out personally.

Your experience matters deeply to us. Whether everything went perfectly or there's something we could improve, we'd love to hear your honest thoughts.

Share your experience here: {review_link}

With sincere appreciation,
{business_name}

P.S. Your feedback helps us create better experiences for everyone!`,
	},
	{
		name:    "Value-Driven",
		subject: "Help others discover {business_name}!",
		message: `Hi {customer_name},

Thank you for being a valued customer of {business_name}!

Would you help other customers by sharing your experience? Your honest review helps people make confident decisions and supports local businesses like ours.

Leave your review: {review_link}

As a small token of our appreciation, customers who leave reviews are always welcomed with a smile and our best service!

Warmly,
{business_name} Team`,
	},
}

// DefaultSettings returns the settings every new business starts with.
func DefaultSettings(id, businessID string) *AutomationSettings {
	return &AutomationSettings{
		ID:                    id,
		BusinessID:            businessID,
		FollowUpEnabled:       true,
		FollowUpDelay1:        3,
		FollowUpDelay2:        7,
		FollowUpDelay3:        14,
		AIAutoReplyEnabled:    true,
		AITone:                ToneProfessional,
		ReportFrequency:       ReportWeekly,
		ReportRecipients:      []string{},
		ReferralRewardEnabled: true,
		ReferralRewardValue:   DefaultRewardValue,
	}
}
