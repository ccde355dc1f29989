package referral

import "fmt"

const RewardSubject = "Thank you for your 5-star review! + Exclusive referral rewards"

func RewardBody(customerName, businessName, reward, link string) string {
	return fmt.Sprintf(`Dear %[1]s,

Thank you so much for your 5-star review! We're thrilled that you had such a positive experience with %[2]s.

As a token of our appreciation, we'd like to offer you %[3]s and invite you to share %[2]s with friends and family.

Your personal referral link: %[4]s

When someone books through your link, they'll receive a special welcome offer, and you'll get additional rewards!

Thank you again for your support.

Best regards,
%[2]s Team`, customerName, businessName, reward, link)
}
