package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateReferralLink returns a new random referral token.
func GenerateReferralLink() string {
	return uuid.NewString()
}

// ReferralUrl joins the public link prefix and a referral token.
func ReferralUrl(base, link string) string {
	if base == "" {
		return link
	}
	if strings.HasSuffix(base, "=") || strings.HasSuffix(base, "/") {
		return base + link
	}
	return base + "/" + link
}
