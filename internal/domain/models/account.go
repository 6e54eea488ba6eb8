// internal/domain/models/account.go
package models

import (
	"strings"
	"time"
)

// Account tiers.
const (
	TierNone         = "none"
	TierPremiumTrial = "premium_trial"
	TierTrialExpired = "trial_expired"
	TierPro          = "pro"
	TierPremium      = "premium"
)

// Subscription statuses.
const (
	SubscriptionNone         = "none"
	SubscriptionTrial        = "trial"
	SubscriptionTrialExpired = "trial_expired"
	SubscriptionActive       = "active"
)

// TrialLength is how long an approved organization keeps premium access
// without paying.
const TrialLength = 30 * 24 * time.Hour

// Tiers lists every account tier.
var Tiers = []string{TierNone, TierPremiumTrial, TierTrialExpired, TierPro, TierPremium}

// IsTier reports whether s is a known tier.
func IsTier(s string) bool {
	for _, t := range Tiers {
		if t == s {
			return true
		}
	}
	return false
}

// NormalizeEmail is the account key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserAccount is the tenant provisioned from an approved request, keyed by
// the request's contact email.
type UserAccount struct {
	Email              string     `bson:"_id" json:"email"`
	OrganizationName   string     `bson:"organizationName" json:"organizationName"`
	OrganizationType   string     `bson:"organizationType" json:"organizationType"`
	CurrentTier        string     `bson:"currentTier" json:"currentTier"`
	SubscriptionStatus string     `bson:"subscriptionStatus" json:"subscriptionStatus"`
	TrialStartDate     *time.Time `bson:"trialStartDate,omitempty" json:"trialStartDate,omitempty"`
	TrialEndDate       *time.Time `bson:"trialEndDate,omitempty" json:"trialEndDate,omitempty"`
	TrialExpiredAt     *time.Time `bson:"trialExpiredAt,omitempty" json:"trialExpiredAt,omitempty"`
	CreatedAt          time.Time  `bson:"createdAt" json:"createdAt"`
	LastLoginAt        time.Time  `bson:"lastLoginAt" json:"lastLoginAt"`
	UpdatedAt          time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// TrialLapsed reports whether the account is still marked premium_trial
// although its trial end has passed.
func (a UserAccount) TrialLapsed(now time.Time) bool {
	return a.CurrentTier == TierPremiumTrial && a.TrialEndDate != nil && !now.Before(*a.TrialEndDate)
}

// InTrial reports whether the account currently holds a live trial.
func (a UserAccount) InTrial(now time.Time) bool {
	return a.CurrentTier == TierPremiumTrial && a.TrialEndDate != nil && now.Before(*a.TrialEndDate)
}

// Entitlements is the feature gate derived from a tier.
type Entitlements struct {
	Tier          string     `json:"tier"`
	Premium       bool       `json:"premium"`
	Pro           bool       `json:"pro"`
	PaymentNeeded bool       `json:"paymentNeeded"`
	TrialEndsAt   *time.Time `json:"trialEndsAt,omitempty"`
}

// EntitlementsFor derives the gate for an account. Callers must have
// re-validated trial expiration first.
func EntitlementsFor(a UserAccount) Entitlements {
	e := Entitlements{Tier: a.CurrentTier}
	switch a.CurrentTier {
	case TierPremiumTrial:
		e.Premium, e.Pro = true, true
		e.TrialEndsAt = a.TrialEndDate
	case TierPremium:
		e.Premium, e.Pro = true, true
	case TierPro:
		e.Pro = true
	case TierTrialExpired:
		e.PaymentNeeded = true
	}
	return e
}
