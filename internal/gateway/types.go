// Package gateway defines the typed operations of the tierdash backend:
// login, signup, profile and dashboard fetch, tailored content, plan
// management and health. Shapes only; all transport behavior lives in the
// api client.
package gateway

// Tier is a subscription level controlling entitlements.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known subscription tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// User is the authenticated user's profile.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	PackageTier Tier   `json:"package_tier"`
}

// TokenResponse is returned by login and signup.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Plan is the account's current subscription plan.
type Plan struct {
	PackageTier Tier `json:"package_tier"`
}

// Content is the tier-tailored content served to authenticated users.
type Content struct {
	PackageTier Tier     `json:"package_tier"`
	Message     string   `json:"message"`
	Items       []string `json:"items"`
}
