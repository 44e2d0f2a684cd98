package domain

import (
	"regexp"
	"time"
)

// Shop represents a merchant installation (one tenant)
type Shop struct {
	ID          string    `json:"id" bson:"_id"`
	Domain      string    `json:"domain" bson:"domain"`
	Name        string    `json:"name" bson:"name"`
	AccessToken string    `json:"-" bson:"access_token"` // stored encrypted
	Scopes      []string  `json:"scopes" bson:"scopes"`
	InstalledAt time.Time `json:"installed_at" bson:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// IsValidShopDomain reports whether s looks like a platform shop domain.
// Install requests carry merchant-supplied domains; anything else is
// rejected before it reaches an OAuth redirect.
func IsValidShopDomain(s string) bool {
	return shopDomainPattern.MatchString(s)
}
