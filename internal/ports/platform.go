package ports

import (
	"context"
	"net/url"
)

// ShopInfo is the subset of the platform's shop resource we keep
type ShopInfo struct {
	Name   string
	Domain string
}

// PlatformClient covers the non-bulk Admin API surface: OAuth, shop
// lookup, webhook subscription management.
type PlatformClient interface {
	GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) string
	VerifyAuthorizationCallback(u *url.URL) bool
	ExchangeToken(ctx context.Context, shop string, code string, redirectURI string) (string, error)
	GetShopInfo(ctx context.Context, shopDomain string, accessToken string) (*ShopInfo, error)
	RegisterWebhooks(ctx context.Context, shopDomain, accessToken, callbackAddress string, topics []string) error
}
