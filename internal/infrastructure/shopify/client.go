package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/ports"
)

// Client wraps the Shopify Admin API for everything outside the bulk
// export path: OAuth, shop lookup, webhook subscription management.
type Client struct {
	apiKey     string
	apiSecret  string
	apiVersion string
	app        goshopify.App
	logger     zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(apiKey, apiSecret, apiVersion string, logger zerolog.Logger) *Client {
	app := goshopify.App{
		ApiKey:    apiKey,
		ApiSecret: apiSecret,
	}
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		apiVersion: apiVersion,
		app:        app,
		logger:     logger,
	}
}

func (c *Client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken, goshopify.WithVersion(c.apiVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// GenerateAuthURL builds the merchant-facing OAuth authorization URL.
// Shopify expects scopes comma-separated without spaces, and the
// redirect_uri must match the one used at token exchange.
func (c *Client) GenerateAuthURL(shop string, scopes []string, redirectURI string, state string) string {
	scopesStr := strings.Join(scopes, ",")

	c.logger.Info().
		Str("shop", shop).
		Str("scopes", scopesStr).
		Msg("Generating OAuth authorization URL")

	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(scopesStr),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)
}

// VerifyAuthorizationCallback checks the hmac signature the platform
// attaches to the OAuth callback query string
func (c *Client) VerifyAuthorizationCallback(u *url.URL) bool {
	ok, err := c.app.VerifyAuthorizationURL(u)
	return err == nil && ok
}

// ExchangeToken swaps an authorization code for a permanent access token.
// The go-shopify GetAccessToken helper does not expose redirect_uri, so
// when one is required we call the token endpoint directly.
func (c *Client) ExchangeToken(ctx context.Context, shop string, code string, redirectURI string) (string, error) {
	if redirectURI == "" {
		token, err := c.app.GetAccessToken(ctx, shop, code)
		if err != nil {
			return "", fmt.Errorf("failed to exchange token: %w", err)
		}
		return token, nil
	}

	tokenURL := fmt.Sprintf("https://%s/admin/oauth/access_token", shop)

	values := url.Values{}
	values.Set("client_id", c.apiKey)
	values.Set("client_secret", c.apiSecret)
	values.Set("code", code)
	values.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty access token")
	}

	return tokenResp.AccessToken, nil
}

// GetShopInfo fetches the shop resource for a freshly installed store
func (c *Client) GetShopInfo(ctx context.Context, shopDomain string, accessToken string) (*ports.ShopInfo, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}

	shop, err := client.Shop.Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get shop info: %w", err)
	}
	return &ports.ShopInfo{Name: shop.Name, Domain: shop.Domain}, nil
}

// RegisterWebhooks subscribes the given callback address to the topics
// we ingest. Already-subscribed topics are logged and skipped, not
// treated as failures.
func (c *Client) RegisterWebhooks(ctx context.Context, shopDomain, accessToken, callbackAddress string, topics []string) error {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}

	for _, topic := range topics {
		_, err := client.Webhook.Create(ctx, goshopify.Webhook{
			Topic:   topic,
			Address: callbackAddress,
			Format:  "json",
		})
		if err != nil {
			if strings.Contains(err.Error(), "already been taken") {
				c.logger.Debug().
					Str("shop", shopDomain).
					Str("topic", topic).
					Msg("Webhook already registered")
				continue
			}
			return fmt.Errorf("failed to register webhook for topic %s: %w", topic, err)
		}

		c.logger.Info().
			Str("shop", shopDomain).
			Str("topic", topic).
			Msg("Registered webhook")
	}

	return nil
}
