package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/domain"
	"shoppulse-ingest-layer/internal/ports"
)

// sessionTTL bounds how long a merchant has to finish the OAuth dance
const sessionTTL = 15 * time.Minute

// webhookTopics are the live-update topics every installation subscribes to
var webhookTopics = []string{
	"customers/create",
	"customers/update",
	"products/create",
	"products/update",
	"orders/create",
	"orders/updated",
}

// InstallService runs the OAuth installation flow: hand the merchant to
// the platform's consent screen, exchange the callback code for a
// token, persist the shop with the token encrypted, subscribe webhooks.
type InstallService struct {
	client      ports.PlatformClient
	shops       ports.ShopRepository
	sessions    ports.SessionRepository
	encryption  ports.EncryptionService
	scopes      []string
	callbackURL string
	webhookURL  string
	logger      zerolog.Logger
}

// NewInstallService creates an install service. callbackURL is the OAuth
// redirect target, webhookURL the address registered for event topics.
func NewInstallService(
	client ports.PlatformClient,
	shops ports.ShopRepository,
	sessions ports.SessionRepository,
	encryption ports.EncryptionService,
	scopes []string,
	callbackURL string,
	webhookURL string,
	logger zerolog.Logger,
) *InstallService {
	return &InstallService{
		client:      client,
		shops:       shops,
		sessions:    sessions,
		encryption:  encryption,
		scopes:      scopes,
		callbackURL: callbackURL,
		webhookURL:  webhookURL,
		logger:      logger,
	}
}

func generateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// BeginInstall starts the OAuth flow for a shop and returns the consent
// URL to redirect the merchant to
func (s *InstallService) BeginInstall(ctx context.Context, shopDomain, returnURL string) (string, error) {
	if !domain.IsValidShopDomain(shopDomain) {
		return "", fmt.Errorf("invalid shop domain %q", shopDomain)
	}

	state, err := generateState()
	if err != nil {
		return "", err
	}

	session := &domain.Session{
		ID:        state,
		Shop:      shopDomain,
		State:     state,
		Scopes:    s.scopes,
		ReturnURL: returnURL,
		ExpiresAt: time.Now().Add(sessionTTL),
		CreatedAt: time.Now(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return "", err
	}

	return s.client.GenerateAuthURL(shopDomain, s.scopes, s.callbackURL, state), nil
}

// CompleteInstall finishes the OAuth flow after the platform redirects
// back: verifies the callback signature and the state nonce, exchanges
// the code, stores the shop with its token encrypted, registers
// webhooks. Returns the installed shop and the session's return URL.
func (s *InstallService) CompleteInstall(ctx context.Context, callbackURL *url.URL, shopDomain, code, state string) (*domain.Shop, string, error) {
	if !s.client.VerifyAuthorizationCallback(callbackURL) {
		return nil, "", fmt.Errorf("invalid OAuth callback signature")
	}

	session, err := s.sessions.GetSession(ctx, state)
	if err != nil {
		return nil, "", err
	}
	if session == nil || session.Shop != shopDomain {
		return nil, "", fmt.Errorf("invalid or expired OAuth state")
	}
	if err := s.sessions.DeleteSession(ctx, state); err != nil {
		s.logger.Warn().Err(err).Str("shop", shopDomain).Msg("Failed to delete OAuth session")
	}

	token, err := s.client.ExchangeToken(ctx, shopDomain, code, s.callbackURL)
	if err != nil {
		return nil, "", err
	}

	info, err := s.client.GetShopInfo(ctx, shopDomain, token)
	if err != nil {
		return nil, "", err
	}

	encrypted, err := s.encryption.Encrypt(token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	existing, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return nil, "", err
	}

	shop := &domain.Shop{
		Domain:      shopDomain,
		Name:        info.Name,
		AccessToken: encrypted,
		Scopes:      session.Scopes,
	}
	if existing != nil {
		shop.ID = existing.ID
		shop.InstalledAt = existing.InstalledAt
	} else {
		shop.ID = shopDomain
		shop.InstalledAt = time.Now()
	}

	if err := s.shops.SaveShop(ctx, shop); err != nil {
		return nil, "", err
	}

	if err := s.client.RegisterWebhooks(ctx, shopDomain, token, s.webhookURL, webhookTopics); err != nil {
		// the installation stands; webhook registration can be retried
		s.logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to register webhooks")
	}

	s.logger.Info().
		Str("shop", shopDomain).
		Str("name", info.Name).
		Msg("Shop installed")

	return shop, session.ReturnURL, nil
}
