package application

import (
	"context"
	"fmt"

	"shoppulse-ingest-layer/internal/ports"
)

// CredentialService resolves a shop's decrypted access token from the
// shop record. Tokens live encrypted at rest and are only decrypted on
// the way into an API call.
type CredentialService struct {
	shops      ports.ShopRepository
	encryption ports.EncryptionService
}

// NewCredentialService creates a credential service
func NewCredentialService(shops ports.ShopRepository, encryption ports.EncryptionService) *CredentialService {
	return &CredentialService{shops: shops, encryption: encryption}
}

// AccessToken returns the decrypted access token for a shop
func (s *CredentialService) AccessToken(ctx context.Context, shopDomain string) (string, error) {
	shop, err := s.shops.GetShop(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	if shop == nil {
		return "", fmt.Errorf("shop %s is not installed", shopDomain)
	}

	token, err := s.encryption.Decrypt(shop.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}
