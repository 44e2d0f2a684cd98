package ports

import "context"

// EncryptionService encrypts access tokens before storage
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// CredentialProvider resolves the decrypted access credential for a shop
type CredentialProvider interface {
	AccessToken(ctx context.Context, shopDomain string) (string, error)
}

// SyncLocker is the per-tenant single-flight guard for full sync runs.
// Acquire returns false when another run already holds the lease.
type SyncLocker interface {
	Acquire(ctx context.Context, shopID string) (bool, error)
	Release(ctx context.Context, shopID string) error
}
