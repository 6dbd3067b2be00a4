package ports

import "context"

// PasswordHasher is a one-way, salted password transform.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. A malformed hash is a
	// mismatch, not an error.
	Verify(ctx context.Context, plaintext, hash string) bool
}
