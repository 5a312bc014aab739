package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the default password hasher for account credentials.
// Passwords are pre-hashed with sha256 so bcrypt's 72-byte input cap
// never truncates them.
type BcryptHasher struct{}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}
