// Package identity holds the account rules shared by the HTTP handlers and
// the lifectl tool: password policy and hashing, username derivation,
// session tokens and email verification codes.
package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// VerificationCodeTTLSeconds is how long a signup code stays valid.
const VerificationCodeTTLSeconds = 600

// ErrWeakPassword wraps every password policy failure.
var ErrWeakPassword = errors.New("weak password")

// dummyHash is compared against when a login email isn't found, so unknown
// accounts take as long to reject as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

// CheckPassword enforces the signup password policy: at least 8 characters
// with an uppercase letter, a lowercase letter, a digit and a symbol.
func CheckPassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrWeakPassword)
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: must contain a digit", ErrWeakPassword)
	case !special:
		return fmt.Errorf("%w: must contain a special character", ErrWeakPassword)
	}
	return nil
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ComparePassword reports whether pw matches hash. An empty hash (an account
// that only signs in through Google, or an unknown email) is checked against
// a dummy hash and never matches.
func ComparePassword(hash, pw string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NewToken returns a fresh opaque session token.
func NewToken() string {
	return uuid.New().String()
}

// NewVerificationCode returns a random 6-digit numeric code.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// VerificationKey is the cache key a signup code is stored under.
func VerificationKey(email string) string {
	return "verification_code_" + email
}

// UsernameTaken reports whether a username is already in use.
type UsernameTaken func(ctx context.Context, username string) (bool, error)

// DeriveUsername builds a username from the local part of email, appending
// 1, 2, ... until taken reports it free.
func DeriveUsername(ctx context.Context, email string, taken UsernameTaken) (string, error) {
	base, _, _ := strings.Cut(email, "@")
	if base == "" {
		return "", fmt.Errorf("derive username: email %q has no local part", email)
	}
	candidate := base
	for i := 1; ; i++ {
		exists, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("derive username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
