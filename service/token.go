package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/absolute0github/band-contract-plugin/model"
)

const (
	tokenBytes = 32
	tokenLen   = tokenBytes * 2

	DefaultTokenTTL = 30 * 24 * time.Hour
)

// Client facing reasons returned by CanSign.
const (
	MsgContractNotFound = "Contract not found."
	MsgLinkExpired      = "This contract link has expired. Please contact us for a new link."
	MsgAlreadySigned    = "This contract has already been signed."
	MsgCancelled        = "This contract has been cancelled."
	MsgNotAvailable     = "This contract is not available yet."
)

// TokenManager issues access tokens and decides whether a contract may be signed.
type TokenManager struct {
	ttl time.Duration
	now func() time.Time
}

func NewTokenManager(ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{ttl: ttl, now: time.Now}
}

// Generate returns 64 lowercase hex characters from crypto/rand.
func (m *TokenManager) Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ExpiresAt is the absolute expiry of a token issued at from.
func (m *TokenManager) ExpiresAt(from time.Time) time.Time {
	return from.Add(m.ttl).UTC().Truncate(time.Second)
}

// ValidTokenFormat checks shape only: 64 hex characters of either case.
func ValidTokenFormat(token string) bool {
	if len(token) != tokenLen {
		return false
	}
	for i := 0; i < len(token); i++ {
		ch := token[i]
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F') {
			return false
		}
	}
	return true
}

type Decision struct {
	Valid  bool
	Reason string
}

// CanSign reports the first failing precondition for signing c.
func (m *TokenManager) CanSign(c *model.Contract) Decision {
	switch {
	case c == nil:
		return Decision{Reason: MsgContractNotFound}
	case c.TokenExpired(m.now()):
		return Decision{Reason: MsgLinkExpired}
	case c.Status == model.StatusSigned:
		return Decision{Reason: MsgAlreadySigned}
	case c.Status == model.StatusCancelled:
		return Decision{Reason: MsgCancelled}
	case c.Status == model.StatusDraft:
		return Decision{Reason: MsgNotAvailable}
	}
	return Decision{Valid: true}
}
