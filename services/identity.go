// services/identity.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"agent-mission-system/models"

	"github.com/gosimple/unidecode"
)

// ErrInvalidIdentityInput is returned for malformed wallet addresses.
// Cryptographic authenticity is the wallet provider's problem, not ours.
var ErrInvalidIdentityInput = errors.New("invalid wallet address")

// Solana-style base58 public key, 32-44 chars
var publicKeyPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// IsValidWalletAddress reports whether addr looks like a base58 public key.
func IsValidWalletAddress(addr string) bool {
	return publicKeyPattern.MatchString(addr)
}

// ResolveCodename derives the agent codename from a wallet address.
// Pure and deterministic: the same address always yields the same codename.
// The digest suffix replaces the random suffix earlier revisions used, so
// recomputing the codename for a returning wallet is stable.
func ResolveCodename(walletAddress string) string {
	head := walletAddress
	if len(head) > 8 {
		head = head[:8]
	}
	prefix := strings.ToUpper(unidecode.Unidecode(head))
	sum := sha256.Sum256([]byte(walletAddress))
	return fmt.Sprintf("agent_%s_%s", prefix, hex.EncodeToString(sum[:2]))
}

// ResolveIdentity validates the wallet address and returns an unsaved Agent
// carrying the derived codename. No side effects, no I/O.
func ResolveIdentity(walletAddress string) (*models.Agent, error) {
	if !IsValidWalletAddress(walletAddress) {
		return nil, ErrInvalidIdentityInput
	}
	return &models.Agent{
		WalletAddress: walletAddress,
		Codename:      ResolveCodename(walletAddress),
		Level:         1,
	}, nil
}
