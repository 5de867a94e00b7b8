package termsync

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "termsync"
	keyringUser    = "default"

	tokenEnvVar = "TERMSYNC_TOKEN"
)

// ErrNoToken is returned when no host token can be found anywhere.
var ErrNoToken = errors.New("termsync: no token configured")

// ResolveToken finds the host auth token: an explicitly supplied value wins,
// then the TERMSYNC_TOKEN environment variable, then the OS keyring.
func ResolveToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if tok := os.Getenv(tokenEnvVar); tok != "" {
		return tok, nil
	}
	tok, err := keyring.Get(keyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("termsync: keyring lookup failed: %w", err)
	}
	return tok, nil
}

// StoreToken saves a host token in the OS keyring.
func StoreToken(token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("termsync: keyring store failed: %w", err)
	}
	return nil
}

// ForgetToken removes a stored host token. Removing an absent token is not
// an error.
func ForgetToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("termsync: keyring delete failed: %w", err)
	}
	return nil
}

// AuthHeader builds handshake headers carrying a bearer token.
func AuthHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
