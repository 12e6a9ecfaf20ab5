// Package identity describes who the engine is currently working for.
// The surrounding application owns authentication; this package only
// assembles the narrow view the poller needs.
package identity

import (
	"fmt"

	"github.com/nhle/notify-engine/internal/credential"
	"github.com/nhle/notify-engine/internal/model"
)

// Identity is the current session's user, role, and bearer credential.
// The poller re-evaluates its Active/Inactive state whenever the
// identity handed to it changes.
type Identity struct {
	UserID     int64
	Role       model.Role
	Credential string
}

// credentialKey is the keyring key under which the session's bearer
// token is stored.
func credentialKey(userID int64) string {
	return fmt.Sprintf("bearer.%d", userID)
}

// Load assembles the identity for the locally signed-in account from
// the config's session section and the keyring-stored bearer token.
// A missing token means there is no active session.
func Load(cfg *model.AppConfig) (*Identity, error) {
	if cfg.Session.UserID == 0 {
		return nil, fmt.Errorf("no signed-in user in config")
	}

	token, err := credential.Get(credentialKey(cfg.Session.UserID))
	if err != nil {
		return nil, fmt.Errorf("loading bearer credential: %w", err)
	}

	return &Identity{
		UserID:     cfg.Session.UserID,
		Role:       model.Role(cfg.Session.Role),
		Credential: token,
	}, nil
}

// Store saves the bearer token for userID in the keyring.
func Store(userID int64, token string) error {
	return credential.Set(credentialKey(userID), token)
}

// Clear removes the stored bearer token for userID.
func Clear(userID int64) error {
	return credential.Delete(credentialKey(userID))
}
