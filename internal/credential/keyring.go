// Package credential keeps per-profile IMAP passwords in the platform
// secret store. Values are never logged or echoed.
package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/anymail/internal/mailerr"
)

const serviceName = "anymail"

// Store is the credential collaborator consumed by the orchestrator.
type Store interface {
	Get(profile string) (string, error)
	Set(profile, secret string) error
	Delete(profile string) error
}

// Keyring is a Store backed by the system keyring.
type Keyring struct {
	fileDir string
}

// NewKeyring returns a keyring store. fileDir is used only by the
// encrypted-file fallback backend.
func NewKeyring(configDir string) *Keyring {
	return &Keyring{fileDir: filepath.Join(configDir, "credentials")}
}

// openKeyring returns a configured keyring instance.
func (k *Keyring) openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  k.fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("anymail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, mailerr.Auth(err, "opening keyring: %v", err)
	}
	return ring, nil
}

// Get retrieves the secret stored for profile.
func (k *Keyring) Get(profile string) (string, error) {
	ring, err := k.openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(profile)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", mailerr.Auth(mailerr.ErrNoCredential,
			"no password stored for profile %q; use 'anymail auth set %s'", profile, profile)
	}
	if err != nil {
		return "", mailerr.Auth(err, "reading credential for profile %q: %v", profile, err)
	}

	return string(item.Data), nil
}

// Set stores secret for profile, replacing any previous value.
func (k *Keyring) Set(profile, secret string) error {
	ring, err := k.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   profile,
		Data:  []byte(secret),
		Label: fmt.Sprintf("anymail password (%s)", profile),
	})
	if err != nil {
		return mailerr.Auth(err, "storing credential for profile %q: %v", profile, err)
	}

	return nil
}

// Delete removes the secret for profile.
func (k *Keyring) Delete(profile string) error {
	ring, err := k.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(profile)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return mailerr.Auth(mailerr.ErrNoCredential, "no password stored for profile %q", profile)
	}
	if err != nil {
		return mailerr.Auth(err, "deleting credential for profile %q: %v", profile, err)
	}

	return nil
}

// Has reports whether a secret exists for profile.
func Has(s Store, profile string) bool {
	_, err := s.Get(profile)
	return err == nil
}
