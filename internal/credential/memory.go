package credential

import (
	"sync"

	"github.com/nhle/anymail/internal/mailerr"
)

// Memory is an in-process Store. It backs tests and keyring-less runs.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

func (m *Memory) Get(profile string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[profile]
	if !ok {
		return "", mailerr.Auth(mailerr.ErrNoCredential, "no password stored for profile %q", profile)
	}
	return secret, nil
}

func (m *Memory) Set(profile, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[profile] = secret
	return nil
}

func (m *Memory) Delete(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[profile]; !ok {
		return mailerr.Auth(mailerr.ErrNoCredential, "no password stored for profile %q", profile)
	}
	delete(m.secrets, profile)
	return nil
}
