package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Profiles)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultTimeoutSec, cfg.TimeoutSec)
	assert.Equal(t, DefaultSnippetMaxBytes, cfg.SnippetMaxBytes)
	assert.ElementsMatch(t, DefaultRedactFields, cfg.Audit.RedactFields)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultAppConfig()
	work := NewGmailProfile("work", "me@work.example")
	custom := Profile{
		Name:     "home",
		Email:    "me@home.example",
		IMAPHost: "mail.home.example",
		IMAPPort: 143,
	}
	cfg.Profiles = []Profile{work, custom}
	cfg.TimeoutSec = 30

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Profiles, 2)

	assert.Equal(t, work, loaded.Profiles[0])
	assert.Equal(t, 30, loaded.TimeoutSec)

	home := loaded.Profiles[1]
	assert.Equal(t, "mail.home.example", home.IMAPHost)
	assert.Equal(t, 143, home.IMAPPort)
	assert.Equal(t, DefaultFolderTrash, home.FolderTrash, "defaults applied to sparse profiles")
	assert.Equal(t, DefaultStarFlag, home.StarFlag)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	t.Setenv("ANYMAIL_TIMEOUT_SEC", "15")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ANYMAIL_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ANYMAIL_LOG_LEVEL") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.TimeoutSec)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestAuditDBPath(t *testing.T) {
	cfg := DefaultAppConfig()
	assert.Equal(t, filepath.Join("/etc/anymail", "anymail.db"), cfg.AuditDBPath("/etc/anymail/config.yaml"))

	cfg.Audit.DBPath = "/var/lib/anymail/log.db"
	assert.Equal(t, "/var/lib/anymail/log.db", cfg.AuditDBPath("/etc/anymail/config.yaml"))
}

func TestProfileValidate(t *testing.T) {
	p := NewGmailProfile("work", "me@work.example")
	assert.NoError(t, p.Validate())

	p.Email = ""
	assert.Error(t, p.Validate())

	p = NewGmailProfile("work", "me@work.example")
	p.IMAPPort = 70000
	assert.Error(t, p.Validate())
}
