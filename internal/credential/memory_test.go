package credential

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/anymail/internal/mailerr"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemory()

	_, err := s.Get("work")
	require.Error(t, err)
	assert.True(t, errors.Is(err, mailerr.ErrNoCredential))
	assert.Equal(t, mailerr.KindAuth, mailerr.KindOf(err))
	assert.False(t, Has(s, "work"))

	require.NoError(t, s.Set("work", "hunter2"))
	assert.True(t, Has(s, "work"))

	got, err := s.Get("work")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, s.Delete("work"))
	assert.Error(t, s.Delete("work"))
}

func TestMissingCredentialMessageDoesNotLeakOtherSecrets(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.Set("home", "s3cret-value"))

	_, err := s.Get("work")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cret-value")
}
