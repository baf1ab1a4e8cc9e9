package mailerr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: fmt.Errorf("boom"), want: KindInternal},
		{name: "direct", err: Auth(ErrNoCredential, "no password for work"), want: KindAuth},
		{
			name: "wrapped",
			err:  fmt.Errorf("reading message: %w", Protocol(ErrMessageNotFound, "uid 4 not found")),
			want: KindProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("select: %w", Protocol(ErrFolderNotFound, "folder %q not found", "Archive"))

	assert.True(t, errors.Is(err, ErrFolderNotFound))
	assert.True(t, Is(err, KindProtocol))
	assert.False(t, Is(err, KindNetwork))
	assert.Equal(t, `folder "Archive" not found`, MessageOf(err))
}

func TestErrorString(t *testing.T) {
	err := Config(nil, "profile %q not found", "work")
	assert.Equal(t, `config_error: profile "work" not found`, err.Error())

	bare := &Error{Kind: KindNetwork, Err: ErrTimeout}
	assert.Equal(t, "network_error: operation timed out", bare.Error())
	assert.Equal(t, "network_error: operation timed out", MessageOf(bare))
}
