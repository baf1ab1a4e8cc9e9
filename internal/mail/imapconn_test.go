package mail

import (
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
)

func TestNeedsPlainExpunge(t *testing.T) {
	caps := func(cs ...imap.Cap) imap.CapSet {
		set := imap.CapSet{}
		for _, c := range cs {
			set[c] = struct{}{}
		}
		return set
	}

	assert.True(t, needsPlainExpunge(caps(imap.CapIMAP4rev1)))
	assert.False(t, needsPlainExpunge(caps(imap.CapIMAP4rev1, imap.CapMove)))
	assert.False(t, needsPlainExpunge(caps(imap.CapIMAP4rev1, imap.CapUIDPlus)))
	assert.False(t, needsPlainExpunge(caps(imap.CapIMAP4rev2)))
}

func TestOtherUIDs(t *testing.T) {
	assert.Empty(t, otherUIDs([]imap.UID{7}, 7))
	assert.Empty(t, otherUIDs(nil, 7))
	assert.Equal(t, []imap.UID{3, 9}, otherUIDs([]imap.UID{3, 7, 9}, 7))
}
