// Package mail owns one authenticated IMAP session per invocation: folder
// selection, search, fetch and the flag/move state machine that hides
// provider folder semantics behind archive and trash.
package mail

import (
	"context"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/anymail/internal/model"
)

// Folder is one mailbox returned by LIST.
type Folder struct {
	Name  string             `json:"name"`
	Attrs []imap.MailboxAttr `json:"attrs,omitempty"`
}

// HasAttr reports whether the folder carries attr.
func (f Folder) HasAttr(attr imap.MailboxAttr) bool {
	for _, a := range f.Attrs {
		if equalFoldAttr(a, attr) {
			return true
		}
	}
	return false
}

// FetchedMessage is one FETCH result. Raw holds the full message, or
// only its header block for header-only fetches.
type FetchedMessage struct {
	UID          imap.UID
	Flags        []imap.Flag
	InternalDate time.Time
	Raw          []byte
}

// Conn is the protocol surface a Session drives. Every call operates on
// the currently selected mailbox where IMAP requires one.
type Conn interface {
	Login(username, password string) error
	ListFolders() ([]Folder, error)
	Select(name string) error
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)
	Fetch(uids []imap.UID, headerOnly bool) ([]FetchedMessage, error)
	Store(uids []imap.UID, op imap.StoreFlagsOp, flags []imap.Flag) error

	// Move returns the UID assigned in dest, or 0 when the server did
	// not report one.
	Move(uid imap.UID, dest string) (imap.UID, error)

	Logout() error
	Close() error
}

// Dialer opens an unauthenticated Conn to the profile's IMAP endpoint.
type Dialer func(ctx context.Context, p model.Profile) (Conn, error)
