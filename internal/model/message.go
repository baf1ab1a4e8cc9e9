package model

import (
	"fmt"
	"time"
)

// MessageRef identifies a message within one folder of one profile.
// The UID is only meaningful inside that folder; a move yields a new ref.
type MessageRef struct {
	Profile string `json:"profile"`
	Folder  string `json:"folder"`
	UID     uint32 `json:"uid"`
}

func (r MessageRef) String() string {
	return fmt.Sprintf("%s:%s/%d", r.Profile, r.Folder, r.UID)
}

// Flags is the closed set of message flags exposed by anymail.
type Flags struct {
	Seen     bool `json:"seen"`
	Answered bool `json:"answered"`
	Flagged  bool `json:"flagged"`
}

// FlagName names one of the mutable message attributes.
type FlagName string

const (
	FlagSeen     FlagName = "seen"
	FlagStar     FlagName = "star"
	FlagAnswered FlagName = "answered"
)

// Location is where a message currently lives from the user's point of view.
type Location string

const (
	LocationInbox    Location = "inbox"
	LocationArchived Location = "archived"
	LocationTrashed  Location = "trashed"
)

// MessageSummary is the list/search view of a message.
type MessageSummary struct {
	Ref       MessageRef `json:"ref"`
	MessageID string     `json:"message_id"`
	From      string     `json:"from"`
	To        []string   `json:"to"`
	Subject   string     `json:"subject"`
	Date      time.Time  `json:"date"`
	Snippet   string     `json:"snippet"`
	Flags     Flags      `json:"flags"`
	Location  Location   `json:"location"`
}

// HeaderField is one header line. Order and duplicates are preserved.
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BodyPart is one leaf MIME part with its content decoded to text.
type BodyPart struct {
	PartID    string `json:"part_id"`
	MediaType string `json:"media_type"`
	Charset   string `json:"charset,omitempty"`
	Text      string `json:"text"`
}

// Attachment describes an attachment without its content. PartID is
// opaque and only used to request a save.
type Attachment struct {
	PartID      string `json:"part_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	ContentID   string `json:"content_id,omitempty"`
	Inline      bool   `json:"inline"`
}

// MessageDetail is the full read view of a message.
type MessageDetail struct {
	MessageSummary
	Cc          []string      `json:"cc"`
	Headers     []HeaderField `json:"headers"`
	Parts       []BodyPart    `json:"parts"`
	TextBody    string        `json:"body_plain"`
	HTMLBody    string        `json:"body_html"`
	Attachments []Attachment  `json:"attachments"`
}

// ReplyContext carries everything needed to compose a reply. It is
// derived on demand and never persisted.
type ReplyContext struct {
	To             []string `json:"to"`
	Cc             []string `json:"cc"`
	Subject        string   `json:"subject"`
	InReplyTo      string   `json:"in_reply_to"`
	References     []string `json:"references"`
	QuotedText     string   `json:"quoted_plaintext"`
	QuoteAvailable bool     `json:"quote_available"`
}

// FlagChange is one flag command. Seen and Star are applied when
// non-nil; Archive and Trash are mutually exclusive moves applied after
// them.
type FlagChange struct {
	Seen    *bool `json:"seen,omitempty"`
	Star    *bool `json:"star,omitempty"`
	Archive bool  `json:"archive,omitempty"`
	Trash   bool  `json:"trash,omitempty"`
}

// IsZero reports whether the change would do nothing.
func (c FlagChange) IsZero() bool {
	return c.Seen == nil && c.Star == nil && !c.Archive && !c.Trash
}
