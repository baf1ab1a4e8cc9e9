package mail

import (
	"context"
	"slices"
	"strings"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// Parts selects what Fetch returns beyond the summary.
type Parts struct {
	Headers     bool
	Body        bool
	Attachments bool
}

// AllParts requests headers, bodies and the attachment index.
func AllParts() Parts {
	return Parts{Headers: true, Body: true, Attachments: true}
}

func (p Parts) headerOnly() bool {
	return !p.Body && !p.Attachments
}

// SearchUIDs returns refs matching criteria in folder, newest first,
// capped at limit when limit > 0. No message content is fetched.
func (s *Session) SearchUIDs(ctx context.Context, folder string, criteria Criteria, limit int) ([]model.MessageRef, error) {
	if folder == "" {
		folder = s.profile.FolderInbox
	}

	sc, err := criteria.Build(s.now())
	if err != nil {
		return nil, err
	}

	if err := s.SelectFolder(ctx, folder); err != nil {
		return nil, err
	}

	uids, err := s.conn.UIDSearch(sc)
	if err != nil {
		return nil, s.wrap(ctx, err, "searching %q", folder)
	}

	slices.SortFunc(uids, func(a, b imap.UID) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	})
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	refs := make([]model.MessageRef, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, s.ref(folder, uid))
	}
	return refs, nil
}

// ListMessages returns summaries of the messages in folder matching
// criteria, newest first. The limit is applied after ordering.
func (s *Session) ListMessages(ctx context.Context, folder string, criteria Criteria, limit int) ([]model.MessageSummary, error) {
	refs, err := s.SearchUIDs(ctx, folder, criteria, limit)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []model.MessageSummary{}, nil
	}

	uids := make([]imap.UID, len(refs))
	for i, r := range refs {
		uids[i] = imap.UID(r.UID)
	}

	fetched, err := s.conn.Fetch(uids, false)
	if err != nil {
		return nil, s.wrap(ctx, err, "fetching %d messages from %q", len(uids), refs[0].Folder)
	}

	byUID := make(map[imap.UID]FetchedMessage, len(fetched))
	for _, fm := range fetched {
		byUID[fm.UID] = fm
	}

	out := make([]model.MessageSummary, 0, len(refs))
	for _, ref := range refs {
		fm, ok := byUID[imap.UID(ref.UID)]
		if !ok {
			// Expunged between SEARCH and FETCH.
			continue
		}
		summary, _ := s.summarize(ref, fm)
		out = append(out, summary)
	}
	return out, nil
}

// Search is ListMessages with at least one criterion.
func (s *Session) Search(ctx context.Context, folder string, criteria Criteria, limit int) ([]model.MessageSummary, error) {
	if criteria.IsZero() {
		return nil, invalidArg("search needs at least one criterion")
	}
	return s.ListMessages(ctx, folder, criteria, limit)
}

// Fetch returns the message at ref. A header-only Parts fetches just the
// header section from the server.
func (s *Session) Fetch(ctx context.Context, ref model.MessageRef, parts Parts) (*model.MessageDetail, error) {
	fm, err := s.fetchOne(ctx, ref, parts.headerOnly())
	if err != nil {
		return nil, err
	}

	summary, msg := s.summarize(ref, fm)
	detail := &model.MessageDetail{
		MessageSummary: summary,
		Cc:             []string{},
		Headers:        []model.HeaderField{},
		Parts:          []model.BodyPart{},
		Attachments:    []model.Attachment{},
	}
	if msg == nil {
		return detail, nil
	}

	detail.Cc = codec.FormatAddressList(msg.Cc)
	if parts.Headers {
		detail.Headers = msg.Headers
	}
	if parts.Body {
		detail.Parts = msg.Parts()
		detail.TextBody, _ = msg.TextBody()
		detail.HTMLBody, _ = msg.HTMLBody()
	}
	if parts.Attachments {
		if atts := msg.Attachments(); atts != nil {
			detail.Attachments = atts
		}
	}
	return detail, nil
}

// Summary fetches a fresh summary for ref.
func (s *Session) Summary(ctx context.Context, ref model.MessageRef) (model.MessageSummary, error) {
	fm, err := s.fetchOne(ctx, ref, false)
	if err != nil {
		return model.MessageSummary{}, err
	}
	summary, _ := s.summarize(ref, fm)
	return summary, nil
}

// FetchRaw returns the full message bytes at ref.
func (s *Session) FetchRaw(ctx context.Context, ref model.MessageRef) ([]byte, error) {
	fm, err := s.fetchOne(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	return fm.Raw, nil
}

// Decoded fetches and decodes the full message at ref.
func (s *Session) Decoded(ctx context.Context, ref model.MessageRef) (*codec.Message, error) {
	raw, err := s.FetchRaw(ctx, ref)
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw)
}

func (s *Session) fetchOne(ctx context.Context, ref model.MessageRef, headerOnly bool) (FetchedMessage, error) {
	if err := s.checkRef(ref); err != nil {
		return FetchedMessage{}, err
	}
	if err := s.SelectFolder(ctx, ref.Folder); err != nil {
		return FetchedMessage{}, err
	}

	fetched, err := s.conn.Fetch([]imap.UID{imap.UID(ref.UID)}, headerOnly)
	if err != nil {
		return FetchedMessage{}, s.wrap(ctx, err, "fetching message %d from %q", ref.UID, ref.Folder)
	}
	for _, fm := range fetched {
		if fm.UID == imap.UID(ref.UID) {
			return fm, nil
		}
	}
	return FetchedMessage{}, notFound(ref.Folder, ref.UID)
}

// summarize builds the summary of fm. The decoded message is nil when
// the bytes could not be decoded at all.
func (s *Session) summarize(ref model.MessageRef, fm FetchedMessage) (model.MessageSummary, *codec.Message) {
	summary := model.MessageSummary{
		Ref:      ref,
		To:       []string{},
		Date:     fm.InternalDate,
		Flags:    s.flagsOf(fm.Flags),
		Location: s.Location(ref.Folder),
	}

	msg, err := codec.Decode(fm.Raw)
	if err != nil {
		s.log.Debug("message not decodable", zap.Stringer("ref", ref), zap.Error(err))
		return summary, nil
	}
	if msg.Degraded {
		s.log.Debug("message decoded in degraded mode", zap.Stringer("ref", ref))
	}

	summary.MessageID = msg.MessageID
	summary.From = msg.FromString()
	summary.To = codec.FormatAddressList(msg.To)
	summary.Subject = msg.Subject
	if !msg.Date.IsZero() {
		summary.Date = msg.Date
	}
	summary.Snippet = codec.Snippet(msg, s.snippet)
	return summary, msg
}

// flagsOf keeps the three named flags and drops everything else.
func (s *Session) flagsOf(flags []imap.Flag) model.Flags {
	var out model.Flags
	for _, f := range flags {
		switch {
		case strings.EqualFold(string(f), string(imap.FlagSeen)):
			out.Seen = true
		case strings.EqualFold(string(f), string(imap.FlagAnswered)):
			out.Answered = true
		case strings.EqualFold(string(f), s.starFlag()):
			out.Flagged = true
		}
	}
	return out
}

func (s *Session) starFlag() string {
	if s.profile.StarFlag == "" {
		return string(imap.FlagFlagged)
	}
	return s.profile.StarFlag
}

// locate finds messageID in folder and returns its newest UID.
func (s *Session) locate(ctx context.Context, folder, messageID string) (model.MessageRef, error) {
	if messageID == "" {
		return model.MessageRef{}, mailerr.Protocol(mailerr.ErrMessageNotFound,
			"moved message has no Message-ID and cannot be located in %q", folder)
	}
	if err := s.SelectFolder(ctx, folder); err != nil {
		return model.MessageRef{}, err
	}

	uids, err := s.conn.UIDSearch(&imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Message-Id", Value: messageID}},
	})
	if err != nil {
		return model.MessageRef{}, s.wrap(ctx, err, "locating %s in %q", messageID, folder)
	}
	if len(uids) == 0 {
		return model.MessageRef{}, mailerr.Protocol(mailerr.ErrMessageNotFound,
			"message %s not found in %q after move", messageID, folder)
	}
	return s.ref(folder, slices.Max(uids)), nil
}
