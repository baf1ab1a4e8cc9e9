package mail

import (
	"context"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/model"
)

// SetFlag sets or clears one flag. The location, and so the ref, does
// not change.
func (s *Session) SetFlag(ctx context.Context, ref model.MessageRef, flag model.FlagName, value bool) (model.MessageRef, error) {
	var f imap.Flag
	switch flag {
	case model.FlagSeen:
		f = imap.FlagSeen
	case model.FlagStar:
		f = imap.Flag(s.starFlag())
	case model.FlagAnswered:
		f = imap.FlagAnswered
	default:
		return ref, invalidArg("unknown flag %q", flag)
	}

	// STORE on a missing UID succeeds silently, so check first.
	if _, err := s.fetchOne(ctx, ref, true); err != nil {
		return ref, err
	}

	op := imap.StoreFlagsAdd
	if !value {
		op = imap.StoreFlagsDel
	}
	if err := s.conn.Store([]imap.UID{imap.UID(ref.UID)}, op, []imap.Flag{f}); err != nil {
		return ref, s.wrap(ctx, err, "setting %s on message %d", flag, ref.UID)
	}

	s.log.Debug("flag updated", zap.Stringer("ref", ref), zap.String("flag", string(flag)), zap.Bool("value", value))
	return ref, nil
}

// MoveToFolder moves ref into target and returns the new ref. The old
// ref is invalid afterwards. Moving into the folder the message is
// already in is a no-op.
func (s *Session) MoveToFolder(ctx context.Context, ref model.MessageRef, target string) (model.MessageRef, error) {
	if err := s.checkRef(ref); err != nil {
		return ref, err
	}
	if ref.Folder == target {
		return ref, nil
	}

	fm, err := s.fetchOne(ctx, ref, true)
	if err != nil {
		return ref, err
	}
	messageID := messageIDOf(fm)

	newUID, err := s.conn.Move(imap.UID(ref.UID), target)
	if err != nil {
		return ref, s.wrap(ctx, err, "moving message %d from %q to %q", ref.UID, ref.Folder, target)
	}
	s.moved[ref] = struct{}{}

	if newUID != 0 {
		moved := s.ref(target, newUID)
		s.log.Debug("message moved", zap.Stringer("from", ref), zap.Stringer("to", moved))
		return moved, nil
	}

	moved, err := s.locate(ctx, target, messageID)
	if err != nil {
		return ref, err
	}
	s.log.Debug("message moved, located by Message-ID", zap.Stringer("from", ref), zap.Stringer("to", moved))
	return moved, nil
}

// Archive takes ref out of the inbox while keeping it in all-mail.
// Archiving a message that is not in the inbox returns ref unchanged.
func (s *Session) Archive(ctx context.Context, ref model.MessageRef) (model.MessageRef, error) {
	if err := s.checkRef(ref); err != nil {
		return ref, err
	}
	if s.Location(ref.Folder) != model.LocationInbox {
		return ref, nil
	}

	// Under both strategies the move targets all-mail; on label servers
	// that is the \All mailbox, so only the inbox label is dropped.
	return s.MoveToFolder(ctx, ref, s.allMail)
}

// Trash moves ref into the trash folder. A message already in trash is
// returned unchanged.
func (s *Session) Trash(ctx context.Context, ref model.MessageRef) (model.MessageRef, error) {
	if err := s.checkRef(ref); err != nil {
		return ref, err
	}
	if s.Location(ref.Folder) == model.LocationTrashed {
		return ref, nil
	}
	return s.MoveToFolder(ctx, ref, s.trash)
}

// Apply runs a flag command: seen and star first, then at most one of
// archive or trash. It returns the ref valid after the command.
func (s *Session) Apply(ctx context.Context, ref model.MessageRef, change model.FlagChange) (model.MessageRef, error) {
	if change.IsZero() {
		return ref, invalidArg("nothing to change")
	}
	if change.Archive && change.Trash {
		return ref, invalidArg("archive and trash are mutually exclusive")
	}

	var err error
	if change.Seen != nil {
		if ref, err = s.SetFlag(ctx, ref, model.FlagSeen, *change.Seen); err != nil {
			return ref, err
		}
	}
	if change.Star != nil {
		if ref, err = s.SetFlag(ctx, ref, model.FlagStar, *change.Star); err != nil {
			return ref, err
		}
	}

	switch {
	case change.Archive:
		return s.Archive(ctx, ref)
	case change.Trash:
		return s.Trash(ctx, ref)
	}
	return ref, nil
}

func messageIDOf(fm FetchedMessage) string {
	msg, err := codec.Decode(fm.Raw)
	if err != nil {
		return ""
	}
	return msg.MessageID
}
