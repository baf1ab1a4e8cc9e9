package mail

import (
	"context"

	"github.com/emersion/go-imap/v2"
	"go.uber.org/zap"
)

// ArchiveStrategy is how "remove from inbox, keep in all-mail" is done
// on the connected server.
type ArchiveStrategy int

const (
	// StrategyFolderMove moves the message into an archive folder.
	StrategyFolderMove ArchiveStrategy = iota

	// StrategyLabel drops the inbox label by moving the message into the
	// \All mailbox, where the server already holds it.
	StrategyLabel
)

func (a ArchiveStrategy) String() string {
	if a == StrategyLabel {
		return "label"
	}
	return "folder-move"
}

// ArchiveStrategy returns the strategy chosen at connect time.
func (s *Session) ArchiveStrategy() ArchiveStrategy {
	return s.strategy
}

// probe lists folders once and picks the archive strategy and the
// effective all-mail and trash folders. A server exposing a \All
// mailbox keeps every message there, so archiving is label removal.
func (s *Session) probe(ctx context.Context) error {
	folders, err := s.conn.ListFolders()
	if err != nil {
		return s.wrap(ctx, err, "listing folders")
	}
	s.folders = folders

	byName := make(map[string]Folder, len(folders))
	for _, f := range folders {
		byName[f.Name] = f
	}

	var allAttr, archiveAttr, trashAttr string
	for _, f := range folders {
		switch {
		case allAttr == "" && f.HasAttr(imap.MailboxAttrAll):
			allAttr = f.Name
		case archiveAttr == "" && f.HasAttr(imap.MailboxAttrArchive):
			archiveAttr = f.Name
		case trashAttr == "" && f.HasAttr(imap.MailboxAttrTrash):
			trashAttr = f.Name
		}
	}

	_, haveAllMail := byName[s.profile.FolderAllMail]
	switch {
	case allAttr != "":
		s.strategy = StrategyLabel
		s.allMail = allAttr
		if haveAllMail && byName[s.profile.FolderAllMail].HasAttr(imap.MailboxAttrAll) {
			s.allMail = s.profile.FolderAllMail
		}
	case haveAllMail:
		s.strategy = StrategyFolderMove
		s.allMail = s.profile.FolderAllMail
	case archiveAttr != "":
		s.strategy = StrategyFolderMove
		s.allMail = archiveAttr
	default:
		// Nothing suitable; the move fails later with the configured
		// name echoed back.
		s.strategy = StrategyFolderMove
		s.allMail = s.profile.FolderAllMail
	}

	s.trash = s.profile.FolderTrash
	if _, ok := byName[s.trash]; !ok && trashAttr != "" {
		s.log.Debug("configured trash folder missing, using special-use mailbox",
			zap.String("configured", s.trash), zap.String("using", trashAttr))
		s.trash = trashAttr
	}

	return nil
}
