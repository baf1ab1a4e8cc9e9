package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/mail"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// ListParams select messages for inbox and search.
type ListParams struct {
	Folder   string
	Criteria mail.Criteria
	Limit    int

	// RefsOnly skips fetching message content; only Refs is filled.
	RefsOnly bool
}

// Listing is the result of inbox and search. Messages is empty when
// only refs were requested.
type Listing struct {
	Refs     []model.MessageRef     `json:"refs"`
	Messages []model.MessageSummary `json:"messages"`
}

// Inbox lists the newest messages of a folder, the inbox by default.
func (a *App) Inbox(ctx context.Context, req Request, params ListParams) (Listing, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (Listing, error) {
		return c.list(ctx, params)
	})
}

// Search is Inbox with at least one criterion.
func (a *App) Search(ctx context.Context, req Request, params ListParams) (Listing, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (Listing, error) {
		if params.Criteria.IsZero() {
			return Listing{}, mailerr.Config(mailerr.ErrInvalidArgument,
				"search needs at least one of --unread, --from, --subject, --since, --before or --raw-imap")
		}
		return c.list(ctx, params)
	})
}

func (c *Call) list(ctx context.Context, params ListParams) (Listing, error) {
	s, err := c.Session(ctx)
	if err != nil {
		return Listing{}, err
	}

	out := Listing{Refs: []model.MessageRef{}, Messages: []model.MessageSummary{}}
	if params.RefsOnly {
		refs, err := s.SearchUIDs(ctx, params.Folder, params.Criteria, params.Limit)
		if err != nil {
			return Listing{}, err
		}
		out.Refs = refs
		return out, nil
	}

	msgs, err := s.ListMessages(ctx, params.Folder, params.Criteria, params.Limit)
	if err != nil {
		return Listing{}, err
	}
	out.Messages = msgs
	for _, m := range msgs {
		out.Refs = append(out.Refs, m.Ref)
	}
	return out, nil
}

// ReadParams select messages and parts for read.
type ReadParams struct {
	Folder string
	UIDs   []uint32
	Parts  mail.Parts
}

// Read fetches each UID in order. The first failure ends the invocation.
func (a *App) Read(ctx context.Context, req Request, params ReadParams) ([]*model.MessageDetail, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) ([]*model.MessageDetail, error) {
		if len(params.UIDs) == 0 {
			return nil, mailerr.Config(mailerr.ErrInvalidArgument, "no UID given")
		}
		s, err := c.Session(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]*model.MessageDetail, 0, len(params.UIDs))
		for _, uid := range params.UIDs {
			d, err := s.Fetch(ctx, refIn(s, params.Folder, uid), params.Parts)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	})
}

// AttachmentParams select the attachments of one message. With Dir
// set, attachments are saved there; PartID narrows to one attachment.
type AttachmentParams struct {
	Folder string
	UID    uint32
	PartID string
	Dir    string
}

// SavedAttachment is one attachment written to disk.
type SavedAttachment struct {
	model.Attachment
	Path string `json:"path"`
}

// AttachmentResult lists the attachments of a message and, when saving,
// where each landed.
type AttachmentResult struct {
	Ref         model.MessageRef   `json:"ref"`
	Attachments []model.Attachment `json:"attachments"`
	Saved       []SavedAttachment  `json:"saved"`
}

// Attachments lists or saves a message's attachments.
func (a *App) Attachments(ctx context.Context, req Request, params AttachmentParams) (AttachmentResult, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (AttachmentResult, error) {
		s, err := c.Session(ctx)
		if err != nil {
			return AttachmentResult{}, err
		}
		ref := refIn(s, params.Folder, params.UID)

		raw, err := s.FetchRaw(ctx, ref)
		if err != nil {
			return AttachmentResult{}, err
		}
		msg, err := codec.Decode(raw)
		if err != nil {
			return AttachmentResult{}, err
		}

		res := AttachmentResult{Ref: ref, Attachments: []model.Attachment{}, Saved: []SavedAttachment{}}
		for _, att := range msg.Attachments() {
			if params.PartID == "" || att.PartID == params.PartID {
				res.Attachments = append(res.Attachments, att)
			}
		}
		if params.PartID != "" && len(res.Attachments) == 0 {
			return res, mailerr.Protocol(mailerr.ErrMessageNotFound,
				"message %d has no attachment with part id %q", params.UID, params.PartID)
		}
		if params.Dir == "" {
			return res, nil
		}

		if err := os.MkdirAll(params.Dir, 0o700); err != nil {
			return res, mailerr.Config(err, "creating %s: %v", params.Dir, err)
		}
		for _, att := range res.Attachments {
			_, content, err := codec.AttachmentContent(raw, att.PartID)
			if err != nil {
				return res, err
			}
			path, err := writeUnique(params.Dir, attachmentFilename(att), content)
			if err != nil {
				return res, mailerr.Config(err, "saving %s: %v", att.Filename, err)
			}
			c.app.log.Debug("attachment saved", zap.String("part", att.PartID), zap.String("path", path))
			res.Saved = append(res.Saved, SavedAttachment{Attachment: att, Path: path})
		}
		return res, nil
	})
}

// attachmentFilename strips any directory from the sender-chosen name.
func attachmentFilename(att model.Attachment) string {
	name := strings.TrimSpace(att.Filename)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" || name == ".." {
		return "attachment-" + strings.ReplaceAll(att.PartID, ".", "-")
	}
	return name
}

// writeUnique writes content to dir/name, adding a numeric suffix
// instead of overwriting an existing file.
func writeUnique(dir, name string, content []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("too many files named %s", name)
}

// FlagParams is one flag command on one message.
type FlagParams struct {
	Folder string
	UID    uint32
	Change model.FlagChange
}

// FlagResult is the message after the change. Ref replaces the
// requested one when the message moved.
type FlagResult struct {
	Ref     model.MessageRef     `json:"ref"`
	Moved   bool                 `json:"moved"`
	Message model.MessageSummary `json:"message"`
}

// Flag applies a flag change and returns the message's new state.
func (a *App) Flag(ctx context.Context, req Request, params FlagParams) (FlagResult, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (FlagResult, error) {
		s, err := c.Session(ctx)
		if err != nil {
			return FlagResult{}, err
		}
		ref := refIn(s, params.Folder, params.UID)

		after, err := s.Apply(ctx, ref, params.Change)
		if err != nil {
			return FlagResult{}, err
		}
		summary, err := s.Summary(ctx, after)
		if err != nil {
			return FlagResult{}, err
		}
		return FlagResult{Ref: after, Moved: after != ref, Message: summary}, nil
	})
}

// ReplyParams select the message to reply to.
type ReplyParams struct {
	Folder       string
	UID          uint32
	ToAll        bool
	IncludeQuote bool
}

// Reply builds the reply context for a message. Nothing is sent.
func (a *App) Reply(ctx context.Context, req Request, params ReplyParams) (model.ReplyContext, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (model.ReplyContext, error) {
		s, err := c.Session(ctx)
		if err != nil {
			return model.ReplyContext{}, err
		}
		msg, err := s.Decoded(ctx, refIn(s, params.Folder, params.UID))
		if err != nil {
			return model.ReplyContext{}, err
		}
		return codec.BuildReplyContext(msg, s.Profile().Email, params.ToAll, params.IncludeQuote), nil
	})
}

func refIn(s *mail.Session, folder string, uid uint32) model.MessageRef {
	if folder == "" {
		folder = s.Profile().FolderInbox
	}
	return model.MessageRef{Profile: s.Profile().Name, Folder: folder, UID: uid}
}
