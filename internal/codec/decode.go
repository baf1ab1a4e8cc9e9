// Package codec turns raw RFC 5322 message bytes into structured
// headers, decoded leaf parts and an attachment index, and derives
// snippets and reply contexts from the result.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// Leaf is one decoded non-multipart section of a message.
type Leaf struct {
	PartID      string
	MediaType   string
	Charset     string
	Disposition string
	Filename    string
	ContentID   string
	Content     []byte
}

// IsText reports whether the leaf carries text/* content.
func (l Leaf) IsText() bool {
	return strings.HasPrefix(l.MediaType, "text/")
}

// IsAttachment reports whether the leaf belongs in the attachment
// index rather than the readable body.
func (l Leaf) IsAttachment() bool {
	switch {
	case l.Disposition == "attachment":
		return true
	case l.IsText():
		return false
	default:
		return true
	}
}

// Message is the decoded form of a raw message.
type Message struct {
	Headers    []model.HeaderField
	MessageID  string
	Subject    string
	Date       time.Time
	From       []*mail.Address
	To         []*mail.Address
	Cc         []*mail.Address
	References []string
	Leaves     []Leaf

	// Degraded is set when some structure could not be parsed and was
	// kept as an opaque part instead.
	Degraded bool
}

// Decode parses raw into a Message. It only fails when raw holds
// nothing that can be read as a message; broken multipart structure
// and unknown charsets degrade instead.
func Decode(raw []byte) (*Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, mailerr.Decode(mailerr.ErrMalformedMessage, "message is empty")
	}

	d := &decoder{msg: &Message{}}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		// The header block itself is unreadable: keep the bytes as a
		// single text part so callers still see the content.
		d.msg.Degraded = true
		d.addLeaf(Leaf{
			PartID:    "1",
			MediaType: "text/plain",
			Content:   raw,
		})
		return d.msg, nil
	}
	if entity == nil {
		return nil, mailerr.Decode(err, "unreadable message: %v", err)
	}

	d.readHeaders(entity.Header)
	d.walk(entity, nil)

	return d.msg, nil
}

// isRecoverable reports whether go-message returned a usable entity
// alongside err.
func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

type decoder struct {
	msg *Message
}

func (d *decoder) readHeaders(h message.Header) {
	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		d.msg.Headers = append(d.msg.Headers, model.HeaderField{
			Name:  fields.Key(),
			Value: value,
		})
	}

	mh := mail.Header{Header: h}

	if subject, err := mh.Subject(); err == nil {
		d.msg.Subject = subject
	} else {
		d.msg.Subject = mh.Get("Subject")
	}

	if date, err := mh.Date(); err == nil {
		d.msg.Date = date
	}

	if id, err := mh.MessageID(); err == nil && id != "" {
		d.msg.MessageID = "<" + id + ">"
	} else if raw := strings.TrimSpace(mh.Get("Message-Id")); raw != "" {
		d.msg.MessageID = raw
	}

	d.msg.From = addressList(mh, "From")
	if len(d.msg.From) == 0 {
		d.msg.From = addressList(mh, "Sender")
	}
	d.msg.To = addressList(mh, "To")
	d.msg.Cc = addressList(mh, "Cc")

	if ids, err := mh.MsgIDList("References"); err == nil {
		for _, id := range ids {
			d.msg.References = append(d.msg.References, "<"+id+">")
		}
	}
}

// addressList parses an address header, dropping it when malformed.
func addressList(h mail.Header, key string) []*mail.Address {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	return list
}

// walk appends the leaves under e in document order.
func (d *decoder) walk(e *message.Entity, path []int) {
	mediaType, params, err := e.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		body, _ := io.ReadAll(e.Body)
		if d.walkMultipart(body, params["boundary"], path) {
			return
		}
		// No usable boundary: keep the whole body as one text part.
		d.msg.Degraded = true
		d.addLeaf(Leaf{
			PartID:    partID(path),
			MediaType: "text/plain",
			Content:   body,
		})
		return
	}

	content, err := io.ReadAll(e.Body)
	if err != nil {
		d.msg.Degraded = true
	}

	leaf := Leaf{
		PartID:    partID(path),
		MediaType: mediaType,
		Charset:   strings.ToLower(params["charset"]),
		ContentID: strings.Trim(e.Header.Get("Content-Id"), "<> "),
		Content:   content,
	}

	if disp, _, err := e.Header.ContentDisposition(); err == nil {
		leaf.Disposition = strings.ToLower(disp)
	}
	if name, err := (&mail.AttachmentHeader{Header: e.Header}).Filename(); err == nil && name != "" {
		leaf.Filename = name
	} else if name := params["name"]; name != "" {
		leaf.Filename = name
	}
	if leaf.Filename != "" && leaf.Disposition == "" && !leaf.IsText() {
		leaf.Disposition = "attachment"
	}

	d.addLeaf(leaf)
}

// walkMultipart reports false when no part at all could be read, so
// the caller can fall back to an opaque part.
func (d *decoder) walkMultipart(body []byte, boundary string, path []int) bool {
	if boundary == "" {
		return false
	}

	mr := textproto.NewMultipartReader(bytes.NewReader(body), boundary)
	n := 0
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if n > 0 {
				d.msg.Degraded = true
			}
			break
		}

		child, err := message.New(message.Header{Header: p.Header}, p)
		if child == nil {
			d.msg.Degraded = true
			continue
		}
		if err != nil && !isRecoverable(err) {
			d.msg.Degraded = true
		}

		n++
		childPath := append(append([]int(nil), path...), n)
		d.walk(child, childPath)
	}

	return n > 0
}

func (d *decoder) addLeaf(l Leaf) {
	if l.IsText() && !utf8.Valid(l.Content) {
		l.Content = bytes.ToValidUTF8(l.Content, []byte("�"))
	}
	d.msg.Leaves = append(d.msg.Leaves, l)
}

// partID renders a leaf path in IMAP section notation. A top-level
// single part message is part "1".
func partID(path []int) string {
	if len(path) == 0 {
		return "1"
	}
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// TextBody returns the first readable text/plain part.
func (m *Message) TextBody() (string, bool) {
	return m.firstBody("text/plain")
}

// HTMLBody returns the first readable text/html part.
func (m *Message) HTMLBody() (string, bool) {
	return m.firstBody("text/html")
}

func (m *Message) firstBody(mediaType string) (string, bool) {
	for _, l := range m.Leaves {
		if l.MediaType == mediaType && !l.IsAttachment() {
			return string(l.Content), true
		}
	}
	return "", false
}

// Parts returns every leaf tagged with its media type. Only text leaves
// carry their content.
func (m *Message) Parts() []model.BodyPart {
	parts := make([]model.BodyPart, 0, len(m.Leaves))
	for _, l := range m.Leaves {
		p := model.BodyPart{
			PartID:    l.PartID,
			MediaType: l.MediaType,
			Charset:   l.Charset,
		}
		if l.IsText() && !l.IsAttachment() {
			p.Text = string(l.Content)
		}
		parts = append(parts, p)
	}
	return parts
}

// Attachments returns the attachment index.
func (m *Message) Attachments() []model.Attachment {
	var out []model.Attachment
	for _, l := range m.Leaves {
		if !l.IsAttachment() {
			continue
		}
		out = append(out, model.Attachment{
			PartID:      l.PartID,
			Filename:    l.Filename,
			ContentType: l.MediaType,
			Size:        int64(len(l.Content)),
			ContentID:   l.ContentID,
			Inline:      l.Disposition == "inline",
		})
	}
	return out
}

// HeaderValues returns every value of the named header in order.
func (m *Message) HeaderValues(name string) []string {
	var out []string
	for _, f := range m.Headers {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// FromString renders the first sender for display.
func (m *Message) FromString() string {
	if len(m.From) == 0 {
		return ""
	}
	return FormatAddress(m.From[0])
}

// FormatAddress renders "Name <addr>" or the bare address.
func FormatAddress(a *mail.Address) string {
	if a == nil {
		return ""
	}
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

// FormatAddressList renders each address with FormatAddress.
func FormatAddressList(list []*mail.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if s := FormatAddress(a); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AttachmentContent decodes raw and returns the content of the leaf
// with the given part id.
func AttachmentContent(raw []byte, partID string) (model.Attachment, []byte, error) {
	msg, err := Decode(raw)
	if err != nil {
		return model.Attachment{}, nil, err
	}
	for _, l := range msg.Leaves {
		if l.PartID != partID {
			continue
		}
		return model.Attachment{
			PartID:      l.PartID,
			Filename:    l.Filename,
			ContentType: l.MediaType,
			Size:        int64(len(l.Content)),
			ContentID:   l.ContentID,
			Inline:      l.Disposition == "inline",
		}, l.Content, nil
	}
	return model.Attachment{}, nil, mailerr.Protocol(mailerr.ErrMessageNotFound, "part %s not found in message", partID)
}
