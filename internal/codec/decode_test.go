package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/anymail/internal/mailerr"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

const plainMessage = `From: Alice <a@x.com>
To: b@x.com, c@x.com
Subject: Quarterly numbers
Date: Mon, 02 Mar 2026 10:00:00 +0000
Message-ID: <m1@x.com>
References: <r0@x.com>
Received: from one
Received: from two
Content-Type: text/plain; charset=utf-8

Hello Bob,
the numbers are in.
`

func TestDecodePlainMessage(t *testing.T) {
	msg, err := Decode(crlf(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly numbers", msg.Subject)
	assert.Equal(t, "<m1@x.com>", msg.MessageID)
	assert.Equal(t, "Alice <a@x.com>", msg.FromString())
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, FormatAddressList(msg.To))
	assert.Equal(t, []string{"<r0@x.com>"}, msg.References)
	assert.Equal(t, 2026, msg.Date.Year())
	assert.False(t, msg.Degraded)

	assert.Equal(t, []string{"from one", "from two"}, msg.HeaderValues("received"))

	require.Len(t, msg.Leaves, 1)
	assert.Equal(t, "1", msg.Leaves[0].PartID)

	body, ok := msg.TextBody()
	require.True(t, ok)
	assert.Contains(t, body, "the numbers are in.")
	assert.Empty(t, msg.Attachments())
}

const nestedMessage = `From: a@x.com
To: b@x.com
Subject: =?UTF-8?B?xZnDrWplbg==?=
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain; charset=iso-8859-1
Content-Transfer-Encoding: quoted-printable

caf=E9
--inner
Content-Type: text/html; charset=utf-8

<p>caf&eacute;</p>
--inner--
--outer
Content-Type: application/pdf; name="report.pdf"
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer
Content-Type: image/png
Content-Disposition: inline; filename="logo.png"
Content-ID: <logo@x>
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--outer--
`

func TestDecodeNestedMultipart(t *testing.T) {
	msg, err := Decode(crlf(nestedMessage))
	require.NoError(t, err)

	assert.Equal(t, "říjen", msg.Subject)

	ids := make([]string, 0, len(msg.Leaves))
	types := make([]string, 0, len(msg.Leaves))
	for _, l := range msg.Leaves {
		ids = append(ids, l.PartID)
		types = append(types, l.MediaType)
	}
	assert.Equal(t, []string{"1.1", "1.2", "2", "3"}, ids)
	assert.Equal(t, []string{"text/plain", "text/html", "application/pdf", "image/png"}, types)

	text, ok := msg.TextBody()
	require.True(t, ok)
	assert.Equal(t, "café", strings.TrimSpace(text))

	atts := msg.Attachments()
	require.Len(t, atts, 2)
	assert.Equal(t, "report.pdf", atts[0].Filename)
	assert.Equal(t, "2", atts[0].PartID)
	assert.Equal(t, int64(9), atts[0].Size)
	assert.False(t, atts[0].Inline)
	assert.Equal(t, "logo.png", atts[1].Filename)
	assert.Equal(t, "logo@x", atts[1].ContentID)
	assert.True(t, atts[1].Inline)

	parts := msg.Parts()
	require.Len(t, parts, 4)
	assert.Equal(t, "iso-8859-1", parts[0].Charset)
	assert.Empty(t, parts[2].Text)
}

func TestDecodeMissingBoundaryDegrades(t *testing.T) {
	raw := crlf(`From: a@x.com
Subject: broken
Content-Type: multipart/mixed; boundary="nowhere"

just some text without any boundary
`)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, msg.Degraded)

	require.Len(t, msg.Leaves, 1)
	text, ok := msg.TextBody()
	require.True(t, ok)
	assert.Contains(t, text, "just some text")
}

func TestDecodeMultipartWithoutBoundaryParam(t *testing.T) {
	raw := crlf(`Subject: no param
Content-Type: multipart/mixed

body text
`)
	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, msg.Degraded)
	assert.Equal(t, "body text", Snippet(msg, DefaultSnippetOptions()))
}

func TestDecodeUnknownCharset(t *testing.T) {
	raw := crlf("Subject: odd\nContent-Type: text/plain; charset=x-made-up\n\nhello \xff world\n")
	msg, err := Decode(raw)
	require.NoError(t, err)

	text, ok := msg.TextBody()
	require.True(t, ok)
	assert.Contains(t, text, "hello")
	assert.Contains(t, text, "world")
}

func TestDecodeEmptyIsMalformed(t *testing.T) {
	_, err := Decode([]byte("  \r\n"))
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindDecode))
}

func TestAttachmentContent(t *testing.T) {
	att, content, err := AttachmentContent(crlf(nestedMessage), "2")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "%PDF-1.4\n", string(content))

	_, _, err = AttachmentContent(crlf(nestedMessage), "9")
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindProtocol))
}
