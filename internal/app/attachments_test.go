package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/anymail/internal/app"
	"github.com/nhle/anymail/internal/mailerr"
)

const withAttachment = "From: a@x.com\r\n" +
	"To: work@example.com\r\n" +
	"Subject: files\r\n" +
	"Message-ID: <att@x>\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"see attached\r\n" +
	"--b1\r\n" +
	"Content-Type: application/pdf; name=\"report.pdf\"\r\n" +
	"Content-Disposition: attachment; filename=\"../report.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQK\r\n" +
	"--b1--\r\n"

func TestAttachmentsList(t *testing.T) {
	f := newFixture(t, false)
	uid := f.srv.Deliver([]byte(withAttachment), testNow)

	res, err := f.app.Attachments(context.Background(), req("read"), app.AttachmentParams{UID: uint32(uid)})
	require.NoError(t, err)
	require.Len(t, res.Attachments, 1)
	assert.Equal(t, "application/pdf", res.Attachments[0].ContentType)
	assert.Empty(t, res.Saved)
}

func TestAttachmentsSaveStaysInDirAndNeverOverwrites(t *testing.T) {
	f := newFixture(t, false)
	uid := f.srv.Deliver([]byte(withAttachment), testNow)
	dir := filepath.Join(t.TempDir(), "out")

	for i := 0; i < 2; i++ {
		_, err := f.app.Attachments(context.Background(), req("read"), app.AttachmentParams{UID: uint32(uid), Dir: dir})
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"report.pdf", "report (1).pdf"}, names)

	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4\n", string(data))
}

func TestAttachmentsUnknownPart(t *testing.T) {
	f := newFixture(t, false)
	uid := f.srv.Deliver([]byte(withAttachment), testNow)

	_, err := f.app.Attachments(context.Background(), req("read"), app.AttachmentParams{UID: uint32(uid), PartID: "9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, mailerr.ErrMessageNotFound))
}
