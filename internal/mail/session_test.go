package mail_test

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/anymail/internal/mail"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/tests/testutil"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func workProfile() model.Profile {
	return model.NewGmailProfile("work", "work@example.com")
}

func refOf(s *mail.Session, folder string, uid imap.UID) model.MessageRef {
	return model.MessageRef{Profile: s.Profile().Name, Folder: folder, UID: uint32(uid)}
}

func connect(t *testing.T, srv *testutil.MailServer) *mail.Session {
	t.Helper()
	s, err := mail.Connect(context.Background(), workProfile(), srv.Password, mail.Options{
		Dial: srv.Dial,
		Now:  func() time.Time { return testNow },
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestConnectRejectsBadPassword(t *testing.T) {
	srv := testutil.NewMailServer(false)

	_, err := mail.Connect(context.Background(), workProfile(), "wrong", mail.Options{Dial: srv.Dial})
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindAuth))
	assert.NotContains(t, err.Error(), "wrong")
	assert.True(t, srv.Closed.Load())
}

func TestConnectDialFailureIsNetworkError(t *testing.T) {
	dial := func(context.Context, model.Profile) (mail.Conn, error) {
		return nil, errors.New("connection refused")
	}
	_, err := mail.Connect(context.Background(), workProfile(), "x", mail.Options{Dial: dial})
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindNetwork))
}

func TestProbeChoosesStrategy(t *testing.T) {
	assert.Equal(t, mail.StrategyLabel, connect(t, testutil.NewMailServer(true)).ArchiveStrategy())
	assert.Equal(t, mail.StrategyFolderMove, connect(t, testutil.NewMailServer(false)).ArchiveStrategy())
}

func TestProbeFallsBackToSpecialUseTrash(t *testing.T) {
	srv := testutil.NewMailServer(false)
	srv.Folders = nil
	srv.AddFolder("INBOX")
	srv.AddFolder("Bin", imap.MailboxAttrTrash)
	srv.AddFolder("Archive", imap.MailboxAttrArchive)

	s := connect(t, srv)
	uid := srv.Deliver(testutil.RawMessage("t1@x", "a@x.com", "bye", "bye"), testNow)

	trashed, err := s.Trash(context.Background(), refOf(s, "INBOX", uid))
	require.NoError(t, err)
	assert.Equal(t, "Bin", trashed.Folder)
	assert.Equal(t, model.LocationTrashed, s.Location(trashed.Folder))

	uid = srv.Deliver(testutil.RawMessage("t2@x", "a@x.com", "keep", "keep"), testNow)
	archived, err := s.Archive(context.Background(), refOf(s, "INBOX", uid))
	require.NoError(t, err)
	assert.Equal(t, "Archive", archived.Folder)
}

func TestSelectFolder(t *testing.T) {
	srv := testutil.NewMailServer(false)
	s := connect(t, srv)
	ctx := context.Background()

	require.NoError(t, s.SelectFolder(ctx, ""))
	assert.Equal(t, "INBOX", s.Selected())
	require.NoError(t, s.SelectFolder(ctx, "INBOX"))
	assert.Equal(t, 1, srv.SelectCount, "reselecting must not hit the server")

	err := s.SelectFolder(ctx, "Work/Clients")
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindProtocol))
	assert.True(t, errors.Is(err, mailerr.ErrFolderNotFound))
	assert.Contains(t, err.Error(), `"Work/Clients"`)
	assert.Equal(t, "", s.Selected())
}

func TestListMessagesNewestFirstWithLimit(t *testing.T) {
	srv := testutil.NewMailServer(false)
	for i, subject := range []string{"one", "two", "three"} {
		srv.Deliver(testutil.RawMessage(subject+"@x", "a@x.com", subject, "body "+subject), testNow.Add(time.Duration(i)*time.Hour))
	}
	s := connect(t, srv)

	got, err := s.ListMessages(context.Background(), "INBOX", mail.Criteria{}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Subject)
	assert.Equal(t, "two", got[1].Subject)
	assert.Equal(t, "body three", got[0].Snippet)
	assert.Equal(t, model.LocationInbox, got[0].Location)
	assert.Equal(t, "<three@x>", got[0].MessageID)
}

func TestSearchCriteriaCompose(t *testing.T) {
	srv := testutil.NewMailServer(false)
	srv.Deliver(testutil.RawMessage("1@x", "boss@corp.com", "Budget review", "numbers"), testNow.AddDate(0, 0, -10))
	srv.Deliver(testutil.RawMessage("2@x", "boss@corp.com", "Budget final", "numbers"), testNow.AddDate(0, 0, -1), imap.FlagSeen)
	srv.Deliver(testutil.RawMessage("3@x", "boss@corp.com", "Budget draft", "numbers"), testNow.AddDate(0, 0, -1))
	srv.Deliver(testutil.RawMessage("4@x", "friend@home.org", "Budget party", "cake"), testNow.AddDate(0, 0, -1))
	s := connect(t, srv)
	ctx := context.Background()

	got, err := s.Search(ctx, "", mail.Criteria{UnreadOnly: true, From: "corp.com", Subject: "budget", Since: "3d"}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Budget draft", got[0].Subject)

	refs, err := s.SearchUIDs(ctx, "", mail.Criteria{Raw: `OR FROM "home.org" SEEN`}, 0)
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	_, err = s.Search(ctx, "", mail.Criteria{}, 0)
	assert.True(t, errors.Is(err, mailerr.ErrInvalidArgument))
}

func TestFetchHeadersOnlyAndNotFound(t *testing.T) {
	srv := testutil.NewMailServer(false)
	uid := srv.Deliver(testutil.RawMessage("h@x", "a@x.com", "hdr", "secret body"), testNow)
	s := connect(t, srv)
	ctx := context.Background()

	detail, err := s.Fetch(ctx, refOf(s, "INBOX", uid), mail.Parts{Headers: true})
	require.NoError(t, err)
	assert.Equal(t, "hdr", detail.Subject)
	assert.NotEmpty(t, detail.Headers)
	assert.Empty(t, detail.TextBody)
	assert.Equal(t, "", detail.Snippet)

	full, err := s.Fetch(ctx, refOf(s, "INBOX", uid), mail.AllParts())
	require.NoError(t, err)
	assert.Contains(t, full.TextBody, "secret body")

	_, err = s.Fetch(ctx, refOf(s, "INBOX", 999), mail.AllParts())
	require.Error(t, err)
	assert.True(t, errors.Is(err, mailerr.ErrMessageNotFound))
	assert.True(t, mailerr.Is(err, mailerr.KindProtocol))
}

func TestWorkScenario(t *testing.T) {
	for _, labelMode := range []bool{true, false} {
		name := "folder-move"
		if labelMode {
			name = "label"
		}
		t.Run(name, func(t *testing.T) {
			srv := testutil.NewMailServer(labelMode)
			uid := srv.Deliver(testutil.RawMessage("work@x", "a@x.com", "status", "all good"), testNow)
			s := connect(t, srv)
			ctx := context.Background()
			ref := refOf(s, "INBOX", uid)

			star := true
			ref, err := s.Apply(ctx, ref, model.FlagChange{Star: &star})
			require.NoError(t, err)

			summary, err := s.Summary(ctx, ref)
			require.NoError(t, err)
			assert.Equal(t, model.Flags{Seen: false, Answered: false, Flagged: true}, summary.Flags)
			assert.Equal(t, model.LocationInbox, summary.Location)

			archived, err := s.Apply(ctx, ref, model.FlagChange{Archive: true})
			require.NoError(t, err)
			assert.Equal(t, model.DefaultFolderAllMail, archived.Folder)
			assert.Equal(t, model.LocationArchived, s.Location(archived.Folder))

			inbox, err := s.SearchUIDs(ctx, "INBOX", mail.Criteria{}, 0)
			require.NoError(t, err)
			assert.NotContains(t, inbox, ref)
			assert.Empty(t, inbox)

			all, err := s.SearchUIDs(ctx, model.DefaultFolderAllMail, mail.Criteria{}, 0)
			require.NoError(t, err)
			assert.Contains(t, all, archived)
		})
	}
}

func TestMovedRefIsStale(t *testing.T) {
	for _, reportUIDs := range []bool{true, false} {
		srv := testutil.NewMailServer(false)
		srv.ReportUIDs = reportUIDs
		uid := srv.Deliver(testutil.RawMessage("m@x", "a@x.com", "move me", "body"), testNow)
		s := connect(t, srv)
		ctx := context.Background()
		old := refOf(s, "INBOX", uid)

		trashed, err := s.Trash(ctx, old)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultFolderTrash, trashed.Folder)

		_, err = s.Fetch(ctx, old, mail.AllParts())
		require.Error(t, err)
		assert.True(t, errors.Is(err, mailerr.ErrMessageNotFound))

		_, err = s.SetFlag(ctx, old, model.FlagSeen, true)
		assert.True(t, errors.Is(err, mailerr.ErrMessageNotFound))

		detail, err := s.Fetch(ctx, trashed, mail.AllParts())
		require.NoError(t, err)
		assert.Equal(t, "move me", detail.Subject)
		assert.Equal(t, model.LocationTrashed, detail.Location)
	}
}

func TestArchiveAndTrashAreIdempotent(t *testing.T) {
	for _, labelMode := range []bool{true, false} {
		srv := testutil.NewMailServer(labelMode)
		uid := srv.Deliver(testutil.RawMessage("i@x", "a@x.com", "idem", "body"), testNow)
		s := connect(t, srv)
		ctx := context.Background()

		once, err := s.Archive(ctx, refOf(s, "INBOX", uid))
		require.NoError(t, err)
		twice, err := s.Archive(ctx, once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
		assert.Equal(t, s.Location(once.Folder), s.Location(twice.Folder))

		trashed, err := s.Trash(ctx, twice)
		require.NoError(t, err)
		again, err := s.Trash(ctx, trashed)
		require.NoError(t, err)
		assert.Equal(t, trashed, again)
		assert.Equal(t, model.LocationTrashed, s.Location(again.Folder))

		// Archiving from trash is a no-op too.
		still, err := s.Archive(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, again, still)
	}
}

func TestLabelArchiveLeavesOtherDeletedMessages(t *testing.T) {
	srv := testutil.NewMailServer(true)
	keep := srv.Deliver(testutil.RawMessage("a@x", "a@x.com", "archive me", "a"), testNow)
	pending := srv.Deliver(testutil.RawMessage("b@x", "b@x.com", "flagged elsewhere", "b"), testNow, imap.FlagDeleted)
	s := connect(t, srv)

	archived, err := s.Archive(context.Background(), refOf(s, "INBOX", keep))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultFolderAllMail, archived.Folder)

	assert.Equal(t, []imap.UID{pending}, srv.Messages("INBOX"))
	assert.Len(t, srv.Messages(model.DefaultFolderAllMail), 2, "archive adds no duplicate all-mail copy")
	assert.Contains(t, srv.Messages(model.DefaultFolderAllMail), imap.UID(archived.UID))
}

func TestSessionsShareServerAfterClose(t *testing.T) {
	srv := testutil.NewMailServer(false)
	uid := srv.Deliver(testutil.RawMessage("r@x", "a@x.com", "again", "r"), testNow)

	first := connect(t, srv)
	first.Close()

	second := connect(t, srv)
	refs, err := second.SearchUIDs(context.Background(), "INBOX", mail.Criteria{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.MessageRef{refOf(second, "INBOX", uid)}, refs)
}

func TestApplyRejectsConflictingMoves(t *testing.T) {
	srv := testutil.NewMailServer(false)
	uid := srv.Deliver(testutil.RawMessage("c@x", "a@x.com", "c", "c"), testNow)
	s := connect(t, srv)

	_, err := s.Apply(context.Background(), refOf(s, "INBOX", uid), model.FlagChange{Archive: true, Trash: true})
	assert.True(t, errors.Is(err, mailerr.ErrInvalidArgument))

	_, err = s.Apply(context.Background(), refOf(s, "INBOX", uid), model.FlagChange{})
	assert.True(t, errors.Is(err, mailerr.ErrInvalidArgument))
}

func TestSeenFlagRoundTrip(t *testing.T) {
	srv := testutil.NewMailServer(false)
	uid := srv.Deliver(testutil.RawMessage("s@x", "a@x.com", "s", "s"), testNow)
	s := connect(t, srv)
	ctx := context.Background()
	ref := refOf(s, "INBOX", uid)

	seen, unseen := true, false
	_, err := s.Apply(ctx, ref, model.FlagChange{Seen: &seen})
	require.NoError(t, err)
	summary, err := s.Summary(ctx, ref)
	require.NoError(t, err)
	assert.True(t, summary.Flags.Seen)

	_, err = s.Apply(ctx, ref, model.FlagChange{Seen: &unseen})
	require.NoError(t, err)
	summary, err = s.Summary(ctx, ref)
	require.NoError(t, err)
	assert.False(t, summary.Flags.Seen)
}

func TestCustomStarFlag(t *testing.T) {
	srv := testutil.NewMailServer(false)
	uid := srv.Deliver(testutil.RawMessage("k@x", "a@x.com", "k", "k"), testNow, imap.Flag("$Important"))

	p := workProfile()
	p.StarFlag = "$Important"
	s, err := mail.Connect(context.Background(), p, srv.Password, mail.Options{Dial: srv.Dial})
	require.NoError(t, err)
	defer s.Close()

	summary, err := s.Summary(context.Background(), refOf(s, "INBOX", uid))
	require.NoError(t, err)
	assert.True(t, summary.Flags.Flagged)
}

func TestDeadlineClosesConnection(t *testing.T) {
	srv := testutil.NewMailServer(false)
	srv.Deliver(testutil.RawMessage("d@x", "a@x.com", "d", "d"), testNow)

	ctx, cancel := context.WithCancel(context.Background())
	s, err := mail.Connect(ctx, workProfile(), srv.Password, mail.Options{Dial: srv.Dial})
	require.NoError(t, err)
	defer s.Close()

	cancel()
	require.Eventually(t, func() bool { return srv.Closed.Load() }, time.Second, time.Millisecond)

	_, err = s.ListMessages(ctx, "INBOX", mail.Criteria{}, 0)
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindNetwork))
	assert.True(t, errors.Is(err, mailerr.ErrTimeout))
}
