package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/store"
	"github.com/nhle/anymail/tests/testutil"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func record(command string, outcome model.Outcome, at time.Time) model.AuditRecord {
	return model.AuditRecord{
		Timestamp:  at,
		Profile:    strPtr("work"),
		Command:    command,
		Args:       []model.Arg{{Name: "limit", Value: "10"}},
		Outcome:    outcome,
		DurationMS: 42,
	}
}

func TestAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	first, err := s.Append(ctx, record("inbox", model.OutcomeSuccess, t0))
	require.NoError(t, err)
	second, err := s.Append(ctx, model.AuditRecord{
		Timestamp:    t0.Add(time.Minute),
		Command:      "profile list",
		Outcome:      model.OutcomeError,
		ErrorKind:    string(mailerr.KindConfig),
		ErrorMessage: "invalid config file",
	})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	records, err := s.Query(ctx, store.AuditFilter{}, 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, second, records[0].ID)
	assert.Nil(t, records[0].Profile)
	assert.Equal(t, model.OutcomeError, records[0].Outcome)
	assert.Equal(t, "config_error", records[0].ErrorKind)
	assert.Empty(t, records[0].Args)
	assert.NotNil(t, records[0].Args)

	assert.Equal(t, "work", *records[1].Profile)
	assert.Equal(t, t0, records[1].Timestamp)
	assert.NotEmpty(t, records[1].InvocationID)
	assert.Equal(t, []model.Arg{{Name: "limit", Value: "10"}}, records[1].Args)
	assert.Equal(t, int64(42), records[1].DurationMS)
}

func TestAppendRejectsUnknownOutcome(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.Append(context.Background(), record("inbox", "maybe", t0))
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindLogWrite))
}

func TestDuplicateInvocationIDIsLogWriteError(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	rec := record("inbox", model.OutcomeSuccess, t0)
	rec.InvocationID = "fixed"
	_, err := s.Append(ctx, rec)
	require.NoError(t, err)

	_, err = s.Append(ctx, rec)
	require.Error(t, err)
	assert.True(t, mailerr.Is(err, mailerr.KindLogWrite))
}

func TestRedactionReachesDisk(t *testing.T) {
	ctx := context.Background()
	path := testutil.TempDBPath(t)
	s := testutil.NewFileStore(t, path)

	body := "meet at the usual place"
	_, err := s.Append(ctx, model.AuditRecord{
		Timestamp: t0,
		Command:   "reply",
		Args: []model.Arg{
			{Name: "uid", Value: "42"},
			{Name: "--body", Value: body},
			{Name: "Password", Value: "hunter2"},
		},
		Outcome:      model.OutcomeError,
		ErrorMessage: "server rejected draft: meet at the usual place",
	})
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var args, msg string
	require.NoError(t, db.QueryRow("SELECT args, error_message FROM audit_log").Scan(&args, &msg))
	assert.NotContains(t, args, body)
	assert.NotContains(t, args, "hunter2")
	assert.Contains(t, args, store.RedactedPlaceholder)
	assert.NotContains(t, msg, body)

	records, err := s.Query(ctx, store.AuditFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0].Args
	assert.Equal(t, model.Arg{Name: "uid", Value: "42"}, got[0])
	assert.Equal(t, model.Arg{Name: "--body", Value: store.RedactedPlaceholder, Redacted: true, Bytes: len(body)}, got[1])
	assert.True(t, got[2].Redacted)
	assert.Equal(t, 7, got[2].Bytes)
}

func TestCustomRedactFields(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t, store.WithRedactor(store.NewRedactor([]string{"subject"})))

	_, err := s.Append(ctx, model.AuditRecord{
		Timestamp: t0,
		Command:   "search",
		Args:      []model.Arg{{Name: "subject", Value: "salary"}, {Name: "body", Value: "kept"}},
		Outcome:   model.OutcomeSuccess,
	})
	require.NoError(t, err)

	records, err := s.Query(ctx, store.AuditFilter{}, 1, 0)
	require.NoError(t, err)
	assert.True(t, records[0].Args[0].Redacted)
	assert.Equal(t, "kept", records[0].Args[1].Value)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	for i, r := range []model.AuditRecord{
		record("inbox", model.OutcomeSuccess, t0.Add(-72*time.Hour)),
		record("inbox", model.OutcomeError, t0.Add(-2*time.Hour)),
		record("search", model.OutcomeSuccess, t0.Add(-1*time.Hour)),
	} {
		if i == 2 {
			r.Profile = strPtr("home")
		}
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		filter   func(t *testing.T) store.AuditFilter
		commands []string
	}{
		{
			name:     "command",
			filter:   func(*testing.T) store.AuditFilter { return store.AuditFilter{Command: "inbox"} },
			commands: []string{"inbox", "inbox"},
		},
		{
			name:     "outcome",
			filter:   func(*testing.T) store.AuditFilter { return store.AuditFilter{Outcome: model.OutcomeError} },
			commands: []string{"inbox"},
		},
		{
			name:     "profile",
			filter:   func(*testing.T) store.AuditFilter { return store.AuditFilter{Profile: "home"} },
			commands: []string{"search"},
		},
		{
			name: "relative since",
			filter: func(t *testing.T) store.AuditFilter {
				f, err := store.ParseFilter("1d", "", "", "", "", t0)
				require.NoError(t, err)
				return f
			},
			commands: []string{"search", "inbox"},
		},
		{
			name: "since and until",
			filter: func(t *testing.T) store.AuditFilter {
				f, err := store.ParseFilter("7d", "2026-03-10T09:00:00Z", "", "success", "", t0)
				require.NoError(t, err)
				return f
			},
			commands: []string{"inbox"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter(t)
			records, err := s.Query(ctx, f, 0, 0)
			require.NoError(t, err)

			var got []string
			for _, r := range records {
				got = append(got, r.Command)
			}
			assert.Equal(t, tt.commands, got)

			n, err := s.Count(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, len(tt.commands), n)
		})
	}
}

func TestQueryPaging(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, record(fmt.Sprintf("cmd%d", i), model.OutcomeSuccess, t0))
		require.NoError(t, err)
	}

	page, err := s.Query(ctx, store.AuditFilter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "cmd2", page[0].Command)
	assert.Equal(t, "cmd1", page[1].Command)

	past, err := s.Query(ctx, store.AuditFilter{}, 10, 50)
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past)
}

func TestParseFilterErrors(t *testing.T) {
	for _, tc := range [][3]string{
		{"soon", "", ""},
		{"", "not-a-date", ""},
		{"", "", "partial"},
	} {
		_, err := store.ParseFilter(tc[0], tc[1], "", tc[2], "", t0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mailerr.ErrInvalidArgument))
		assert.True(t, mailerr.Is(err, mailerr.KindConfig))
	}
}

func TestConcurrentWritersOnOneFile(t *testing.T) {
	ctx := context.Background()
	path := testutil.TempDBPath(t)
	a := testutil.NewFileStore(t, path)
	b := testutil.NewFileStore(t, path)

	const perWriter = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*perWriter)
	for _, s := range []*store.SQLiteStore{a, b} {
		wg.Add(1)
		go func(s *store.SQLiteStore) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.Append(ctx, record("inbox", model.OutcomeSuccess, t0)); err != nil {
					errs <- err
				}
			}
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := a.Query(ctx, store.AuditFilter{}, 1000, 0)
	require.NoError(t, err)
	require.Len(t, records, 2*perWriter)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i-1].ID, records[i].ID)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := testutil.TempDBPath(t)

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.Append(ctx, record("inbox", model.OutcomeSuccess, t0))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := testutil.NewFileStore(t, path)
	n, err := reopened.Count(ctx, store.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
