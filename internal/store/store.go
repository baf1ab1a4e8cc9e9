package store

import (
	"context"
	"time"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/timespec"
)

// DefaultQueryLimit applies when Query is called with limit <= 0.
const DefaultQueryLimit = 100

// AuditFilter narrows an audit query. Every set field must match.
type AuditFilter struct {
	Since   *time.Time
	Until   *time.Time
	Command string
	Outcome model.Outcome
	Profile string
}

// ParseFilter builds a filter from command-line values. Since and until
// accept relative ("7d", "12h") and absolute forms, resolved against now.
func ParseFilter(since, until, command, outcome, profile string, now time.Time) (AuditFilter, error) {
	f := AuditFilter{Command: command, Profile: profile}

	if since != "" {
		t, err := timespec.Parse(since, now)
		if err != nil {
			return f, mailerr.Config(mailerr.ErrInvalidArgument, "since: %v", err)
		}
		f.Since = &t
	}
	if until != "" {
		t, err := timespec.Parse(until, now)
		if err != nil {
			return f, mailerr.Config(mailerr.ErrInvalidArgument, "until: %v", err)
		}
		f.Until = &t
	}

	switch model.Outcome(outcome) {
	case "", model.OutcomeSuccess, model.OutcomeError:
		f.Outcome = model.Outcome(outcome)
	default:
		return f, mailerr.Config(mailerr.ErrInvalidArgument,
			"outcome must be %q or %q, got %q", model.OutcomeSuccess, model.OutcomeError, outcome)
	}

	return f, nil
}

// AuditLog is the append-only invocation log.
type AuditLog interface {
	// Append redacts rec, writes it and returns its sequence id. Failures
	// are LogWriteError.
	Append(ctx context.Context, rec model.AuditRecord) (int64, error)

	// Query returns matching records newest first. An offset past the
	// last record yields an empty slice.
	Query(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.AuditRecord, error)

	Count(ctx context.Context, filter AuditFilter) (int, error)
	Close() error
}
