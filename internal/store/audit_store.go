package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

var _ AuditLog = (*SQLiteStore)(nil)

// auditRow is the on-disk shape of a record.
type auditRow struct {
	ID           int64          `db:"id"`
	InvocationID string         `db:"invocation_id"`
	TS           int64          `db:"ts"`
	Profile      sql.NullString `db:"profile"`
	Command      string         `db:"command"`
	Args         string         `db:"args"`
	Outcome      string         `db:"outcome"`
	ErrorKind    string         `db:"error_kind"`
	ErrorMessage string         `db:"error_message"`
	DurationMS   int64          `db:"duration_ms"`
}

func (r auditRow) record() model.AuditRecord {
	rec := model.AuditRecord{
		ID:           r.ID,
		InvocationID: r.InvocationID,
		Timestamp:    time.UnixMilli(r.TS).UTC(),
		Command:      r.Command,
		Args:         []model.Arg{},
		Outcome:      model.Outcome(r.Outcome),
		ErrorKind:    r.ErrorKind,
		ErrorMessage: r.ErrorMessage,
		DurationMS:   r.DurationMS,
	}
	if r.Profile.Valid {
		p := r.Profile.String
		rec.Profile = &p
	}
	// A corrupt args column still yields the rest of the record.
	_ = json.Unmarshal([]byte(r.Args), &rec.Args)
	return rec
}

// Append writes rec after redaction and returns its sequence id.
func (s *SQLiteStore) Append(ctx context.Context, rec model.AuditRecord) (int64, error) {
	rec = s.redactor.Apply(rec)
	if rec.InvocationID == "" {
		rec.InvocationID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	if rec.Args == nil {
		rec.Args = []model.Arg{}
	}
	if rec.Outcome != model.OutcomeSuccess && rec.Outcome != model.OutcomeError {
		return 0, mailerr.LogWrite(nil, "invalid outcome %q for %s", rec.Outcome, rec.Command)
	}

	args, err := json.Marshal(rec.Args)
	if err != nil {
		return 0, mailerr.LogWrite(err, "encoding arguments of %s: %v", rec.Command, err)
	}

	var profile sql.NullString
	if rec.Profile != nil {
		profile = sql.NullString{String: *rec.Profile, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (
			invocation_id, ts, profile, command, args,
			outcome, error_kind, error_message, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InvocationID, rec.Timestamp.UnixMilli(), profile, rec.Command, string(args),
		string(rec.Outcome), rec.ErrorKind, rec.ErrorMessage, rec.DurationMS,
	)
	if err != nil {
		return 0, mailerr.LogWrite(err, "appending audit record for %s: %v", rec.Command, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, mailerr.LogWrite(err, "reading audit record id: %v", err)
	}
	return id, nil
}

// Query returns records matching filter, newest first.
func (s *SQLiteStore) Query(ctx context.Context, filter AuditFilter, limit, offset int) ([]model.AuditRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if offset < 0 {
		offset = 0
	}

	where, args := buildAuditWhere(filter)
	query := "SELECT * FROM audit_log" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}

	records := make([]model.AuditRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// Count returns the number of records matching filter.
func (s *SQLiteStore) Count(ctx context.Context, filter AuditFilter) (int, error) {
	where, args := buildAuditWhere(filter)

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM audit_log"+where, args...); err != nil {
		return 0, fmt.Errorf("counting audit log: %w", err)
	}
	return n, nil
}

// buildAuditWhere constructs the WHERE clause and args for a filter.
func buildAuditWhere(filter AuditFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if filter.Until != nil {
		conditions = append(conditions, "ts <= ?")
		args = append(args, filter.Until.UnixMilli())
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Profile != "" {
		conditions = append(conditions, "profile = ?")
		args = append(args, filter.Profile)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
