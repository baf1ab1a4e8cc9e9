package store

import (
	"strings"

	"github.com/nhle/anymail/internal/model"
)

// RedactedPlaceholder replaces the value of every sensitive argument.
const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces sensitive argument values before they are
// persisted. Matching is by argument name, ignoring case and any
// leading dashes.
type Redactor struct {
	fields map[string]struct{}
}

// NewRedactor builds a redactor for the given argument names. A nil
// slice selects model.DefaultRedactFields.
func NewRedactor(fields []string) *Redactor {
	if fields == nil {
		fields = model.DefaultRedactFields
	}
	r := &Redactor{fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		r.fields[normalizeName(f)] = struct{}{}
	}
	return r
}

// Sensitive reports whether values of the named argument are redacted.
func (r *Redactor) Sensitive(name string) bool {
	_, ok := r.fields[normalizeName(name)]
	return ok
}

// Apply returns a copy of rec with sensitive values replaced by a fixed
// placeholder and their byte length. The same values are scrubbed from
// the error message.
func (r *Redactor) Apply(rec model.AuditRecord) model.AuditRecord {
	args := make([]model.Arg, len(rec.Args))
	var secrets []string
	for i, a := range rec.Args {
		// A Redacted mark on input only adds to the sensitive set; the
		// value is still replaced unless it already is the placeholder.
		if !a.Redacted && !r.Sensitive(a.Name) {
			args[i] = a
			continue
		}
		if a.Redacted && a.Value == RedactedPlaceholder {
			args[i] = a
			continue
		}
		if a.Value != "" {
			secrets = append(secrets, a.Value)
		}
		args[i] = model.Arg{
			Name:     a.Name,
			Value:    RedactedPlaceholder,
			Redacted: true,
			Bytes:    len(a.Value),
		}
	}
	rec.Args = args

	for _, secret := range secrets {
		rec.ErrorMessage = strings.ReplaceAll(rec.ErrorMessage, secret, RedactedPlaceholder)
	}
	return rec
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "-"))
}
