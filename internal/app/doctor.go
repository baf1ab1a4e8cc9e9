package app

import (
	"context"
	"fmt"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/store"
)

// doctorProbeKey is written and removed to check the credential store.
const doctorProbeKey = "__anymail_doctor__"

// Check is one doctor finding.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// DoctorReport collects every check that could run.
type DoctorReport struct {
	Profile string  `json:"profile,omitempty"`
	Checks  []Check `json:"checks"`
	OK      bool    `json:"ok"`
}

type doctor struct {
	report DoctorReport
	first  error
}

func (d *doctor) pass(name, format string, args ...any) {
	d.report.Checks = append(d.report.Checks, Check{Name: name, OK: true, Detail: fmt.Sprintf(format, args...)})
}

func (d *doctor) fail(name string, err error) {
	d.report.Checks = append(d.report.Checks, Check{Name: name, Detail: mailerr.MessageOf(err)})
	if d.first == nil {
		d.first = err
	}
}

// Doctor checks configuration, credential storage, connectivity, the
// configured folders and the audit log. It fails with the first failed
// check's error and still returns the whole report.
func (a *App) Doctor(ctx context.Context, req Request) (DoctorReport, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (DoctorReport, error) {
		d := &doctor{}
		d.run(ctx, a, c)
		d.report.OK = d.first == nil
		return d.report, d.first
	})
}

func (d *doctor) run(ctx context.Context, a *App, c *Call) {
	if n, err := a.audit.Count(ctx, store.AuditFilter{}); err != nil {
		d.fail("audit log", mailerr.LogWrite(err, "audit log unreadable: %v", err))
	} else {
		d.pass("audit log", "%d records", n)
	}

	if err := a.creds.Set(doctorProbeKey, "probe"); err != nil {
		d.fail("credential store", err)
	} else {
		_ = a.creds.Delete(doctorProbeKey)
		d.pass("credential store", "accessible")
	}

	profiles, err := a.profiles.List()
	if err != nil {
		d.fail("config", err)
		return
	}
	d.pass("config", "%d profile(s) in %s", len(profiles), a.profiles.Path())

	p, err := c.Profile()
	if err != nil {
		d.fail("profile", err)
		return
	}
	d.report.Profile = p.Name
	d.pass("profile", "%s <%s>", p.Name, p.Email)

	if _, err := a.creds.Get(p.Name); err != nil {
		d.fail("password", err)
		return
	}
	d.pass("password", "stored")

	s, err := c.Session(ctx)
	if err != nil {
		d.fail("connection", err)
		return
	}
	d.pass("connection", "%s, %d folders, archive by %s", p.IMAPAddr(), len(s.Folders()), s.ArchiveStrategy())

	present := make(map[string]bool, len(s.Folders()))
	for _, f := range s.Folders() {
		present[f.Name] = true
	}
	for _, name := range []string{p.FolderInbox, p.FolderSent, p.FolderTrash, p.FolderAllMail} {
		check := fmt.Sprintf("folder %s", name)
		if present[name] {
			d.pass(check, "exists")
			continue
		}
		d.fail(check, mailerr.Protocol(mailerr.ErrFolderNotFound, "folder %q not found", name))
	}
}
