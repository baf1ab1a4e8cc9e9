// Package output renders invocation results. JSON mode writes one
// indented document per result; plain mode writes styled text; pipe
// mode writes bare UIDs, one per line, for listing commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nhle/anymail/internal/app"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/profile"
	"github.com/nhle/anymail/internal/theme"
)

// Mode selects the output format.
type Mode int

const (
	ModePlain Mode = iota
	ModeJSON
	ModePipe
)

const dateLayout = "2006-01-02 15:04"

// Printer writes results to out and plain-mode errors to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
}

// New returns a printer.
func New(out, errOut io.Writer, mode Mode) *Printer {
	return &Printer{out: out, errOut: errOut, mode: mode}
}

// WithMode returns a copy of p writing in mode.
func (p *Printer) WithMode(mode Mode) *Printer {
	c := *p
	c.mode = mode
	return &c
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) rule() {
	p.printf("%s\n", theme.RuleStyle.Render(strings.Repeat("-", 80)))
}

// Error reports err. JSON mode writes {"error": {"kind", "message"}} to
// stdout so callers parsing output see it; plain mode writes to stderr.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	kind, msg := mailerr.KindOf(err), mailerr.MessageOf(err)
	if p.mode == ModeJSON {
		_ = p.JSON(map[string]any{"error": map[string]string{"kind": string(kind), "message": msg}})
		return
	}
	fmt.Fprintf(p.errOut, "%s %s\n", theme.ErrorStyle.Render("Error:"), msg)
}

// Done reports a completed action without a data result.
func (p *Printer) Done(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if p.mode == ModeJSON {
		return p.JSON(map[string]any{"ok": true, "message": msg})
	}
	p.printf("%s\n", msg)
	return nil
}

// Listing renders inbox and search results.
func (p *Printer) Listing(l app.Listing) error {
	switch p.mode {
	case ModePipe:
		for _, r := range l.Refs {
			p.printf("%d\n", r.UID)
		}
		return nil
	case ModeJSON:
		if len(l.Messages) == 0 && len(l.Refs) > 0 {
			return p.JSON(l.Refs)
		}
		return p.JSON(l.Messages)
	}

	if len(l.Messages) == 0 {
		p.printf("%s\n", theme.DimmedStyle.Render("No messages."))
		return nil
	}
	for _, m := range l.Messages {
		p.printf("%s\n", summaryLine(m))
	}
	return nil
}

func summaryLine(m model.MessageSummary) string {
	status, star := " ", " "
	if !m.Flags.Seen {
		status = theme.UnreadStyle.Render("U")
	}
	if m.Flags.Flagged {
		star = theme.StarStyle.Render("*")
	}
	subject := m.Subject
	if !m.Flags.Seen {
		subject = theme.UnreadStyle.Render(subject)
	}
	return fmt.Sprintf("%s%s %6d  %s  %-30s  %s",
		status, star, m.Ref.UID,
		theme.DimmedStyle.Render(formatDate(m.Date)),
		clip(m.From, 30), subject)
}

// Details renders read results. With several messages each gets a
// separator line naming its UID.
func (p *Printer) Details(details []*model.MessageDetail, showHeaders, showBody bool) error {
	if p.mode == ModeJSON {
		if len(details) == 1 {
			return p.JSON(details[0])
		}
		return p.JSON(details)
	}

	for i, d := range details {
		if len(details) > 1 {
			if i > 0 {
				p.printf("\n")
			}
			p.printf("%s\n\n", theme.HeaderStyle.Render(fmt.Sprintf("--- Message %d ---", d.Ref.UID)))
		}
		if showHeaders {
			p.printf("%s\n", theme.HeaderStyle.Render("Headers:"))
			p.rule()
			for _, h := range d.Headers {
				p.printf("%s %s\n", theme.LabelStyle.Render(h.Name+":"), h.Value)
			}
			p.rule()
		}
		if showBody {
			switch {
			case d.TextBody != "":
				p.printf("\n%s\n", theme.HeaderStyle.Render("Body:"))
				p.rule()
				p.printf("%s\n", strings.TrimRight(d.TextBody, "\r\n"))
			case d.HTMLBody != "":
				p.printf("\n%s\n", theme.HeaderStyle.Render("Body (HTML):"))
				p.rule()
				p.printf("%s\n", strings.TrimRight(d.HTMLBody, "\r\n"))
			}
		}
		if len(d.Attachments) > 0 {
			p.printf("\n%s\n", theme.HeaderStyle.Render("Attachments:"))
			for _, a := range d.Attachments {
				p.printf("%s\n", attachmentLine(a))
			}
		}
	}
	return nil
}

// Attachments renders an attachment listing or save result.
func (p *Printer) Attachments(res app.AttachmentResult) error {
	if p.mode == ModeJSON {
		if len(res.Saved) > 0 {
			return p.JSON(res.Saved)
		}
		return p.JSON(res.Attachments)
	}
	if len(res.Saved) > 0 {
		for _, s := range res.Saved {
			p.printf("Saved: %s\n", s.Path)
		}
		return nil
	}
	if len(res.Attachments) == 0 {
		p.printf("%s\n", theme.DimmedStyle.Render("No attachments."))
	}
	for _, a := range res.Attachments {
		p.printf("%s\n", attachmentLine(a))
	}
	return nil
}

func attachmentLine(a model.Attachment) string {
	name := a.Filename
	if name == "" {
		name = "(no filename)"
	}
	return fmt.Sprintf("%s  %s  %d bytes  %s",
		name, a.ContentType, a.Size, theme.DimmedStyle.Render("part "+a.PartID))
}

// Flag renders the message state after a flag command.
func (p *Printer) Flag(res app.FlagResult) error {
	if p.mode == ModeJSON {
		return p.JSON(res)
	}
	m := res.Message
	loc := string(m.Location)
	p.printf("Message %d: %s", m.Ref.UID, theme.LocationStyle(loc).Render(loc))
	if res.Moved {
		p.printf(" (now %s UID %d)", res.Ref.Folder, res.Ref.UID)
	}
	p.printf("\n")
	p.printf("Flags: seen=%t answered=%t flagged=%t\n", m.Flags.Seen, m.Flags.Answered, m.Flags.Flagged)
	return nil
}

// Reply renders a reply context.
func (p *Printer) Reply(rc model.ReplyContext) error {
	if p.mode == ModeJSON {
		return p.JSON(rc)
	}
	p.printf("%s %s\n", theme.LabelStyle.Render("To:"), strings.Join(rc.To, ", "))
	if len(rc.Cc) > 0 {
		p.printf("%s %s\n", theme.LabelStyle.Render("Cc:"), strings.Join(rc.Cc, ", "))
	}
	p.printf("%s %s\n", theme.LabelStyle.Render("Subject:"), rc.Subject)
	if rc.InReplyTo != "" {
		p.printf("%s %s\n", theme.LabelStyle.Render("In-Reply-To:"), rc.InReplyTo)
		p.printf("%s %s\n", theme.LabelStyle.Render("References:"), strings.Join(rc.References, " "))
	}
	switch {
	case rc.QuotedText != "":
		p.printf("\n%s\n", theme.HeaderStyle.Render("Quoted text:"))
		p.rule()
		p.printf("%s\n", rc.QuotedText)
	case !rc.QuoteAvailable:
		p.printf("\n%s\n", theme.DimmedStyle.Render("No plain-text part to quote."))
	}
	return nil
}

// Profiles renders profile list.
func (p *Printer) Profiles(profiles []model.Profile) error {
	if p.mode == ModeJSON {
		return p.JSON(profiles)
	}
	if len(profiles) == 0 {
		p.printf("No profiles configured.\n")
		return nil
	}
	for _, pr := range profiles {
		p.printf("%s: %s\n", theme.LabelStyle.Render(pr.Name), pr.Email)
	}
	return nil
}

// Profile renders profile show.
func (p *Printer) Profile(pr model.Profile) error {
	if p.mode == ModeJSON {
		return p.JSON(pr)
	}
	p.printf("%s", profile.Describe(pr))
	return nil
}

// AuthStatus renders auth status.
func (p *Printer) AuthStatus(st app.AuthStatus) error {
	if p.mode == ModeJSON {
		return p.JSON(st)
	}
	p.printf("Profile: %s\n", st.Profile)
	p.printf("Email: %s\n", st.Email)
	p.printf("Password stored: %s\n", yesNo(st.HasPassword))
	if !st.HasPassword {
		return nil
	}
	if st.Connected {
		p.printf("Connection: %s\n", theme.OKStyle.Render("OK"))
	} else {
		p.printf("Connection: %s - %s\n", theme.ErrorStyle.Render("FAILED"), st.ConnectError)
	}
	return nil
}

// Doctor renders a doctor report.
func (p *Printer) Doctor(r app.DoctorReport) error {
	if p.mode == ModeJSON {
		return p.JSON(r)
	}
	for _, c := range r.Checks {
		mark := theme.OKStyle.Render("✓")
		if !c.OK {
			mark = theme.ErrorStyle.Render("✗")
		}
		p.printf("%s %s: %s\n", mark, c.Name, c.Detail)
	}
	if r.OK {
		p.printf("\n%s\n", theme.OKStyle.Render("All checks passed"))
	}
	return nil
}

// Logs renders a page of audit records.
func (p *Printer) Logs(page app.LogsPage) error {
	if p.mode == ModeJSON {
		return p.JSON(page)
	}
	if len(page.Records) == 0 {
		p.printf("%s\n", theme.DimmedStyle.Render("No log entries."))
		return nil
	}
	for _, r := range page.Records {
		prof := "-"
		if r.Profile != nil {
			prof = *r.Profile
		}
		outcome := string(r.Outcome)
		p.printf("%6d  %s  %-14s  %-10s  %s  %5dms",
			r.ID,
			theme.DimmedStyle.Render(r.Timestamp.Local().Format("2006-01-02 15:04:05")),
			r.Command, prof,
			theme.OutcomeStyle(outcome).Render(fmt.Sprintf("%-7s", outcome)),
			r.DurationMS)
		if r.ErrorMessage != "" {
			p.printf("  %s", r.ErrorMessage)
		}
		p.printf("\n")
	}
	if shown := page.Offset + len(page.Records); shown < page.Total {
		p.printf("%s\n", theme.DimmedStyle.Render(
			fmt.Sprintf("%d of %d; next page with --offset %d", shown, page.Total, shown)))
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return strings.Repeat(" ", len(dateLayout))
	}
	return t.Local().Format(dateLayout)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
