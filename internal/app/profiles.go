package app

import (
	"context"

	"github.com/pkg/errors"

	"github.com/nhle/anymail/internal/credential"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// ProfileSpec is the input of profile add. Without hosts, or with Gmail
// set, Gmail server defaults fill the gaps.
type ProfileSpec struct {
	Name         string
	Email        string
	IMAPHost     string
	IMAPPort     int
	IMAPSSL      *bool
	SMTPHost     string
	SMTPPort     int
	SMTPStartTLS *bool
	Gmail        bool
}

func (ps ProfileSpec) build() (model.Profile, error) {
	p := model.NewGmailProfile(ps.Name, ps.Email)

	if !ps.Gmail && (ps.IMAPHost != "" || ps.SMTPHost != "") {
		if ps.IMAPHost == "" || ps.SMTPHost == "" {
			return p, mailerr.Config(mailerr.ErrInvalidArgument,
				"--imap and --smtp are both required when not using Gmail defaults")
		}
	}
	if ps.IMAPHost != "" {
		p.IMAPHost = ps.IMAPHost
	}
	if ps.SMTPHost != "" {
		p.SMTPHost = ps.SMTPHost
	}
	if ps.IMAPPort != 0 {
		p.IMAPPort = ps.IMAPPort
	}
	if ps.SMTPPort != 0 {
		p.SMTPPort = ps.SMTPPort
	}
	if ps.IMAPSSL != nil {
		p.IMAPSSL = *ps.IMAPSSL
	}
	if ps.SMTPStartTLS != nil {
		p.SMTPStartTLS = *ps.SMTPStartTLS
	}
	return p, nil
}

// ProfileUpdate holds the fields profile set may change. Nil fields are
// left alone.
type ProfileUpdate struct {
	FolderInbox     *string
	FolderSent      *string
	FolderTrash     *string
	FolderAllMail   *string
	StarFlag        *string
	DefaultFromName *string
}

// IsZero reports whether the update changes nothing.
func (u ProfileUpdate) IsZero() bool {
	return u == ProfileUpdate{}
}

func (u ProfileUpdate) apply(p *model.Profile) {
	set := func(dst *string, src *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}
	set(&p.FolderInbox, u.FolderInbox)
	set(&p.FolderSent, u.FolderSent)
	set(&p.FolderTrash, u.FolderTrash)
	set(&p.FolderAllMail, u.FolderAllMail)
	set(&p.StarFlag, u.StarFlag)
	set(&p.DefaultFromName, u.DefaultFromName)
}

// ProfileAdd creates a profile. An existing name is an error.
func (a *App) ProfileAdd(ctx context.Context, req Request, spec ProfileSpec) (model.Profile, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (model.Profile, error) {
		c.AuditProfile(spec.Name)

		p, err := spec.build()
		if err != nil {
			return p, err
		}
		if _, err := a.profiles.Get(p.Name); err == nil {
			return p, mailerr.Config(mailerr.ErrInvalidArgument,
				"profile %q already exists; use 'anymail profile set'", p.Name)
		} else if !errors.Is(err, mailerr.ErrProfileNotFound) {
			return p, err
		}

		if err := a.profiles.Put(p); err != nil {
			return p, err
		}
		return a.profiles.Get(p.Name)
	})
}

// ProfileSet updates an existing profile.
func (a *App) ProfileSet(ctx context.Context, req Request, name string, update ProfileUpdate) (model.Profile, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (model.Profile, error) {
		c.AuditProfile(name)

		p, err := a.profiles.Get(name)
		if err != nil {
			return p, err
		}
		if update.IsZero() {
			return p, mailerr.Config(mailerr.ErrInvalidArgument, "nothing to update")
		}
		update.apply(&p)
		if err := a.profiles.Put(p); err != nil {
			return p, err
		}
		return p, nil
	})
}

// ProfileList returns every profile sorted by name.
func (a *App) ProfileList(ctx context.Context, req Request) ([]model.Profile, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) ([]model.Profile, error) {
		return a.profiles.List()
	})
}

// ProfileShow returns one profile.
func (a *App) ProfileShow(ctx context.Context, req Request, name string) (model.Profile, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (model.Profile, error) {
		c.AuditProfile(name)
		return a.profiles.Get(name)
	})
}

// ProfileRemove deletes a profile and its stored credential.
func (a *App) ProfileRemove(ctx context.Context, req Request, name string) (struct{}, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (struct{}, error) {
		c.AuditProfile(name)

		removed, err := a.profiles.Remove(name)
		if err != nil {
			return struct{}{}, err
		}
		if !removed {
			return struct{}{}, mailerr.Config(mailerr.ErrProfileNotFound, "profile %q not found", name)
		}
		if credential.Has(a.creds, name) {
			if err := a.creds.Delete(name); err != nil {
				a.log.Warn("credential of removed profile not cleared")
			}
		}
		return struct{}{}, nil
	})
}

// AuthStatus reports whether a credential is stored for the resolved
// profile and, when one is, whether it logs in.
type AuthStatus struct {
	Profile      string `json:"profile"`
	Email        string `json:"email"`
	HasPassword  bool   `json:"password_stored"`
	Connected    bool   `json:"connected"`
	ConnectError string `json:"connect_error,omitempty"`
}

// AuthStatus checks the resolved profile's credential. A failed login
// is reported in the status, not as the invocation's error.
func (a *App) AuthStatus(ctx context.Context, req Request) (AuthStatus, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (AuthStatus, error) {
		p, err := c.Profile()
		if err != nil {
			return AuthStatus{}, err
		}
		st := AuthStatus{Profile: p.Name, Email: p.Email, HasPassword: credential.Has(a.creds, p.Name)}
		if !st.HasPassword {
			return st, nil
		}
		if _, err := c.Session(ctx); err != nil {
			st.ConnectError = mailerr.MessageOf(err)
			return st, nil
		}
		st.Connected = true
		return st, nil
	})
}

// AuthSet stores secret for the named profile, which must exist. An
// empty name resolves the profile like any other command.
func (a *App) AuthSet(ctx context.Context, req Request, name, secret string) (struct{}, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (struct{}, error) {
		name, err := c.profileName(name)
		if err != nil {
			return struct{}{}, err
		}
		if secret == "" {
			return struct{}{}, mailerr.Auth(mailerr.ErrInvalidArgument, "empty password for profile %q", name)
		}
		return struct{}{}, a.creds.Set(name, secret)
	})
}

// AuthClear removes the named profile's credential. An empty name
// resolves the profile.
func (a *App) AuthClear(ctx context.Context, req Request, name string) (struct{}, error) {
	return Invoke(ctx, a, req, func(ctx context.Context, c *Call) (struct{}, error) {
		name, err := c.profileName(name)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, a.creds.Delete(name)
	})
}

// profileName returns the existing profile called name, or the
// resolved profile when name is empty.
func (c *Call) profileName(name string) (string, error) {
	if name == "" {
		p, err := c.Profile()
		return p.Name, err
	}
	c.AuditProfile(name)
	if _, err := c.app.profiles.Get(name); err != nil {
		return "", err
	}
	return name, nil
}
