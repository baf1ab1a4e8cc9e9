// Package profile resolves and edits the profiles kept in the YAML
// configuration file.
package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// Store is a file-backed profile store. Every call rereads the file so
// concurrent invocations see each other's edits.
type Store struct {
	path string
}

// NewStore returns a store over the config file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the config file location.
func (s *Store) Path() string {
	return s.path
}

// Config loads the whole configuration.
func (s *Store) Config() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(s.path)
	if err != nil {
		return nil, mailerr.Config(err, "invalid config file %s: %v", s.path, err)
	}
	return cfg, nil
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]model.Profile, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	profiles := make([]model.Profile, 0, len(cfg.Profiles))
	profiles = append(profiles, cfg.Profiles...)
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

// Get returns the named profile.
func (s *Store) Get(name string) (model.Profile, error) {
	profiles, err := s.List()
	if err != nil {
		return model.Profile{}, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return model.Profile{}, mailerr.Config(mailerr.ErrProfileNotFound, "profile %q not found", name)
}

// Resolve picks the profile for an invocation. An empty name resolves
// implicitly only when exactly one profile exists.
func (s *Store) Resolve(name string) (model.Profile, error) {
	if name != "" {
		return s.Get(name)
	}

	profiles, err := s.List()
	if err != nil {
		return model.Profile{}, err
	}

	switch len(profiles) {
	case 0:
		return model.Profile{}, mailerr.Config(mailerr.ErrNoProfile,
			"no profile configured; add one with 'anymail profile add'")
	case 1:
		return profiles[0], nil
	default:
		names := make([]string, len(profiles))
		for i, p := range profiles {
			names[i] = p.Name
		}
		return model.Profile{}, mailerr.Config(mailerr.ErrAmbiguousProfile,
			"multiple profiles found: %s; specify --profile", strings.Join(names, ", "))
	}
}

// Put adds p or replaces the profile with the same name.
func (s *Store) Put(p model.Profile) error {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return mailerr.Config(err, "%v", err)
	}

	cfg, err := s.Config()
	if err != nil {
		return err
	}

	replaced := false
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Name == p.Name {
			cfg.Profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Profiles = append(cfg.Profiles, p)
	}

	return s.save(cfg)
}

// Remove deletes the named profile. It reports whether one existed.
func (s *Store) Remove(name string) (bool, error) {
	cfg, err := s.Config()
	if err != nil {
		return false, err
	}

	kept := cfg.Profiles[:0]
	removed := false
	for _, p := range cfg.Profiles {
		if p.Name == name {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return false, nil
	}
	cfg.Profiles = kept

	return true, s.save(cfg)
}

func (s *Store) save(cfg *model.AppConfig) error {
	if err := model.SaveConfig(s.path, cfg); err != nil {
		return mailerr.Config(err, "saving config: %v", err)
	}
	return nil
}

// Describe renders a profile for the plain output of 'profile show'.
func Describe(p model.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Email: %s\n", p.Email)
	fmt.Fprintf(&b, "IMAP: %s (SSL: %t)\n", p.IMAPAddr(), p.IMAPSSL)
	fmt.Fprintf(&b, "SMTP: %s:%d (STARTTLS: %t)\n", p.SMTPHost, p.SMTPPort, p.SMTPStartTLS)
	b.WriteString("Folders:\n")
	fmt.Fprintf(&b, "  Inbox: %s\n", p.FolderInbox)
	fmt.Fprintf(&b, "  Sent: %s\n", p.FolderSent)
	fmt.Fprintf(&b, "  Trash: %s\n", p.FolderTrash)
	fmt.Fprintf(&b, "  All Mail: %s\n", p.FolderAllMail)
	fmt.Fprintf(&b, "Star flag: %s\n", p.StarFlag)
	return b.String()
}
