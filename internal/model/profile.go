package model

import (
	"fmt"
	"strings"
)

// Gmail defaults applied when a profile is created without explicit
// server settings.
const (
	GmailIMAPHost = "imap.gmail.com"
	GmailIMAPPort = 993
	GmailSMTPHost = "smtp.gmail.com"
	GmailSMTPPort = 587

	DefaultFolderInbox   = "INBOX"
	DefaultFolderSent    = "[Gmail]/Sent Mail"
	DefaultFolderTrash   = "[Gmail]/Trash"
	DefaultFolderAllMail = "[Gmail]/All Mail"

	DefaultStarFlag = `\Flagged`
)

// Profile describes one mail account. The session holds it by value
// for its whole lifetime.
type Profile struct {
	// Name is the user-chosen identifier used on the command line.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Email is the login and the profile's own address.
	Email string `mapstructure:"email" yaml:"email" json:"email"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host" json:"imap_host"`
	IMAPPort int    `mapstructure:"imap_port" yaml:"imap_port" json:"imap_port"`
	// IMAPSSL selects implicit TLS; when false STARTTLS is used.
	IMAPSSL bool `mapstructure:"imap_ssl" yaml:"imap_ssl" json:"imap_ssl"`

	SMTPHost     string `mapstructure:"smtp_host" yaml:"smtp_host" json:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port" yaml:"smtp_port" json:"smtp_port"`
	SMTPStartTLS bool   `mapstructure:"smtp_starttls" yaml:"smtp_starttls" json:"smtp_starttls"`

	FolderInbox   string `mapstructure:"folder_inbox" yaml:"folder_inbox" json:"folder_inbox"`
	FolderSent    string `mapstructure:"folder_sent" yaml:"folder_sent" json:"folder_sent"`
	FolderTrash   string `mapstructure:"folder_trash" yaml:"folder_trash" json:"folder_trash"`
	FolderAllMail string `mapstructure:"folder_allmail" yaml:"folder_allmail" json:"folder_allmail"`

	// StarFlag is the protocol flag that backs "starred".
	StarFlag string `mapstructure:"star_flag" yaml:"star_flag" json:"star_flag"`

	DefaultFromName string `mapstructure:"default_from_name" yaml:"default_from_name,omitempty" json:"default_from_name,omitempty"`
}

// NewGmailProfile returns a profile with Gmail server and folder defaults.
func NewGmailProfile(name, email string) Profile {
	return Profile{
		Name:          name,
		Email:         email,
		IMAPHost:      GmailIMAPHost,
		IMAPPort:      GmailIMAPPort,
		IMAPSSL:       true,
		SMTPHost:      GmailSMTPHost,
		SMTPPort:      GmailSMTPPort,
		SMTPStartTLS:  true,
		FolderInbox:   DefaultFolderInbox,
		FolderSent:    DefaultFolderSent,
		FolderTrash:   DefaultFolderTrash,
		FolderAllMail: DefaultFolderAllMail,
		StarFlag:      DefaultStarFlag,
	}
}

// ApplyDefaults fills any empty field with its default value.
func (p *Profile) ApplyDefaults() {
	if p.IMAPPort == 0 {
		p.IMAPPort = GmailIMAPPort
	}
	if p.SMTPPort == 0 {
		p.SMTPPort = GmailSMTPPort
	}
	if p.FolderInbox == "" {
		p.FolderInbox = DefaultFolderInbox
	}
	if p.FolderSent == "" {
		p.FolderSent = DefaultFolderSent
	}
	if p.FolderTrash == "" {
		p.FolderTrash = DefaultFolderTrash
	}
	if p.FolderAllMail == "" {
		p.FolderAllMail = DefaultFolderAllMail
	}
	if p.StarFlag == "" {
		p.StarFlag = DefaultStarFlag
	}
}

// Validate reports the first missing required field.
func (p Profile) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("profile name is required")
	case strings.TrimSpace(p.Email) == "":
		return fmt.Errorf("profile %q: email is required", p.Name)
	case strings.TrimSpace(p.IMAPHost) == "":
		return fmt.Errorf("profile %q: imap host is required", p.Name)
	case p.IMAPPort <= 0 || p.IMAPPort > 65535:
		return fmt.Errorf("profile %q: invalid imap port %d", p.Name, p.IMAPPort)
	}
	return nil
}

// IMAPAddr returns host:port for the IMAP endpoint.
func (p Profile) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", p.IMAPHost, p.IMAPPort)
}
