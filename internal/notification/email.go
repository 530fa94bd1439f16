package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/fuomag9/kabomba-status/internal/settings"
)

// ErrEmailNotConfigured is returned when SMTP is disabled or incomplete.
var ErrEmailNotConfigured = errors.New("email notifications are not configured")

// Email is a rendered message ready for delivery.
type Email struct {
	Subject string
	Body    string
}

// Mailer delivers an email using the supplied SMTP configuration.
type Mailer interface {
	Send(ctx context.Context, cfg settings.SMTPConfig, email Email) error
}

// SMTPMailer sends mail over net/smtp. Port 465 or smtp_secure uses
// implicit TLS, anything else upgrades with STARTTLS when offered.
type SMTPMailer struct {
	Timeout time.Duration
}

// NewSMTPMailer creates a mailer with a 15 second dial timeout
func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{Timeout: 15 * time.Second}
}

// BuildEmail renders the subject and text body for msg.
func BuildEmail(msg *Message) Email {
	site := msg.SiteName
	if site == "" {
		site = settings.DefaultSiteName
	}
	var subject, title string
	if msg.Event == EventDown {
		subject = fmt.Sprintf("[%s] Service Down: %s", site, msg.ServiceName)
		title = fmt.Sprintf("Service %s is DOWN", msg.ServiceName)
	} else {
		subject = fmt.Sprintf("[%s] Service Up: %s", site, msg.ServiceName)
		title = fmt.Sprintf("Service %s is back UP", msg.ServiceName)
	}
	body := FormatText(title, msg)
	if msg.SiteURL != "" {
		body += fmt.Sprintf("\n%s\n", msg.SiteURL)
	}
	return Email{Subject: subject, Body: body}
}

func (m *SMTPMailer) Send(ctx context.Context, cfg settings.SMTPConfig, email Email) error {
	if !cfg.Enabled || !cfg.Configured() {
		return ErrEmailNotConfigured
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: m.Timeout}
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if cfg.Secure || cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.Timeout * 4))
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP handshake: %w", err)
	}
	defer client.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS: %w", err)
			}
		}
	}

	if cfg.User != "" {
		if err := client.Auth(smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	from := cfg.Sender()
	recipients := cfg.Recipients()
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := w.Write(composeMessage(from, recipients, email)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return client.Quit()
}

func composeMessage(from string, to []string, email Email) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", email.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))
	return []byte(b.String())
}
