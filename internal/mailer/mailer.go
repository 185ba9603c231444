// Package mailer forwards contact form submissions over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// ErrNotConfigured is returned by Send when SMTP credentials are missing.
var ErrNotConfigured = errors.New("mailer: SMTP credentials not configured")

// Message is one contact submission.
type Message struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends messages to a single inbox.
type Mailer struct {
	Host string
	Port string
	User string
	Pass string
	To   string

	// Send defaults to smtp.SendMail.
	Send SendFunc
}

// Configured reports whether credentials are present.
func (m *Mailer) Configured() bool {
	return m != nil && m.User != "" && m.Pass != "" && m.Host != ""
}

// Deliver composes and sends msg. The context is only checked before
// dialing; net/smtp has no context support.
func (m *Mailer) Deliver(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	to := m.To
	if to == "" {
		to = m.User
	}
	send := m.Send
	if send == nil {
		send = smtp.SendMail
	}

	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	addr := net.JoinHostPort(m.Host, m.Port)
	if err := send(addr, auth, m.User, []string{to}, Compose(m.User, to, msg)); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

// Compose renders the raw message bytes. Header values are stripped of
// line breaks so a submission cannot inject headers.
func Compose(from, to string, msg Message) []byte {
	subject := fmt.Sprintf("Portfolio Contact: %s", oneLine(msg.Subject))
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Subject: %s
Message:
%s

---
Sent from your portfolio contact form
`, msg.Name, msg.Email, msg.Subject, msg.Body)

	var b strings.Builder
	b.WriteString("To: " + oneLine(to) + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("From: " + oneLine(from) + "\r\n")
	b.WriteString("Reply-To: " + oneLine(msg.Email) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body + "\r\n")
	return []byte(b.String())
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
