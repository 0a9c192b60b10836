// Package mailer sends the transactional emails (verification codes).
package mailer

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Sender delivers one plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTP sends through an authenticated SMTP relay (STARTTLS when offered).
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTP) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.From, []string{to}, buildMessage(s.From, to, subject, body, time.Now()))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Log writes messages to the standard logger instead of sending them. Used
// when no SMTP host is configured.
type Log struct{}

func (Log) Send(_ context.Context, to, subject, body string) error {
	log.Printf("[mailer] to=%s subject=%q\n%s", to, subject, body)
	return nil
}

// buildMessage renders an RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// VerificationSubject is the subject line of signup code emails.
const VerificationSubject = "Verify your Life Dashboard account"

// VerificationBody is the text of a signup code email.
func VerificationBody(code string) string {
	return fmt.Sprintf("Your verification code is: %s\n\nThis code will expire in 10 minutes.", code)
}
