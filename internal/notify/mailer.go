package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Message renders a plain-text RFC 5322 message.
func Message(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if s.Host == "" {
		return fmt.Errorf("smtp: host not configured")
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("smtp: header injection rejected")
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}

	msg := Message(s.From, to, subject, body, time.Now())
	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(s.addr(), auth, s.From, []string{to}, msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp: send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
