package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// OutboundEmail is a fully rendered message ready for relay
type OutboundEmail struct {
	FromName  string
	FromEmail string
	ToName    string
	ToEmail   string
	ReplyTo   string
	Subject   string
	Body      string
	PlainText bool
}

// EmailSender relays rendered campaign content to a recipient
type EmailSender interface {
	Send(ctx context.Context, msg *OutboundEmail) error
}

// SMTPEmailSender implements EmailSender over a plain SMTP relay
type SMTPEmailSender struct {
	host     string
	port     int
	username string
	password string
}

func NewSMTPEmailSender(host string, port int, username, password string) *SMTPEmailSender {
	return &SMTPEmailSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

func (s *SMTPEmailSender) Send(ctx context.Context, msg *OutboundEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType := "text/html; charset=UTF-8"
	if msg.PlainText {
		contentType = "text/plain; charset=UTF-8"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(msg.FromName, msg.FromEmail))
	fmt.Fprintf(&b, "To: %s\r\n", formatAddress(msg.ToName, msg.ToEmail))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\nContent-Type: %s\r\n\r\n", contentType)
	b.WriteString(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := smtp.SendMail(addr, auth, msg.FromEmail, []string{msg.ToEmail}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", msg.ToEmail, err)
	}
	return nil
}

func formatAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%q <%s>", name, email)
}

// LogEmailSender implements EmailSender by logging the envelope, used in
// development and dry runs
type LogEmailSender struct{}

func NewLogEmailSender() *LogEmailSender {
	return &LogEmailSender{}
}

func (s *LogEmailSender) Send(_ context.Context, msg *OutboundEmail) error {
	log.Printf("Dry run send to=%s subject=%q bytes=%d", msg.ToEmail, msg.Subject, len(msg.Body))
	return nil
}
