// Package mail delivers the HTML digest over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pep299/tech-digest/internal/config"
)

const (
	implicitTLSPort = 465
	dialTimeout     = 15 * time.Second
)

// Message is one outgoing email.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Transport delivers a fully built message.
type Transport interface {
	Deliver(ctx context.Context, from string, to []string, body []byte) error
}

// Sender sends messages and reports success as a bool. Failures are logged.
type Sender struct {
	transport Transport
	to        string
	from      string
	logger    *slog.Logger
}

// NewSender creates a Sender that delivers through SMTP using the configured secrets.
func NewSender(secrets config.Secrets, logger *slog.Logger) *Sender {
	return NewSenderWithTransport(NewSMTPTransport(secrets), secrets.EmailTo, secrets.EmailFrom, logger)
}

// NewSenderWithTransport creates a Sender over an arbitrary transport.
func NewSenderWithTransport(t Transport, to, from string, logger *slog.Logger) *Sender {
	return &Sender{transport: t, to: to, from: from, logger: logger}
}

// Configured reports whether a recipient and sender are set.
func (s *Sender) Configured() bool {
	return s.to != "" && s.from != ""
}

// Send delivers msg and returns false on any error.
func (s *Sender) Send(ctx context.Context, msg Message) bool {
	if msg.To == "" || msg.From == "" {
		s.logger.Error("email not sent", "error", "missing recipient or sender")
		return false
	}

	recipients := splitAddresses(msg.To)
	if err := s.transport.Deliver(ctx, msg.From, recipients, Build(msg)); err != nil {
		s.logger.Error("email not sent", "to", msg.To, "error", err)
		return false
	}

	s.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return true
}

// SendDigest mails an HTML digest generated on date.
func (s *Sender) SendDigest(ctx context.Context, html string, date time.Time) bool {
	return s.Send(ctx, Message{
		To:      s.to,
		From:    s.from,
		Subject: Subject(date),
		HTML:    html,
	})
}

// Subject is the digest mail subject for date.
func Subject(date time.Time) string {
	return "Tech News Digest - " + date.UTC().Format("2006-01-02")
}

// Build renders msg as an RFC 5322 message with an HTML body.
func Build(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + msg.From + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

func splitAddresses(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// SMTPTransport sends through an SMTP server with PLAIN auth.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPTransport builds a transport from secrets. Gmail always uses port 465.
func NewSMTPTransport(secrets config.Secrets) *SMTPTransport {
	port := secrets.SMTPPort
	if strings.Contains(secrets.SMTPHost, "gmail.com") {
		port = implicitTLSPort
	}
	return &SMTPTransport{
		host:     secrets.SMTPHost,
		port:     port,
		username: secrets.EmailFrom,
		password: secrets.EmailPassword,
	}
}

// Deliver connects, authenticates and sends one message. Port 465 uses
// implicit TLS; every other port upgrades with STARTTLS when offered.
func (t *SMTPTransport) Deliver(ctx context.Context, from string, to []string, body []byte) error {
	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	tlsConfig := &tls.Config{ServerName: t.host}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if t.port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	if t.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if t.username != "" && t.password != "" {
		if err := client.Auth(smtp.PlainAuth("", t.username, t.password, t.host)); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data: %w", err)
	}

	return client.Quit()
}
