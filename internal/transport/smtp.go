package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	mail "gopkg.in/mail.v2"
)

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// MessageIDDomain is the right-hand side of generated Message-ID headers.
	MessageIDDomain string
}

// SMTPSender delivers through an SMTP relay. The Message-ID header is
// generated locally and returned as the provider message id.
type SMTPSender struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, m *mail.Message) error
}

// NewSMTPSender creates an SMTP sender. Port 465 uses implicit TLS; other
// ports use STARTTLS when the server offers it.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.MessageIDDomain == "" {
		cfg.MessageIDDomain = cfg.Host
	}
	s := &SMTPSender{cfg: cfg}
	s.dial = s.dialAndSend
	return s
}

// Name implements Sender.
func (s *SMTPSender) Name() string { return "smtp" }

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (Result, error) {
	id := fmt.Sprintf("%s@%s", uuid.New().String(), s.cfg.MessageIDDomain)

	m := mail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", "<"+id+">")
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Tags {
		if v != "" {
			m.SetHeader("X-Tag-"+k, v)
		}
	}
	m.SetBody("text/html", msg.HTML)

	if err := s.dial(ctx, m); err != nil {
		return Result{}, classified("smtp", smtpErrorKind(err), err)
	}
	return Result{MessageID: id, Provider: "smtp"}, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, m *mail.Message) error {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	d.SSL = s.cfg.Port == 465
	if deadline, ok := ctx.Deadline(); ok {
		d.Timeout = time.Until(deadline)
	}

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func smtpErrorKind(err error) ErrorKind {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 535 || tpErr.Code == 530 || tpErr.Code == 534:
			return KindAuthFailure
		case tpErr.Code >= 500:
			return KindRejected
		}
		return KindUnknown
	}
	if strings.Contains(strings.ToLower(err.Error()), "auth") {
		return KindAuthFailure
	}
	return KindOf(err)
}
