package mailer

import (
	"context"
	"fmt"

	"folio/internal/config"

	"gopkg.in/gomail.v2"
)

// SMTPMailer delivers transactional mail over plain SMTP: generated
// passwords, account reminders, and contact-form relays to the operator.
type SMTPMailer struct {
	cfg *config.SMTPConfig
}

func NewSMTPMailer(cfg *config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) send(to, replyTo, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From))
	msg.SetHeader("To", to)
	if replyTo != "" {
		msg.SetHeader("Reply-To", replyTo)
	}
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return dialer.DialAndSend(msg)
}

func (m *SMTPMailer) SendPassword(ctx context.Context, to, name, password string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour chat account is ready. Use this password to sign back in later:\n\n    %s\n\nYou are already signed in on this device.\n",
		name, password,
	)
	return m.send(to, "", "Your chat password", body)
}

func (m *SMTPMailer) SendAccountReminder(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nAn account with this email already exists. Sign in with the password you received when you first registered.\n",
		name,
	)
	return m.send(to, "", "You already have an account", body)
}

func (m *SMTPMailer) SendContactRelay(ctx context.Context, fromName, fromEmail, subject, body string) error {
	relay := fmt.Sprintf("From: %s <%s>\n\n%s\n", fromName, fromEmail, body)
	return m.send(m.cfg.Operator, fromEmail, "[Contact] "+subject, relay)
}
