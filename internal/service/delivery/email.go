package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPEmail sends plain-text notification mail.
type SMTPEmail struct {
	cfg      SMTPConfig
	contacts domrepo.ContactStore
	send     sendMailFunc
}

func NewSMTPEmail(cfg SMTPConfig, contacts domrepo.ContactStore) *SMTPEmail {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPEmail{cfg: cfg, contacts: contacts, send: smtp.SendMail}
}

func (e *SMTPEmail) Name() string { return models.ChannelEmail }

func (e *SMTPEmail) Send(ctx context.Context, userID string, msg models.DeliveryMessage) error {
	contact, err := e.contacts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("email: no contact for user %s", userID)
		}
		return fmt.Errorf("email: load contact: %w", err)
	}
	if !strings.Contains(contact.Email, "@") {
		return fmt.Errorf("email: invalid address for user %s", userID)
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n\r\nPriority: %s\r\n",
		e.cfg.From, contact.Email, msg.Title, msg.Message, msg.Priority)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	// smtp.SendMail has no context; run it aside so ctx still bounds the wait.
	done := make(chan error, 1)
	go func() {
		done <- e.send(addr, auth, e.cfg.From, []string{contact.Email}, []byte(body))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", contact.Email, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send email to %s: %w", contact.Email, ctx.Err())
	}
}
