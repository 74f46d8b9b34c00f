package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recmind-app/recmind-server/pkg/logger"
	"github.com/recmind-app/recmind-server/pkg/mail"
)

const defaultCodeValidity = 10 * time.Minute

// VerificationMailerOption customises the VerificationMailer.
type VerificationMailerOption func(*VerificationMailer)

// WithVerificationSubject overrides the email subject line.
func WithVerificationSubject(subject string) VerificationMailerOption {
	return func(s *VerificationMailer) {
		if strings.TrimSpace(subject) != "" {
			s.subject = subject
		}
	}
}

// WithCodeValidity sets the validity window mentioned in the email body.
func WithCodeValidity(d time.Duration) VerificationMailerOption {
	return func(s *VerificationMailer) {
		if d > 0 {
			s.validity = d
		}
	}
}

// VerificationMailer delivers verification codes for local registrations.
// A disabled SMTP transport is tolerated so that local development works
// without a mail server; the code is logged instead.
type VerificationMailer struct {
	mailer   mail.Mailer
	subject  string
	validity time.Duration
	log      *zap.Logger
}

// NewVerificationMailer constructs the mailer with the provided transport.
func NewVerificationMailer(mailer mail.Mailer, opts ...VerificationMailerOption) (*VerificationMailer, error) {
	if mailer == nil {
		return nil, errors.New("verification mailer: mail transport is required")
	}

	service := &VerificationMailer{
		mailer:   mailer,
		subject:  "Verify your RecMind account",
		validity: defaultCodeValidity,
		log:      logger.WithModule("services.verification"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// SendCode emails the verification code to the given address.
func (s *VerificationMailer) SendCode(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return errors.New("verification mailer: email is required")
	}
	if strings.TrimSpace(code) == "" {
		return errors.New("verification mailer: code is required")
	}

	message := mail.Message{
		To:      []string{email},
		Subject: s.subject,
		Body:    s.codeBody(code),
		HTML:    true,
	}

	if err := s.mailer.Send(ctx, message); err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("smtp disabled, verification code not delivered",
				zap.String("email", email))
			return nil
		}
		return fmt.Errorf("verification mailer: send code: %w", err)
	}

	s.log.Info("verification code sent", zap.String("email", email))
	return nil
}

func (s *VerificationMailer) codeBody(code string) string {
	minutes := int(s.validity.Minutes())
	return fmt.Sprintf(
		"<p>Your verification code is <b>%s</b>.</p><p>It expires in %d minutes. If you did not create a RecMind account, you can ignore this email.</p>",
		html.EscapeString(code), minutes)
}
