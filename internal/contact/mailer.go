// Package contact validates contact-form submissions and mails them to the
// site owner.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	mail "gopkg.in/mail.v2"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/models"
)

var (
	// ErrRateLimited is returned when a client submits too often.
	ErrRateLimited = errors.New("too many requests")
	// ErrInvalid is matched by every validation failure.
	ErrInvalid = errors.New("invalid submission")
	// ErrMissingFields is returned when name, email or message is blank.
	ErrMissingFields = fmt.Errorf("%w: name, email, and message are required", ErrInvalid)
	// ErrInvalidEmail is returned for a malformed email address.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email address", ErrInvalid)
)

// Sender delivers a composed message.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Service handles contact submissions.
type Service struct {
	from     string
	to       string
	siteName string
	sender   Sender
	limiter  *Limiter
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a Service that sends through an SMTP dialer. Port 465
// uses implicit TLS.
func NewService(cfg config.ContactConfig, siteName string, logger *slog.Logger) *Service {
	dialer := mail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.SSL = cfg.SMTPPort == 465
	return newService(cfg, siteName, dialer, NewLimiter(), logger)
}

func newService(cfg config.ContactConfig, siteName string, sender Sender, limiter *Limiter, logger *slog.Logger) *Service {
	return &Service{
		from:     cfg.FromEmail,
		to:       cfg.ToEmail,
		siteName: siteName,
		sender:   sender,
		limiter:  limiter,
		validate: validator.New(),
		logger:   logger,
	}
}

// Submit rate-limits, validates and sends msg. Submissions that filled the
// honeypot field are accepted and dropped.
func (s *Service) Submit(ctx context.Context, client string, msg models.ContactMessage) error {
	if !s.limiter.Allow(client) {
		return ErrRateLimited
	}

	if strings.TrimSpace(msg.Website) != "" {
		s.logger.Info("dropping honeypot submission", "client", client)
		return nil
	}

	msg.Name = strings.TrimSpace(msg.Name)
	msg.Email = strings.TrimSpace(msg.Email)
	msg.Message = strings.TrimSpace(msg.Message)
	if err := s.validate.StructCtx(ctx, msg); err != nil {
		return classify(err)
	}

	if err := s.sender.DialAndSend(s.compose(msg)); err != nil {
		s.logger.Error("failed to send contact message", "error", err)
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.logger.Info("contact message sent", "client", client)
	return nil
}

func (s *Service) compose(msg models.ContactMessage) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Reply-To", msg.Email)
	m.SetHeader("Subject", fmt.Sprintf("%s Contact: %s", s.siteName, msg.Name))
	m.SetBody("text/plain", fmt.Sprintf("New contact form message\n\nName: %s\nEmail: %s\n\nMessage:\n%s\n", msg.Name, msg.Email, msg.Message))
	return m
}

func classify(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return ErrMissingFields
		}
	}
	return ErrInvalidEmail
}
