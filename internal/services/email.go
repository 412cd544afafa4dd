package services

import (
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/metrics"
	"github.com/pinify/pinify-backend/pkg/logger"
)

// Notifier sends the transactional e-mails. Delivery is best effort.
type Notifier interface {
	SendWelcomeEmail(to, username string) error
	SendFriendRequestEmail(to, receiver, sender string) error
}

type EmailService struct {
	config *config.Config
}

// NewEmailService returns nil when no SMTP host is configured.
func NewEmailService(config *config.Config) *EmailService {
	if config.SMTPHost == "" {
		return nil
	}
	return &EmailService{config: config}
}

func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	d.TLSConfig = &tls.Config{ServerName: s.config.SMTPHost}

	return d.DialAndSend(m)
}

func (s *EmailService) SendWelcomeEmail(to, username string) error {
	subject := "Welcome to Pinify"
	body := fmt.Sprintf(`
		<h2>Welcome, %s!</h2>
		<p>Your account is ready. Start pinning the places you love and see where your friends go.</p>
		<p><a href="%s">Open Pinify</a></p>
	`, username, s.config.BaseURL)

	return s.SendEmail(to, subject, body)
}

func (s *EmailService) SendFriendRequestEmail(to, receiver, sender string) error {
	subject := fmt.Sprintf("%s wants to be your friend on Pinify", sender)
	body := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p><strong>%s</strong> sent you a friend request.</p>
		<p><a href="%s/friends">Review your requests</a></p>
	`, receiver, sender, s.config.BaseURL)

	return s.SendEmail(to, subject, body)
}

// notify runs send in the background and only logs failures.
func notify(kind, to string, send func() error) {
	go func() {
		if err := send(); err != nil {
			metrics.NotificationFailures.Inc()
			logger.WithFields(logger.Fields{"kind": kind, "to": to}).WithError(err).Warn("failed to send notification")
		}
	}()
}
