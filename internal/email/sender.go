// Package email delivers the daily renewal digest over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"crm_renewal_backend/platform/config"
	"crm_renewal_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// DigestItem is one at-risk account line in the daily digest.
type DigestItem struct {
	AccountID        string
	AccountName      string
	EstimateNumber   string
	RenewalDate      string // YYYY-MM-DD
	DaysUntilRenewal int    // negative = overdue
	HasDuplicates    bool
}

// Sender delivers renewal digest emails.
type Sender interface {
	SendRenewalDigest(ctx context.Context, toEmail string, items []DigestItem) error
}

// NewSender returns the configured sender, or a no-op one when email
// delivery is disabled.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if !cfg.GetEmailEnabled() {
		return &NoopSender{log: log}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
		cfg.GetAppBaseURL(),
	)
}

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host       string
	port       int
	username   string
	password   string
	fromName   string
	fromEmail  string
	appBaseURL string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName, appBaseURL string) *SMTPSender {
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		fromName:   fromName,
		fromEmail:  fromEmail,
		appBaseURL: appBaseURL,
	}
}

func (s *SMTPSender) SendRenewalDigest(ctx context.Context, toEmail string, items []DigestItem) error {
	content, err := renderEmailTemplate("renewal_digest.html", renewalDigestEmailData{
		baseEmailData: baseEmailData{
			Title:    "Contract renewals due",
			Heading:  fmt.Sprintf("%d account(s) have contracts up for renewal", len(items)),
			CTALabel: "Open renewals",
			CTAURL:   s.appBaseURL + "/renewals",
		},
		Items: digestRows(items),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Daily renewal digest", content)
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// NoopSender logs digests instead of sending them. Used when EMAIL_ENABLED
// is false, notably in development and tests.
type NoopSender struct {
	log *logger.Logger
}

func (s *NoopSender) SendRenewalDigest(_ context.Context, toEmail string, items []DigestItem) error {
	if s.log != nil {
		s.log.Info("email disabled, skipping renewal digest", "to", toEmail, "items", len(items))
	}
	return nil
}
