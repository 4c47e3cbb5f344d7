package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/amirphl/viewiq/config"
	"github.com/resend/resend-go/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// NotificationService sends the transactional emails of the product
type NotificationService interface {
	SendWelcome(ctx context.Context, email, name string) error
	SendLoginCode(ctx context.Context, email, code string, ttl time.Duration) error
	SendSegmentExportReady(ctx context.Context, email, title, link string) error
	SendTargetingReportReady(ctx context.Context, emails []string, opportunity, dateRange, link string) error
	// SendPaymentNotification emails the customer and copies the billing notification address
	SendPaymentNotification(ctx context.Context, email, eventType, message string) error
}

// EmailProvider delivers one rendered email
type EmailProvider interface {
	SendEmail(ctx context.Context, to []string, subject, html, text string) error
}

// NotificationServiceImpl renders markdown templates and hands them to an EmailProvider
type NotificationServiceImpl struct {
	provider          EmailProvider
	md                goldmark.Markdown
	appName           string
	appURL            string
	paymentNotifyAddr string
}

// NewNotificationService creates a new notification service
func NewNotificationService(provider EmailProvider, cfg config.EmailConfig) NotificationService {
	return &NotificationServiceImpl{
		provider: provider,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
		appName:           cfg.AppName,
		appURL:            cfg.AppURL,
		paymentNotifyAddr: cfg.PaymentNotificationEmail,
	}
}

func (s *NotificationServiceImpl) send(ctx context.Context, to []string, subject, markdown string) error {
	valid := make([]string, 0, len(to))
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			slog.Warn("skipping invalid email address", "address", addr, "subject", subject)
			continue
		}
		valid = append(valid, addr)
	}
	if len(valid) == 0 {
		return fmt.Errorf("no valid recipients for %q", subject)
	}

	var html bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("failed to render email %q: %w", subject, err)
	}
	return s.provider.SendEmail(ctx, valid, subject, html.String(), markdown)
}

func (s *NotificationServiceImpl) SendWelcome(ctx context.Context, email, name string) error {
	subject := fmt.Sprintf("Welcome to %s", s.appName)
	body := fmt.Sprintf("Hi %s,\n\nYour %s account is ready. Sign in at [%s](%s).\n", name, s.appName, s.appURL, s.appURL)
	return s.send(ctx, []string{email}, subject, body)
}

func (s *NotificationServiceImpl) SendLoginCode(ctx context.Context, email, code string, ttl time.Duration) error {
	subject := fmt.Sprintf("%s > Your sign-in code", s.appName)
	display := code
	if len(code) == 6 {
		display = code[:3] + "-" + code[3:]
	}
	body := fmt.Sprintf("Your sign-in code is **%s**.\n\nIt expires in %d minutes. If you did not try to sign in, change your password.\n",
		display, int(ttl.Minutes()))
	return s.send(ctx, []string{email}, subject, body)
}

func (s *NotificationServiceImpl) SendSegmentExportReady(ctx context.Context, email, title, link string) error {
	subject := fmt.Sprintf("%s > Custom target list: %s", s.appName, title)
	body := fmt.Sprintf("Your custom target list **%s** is ready.\n\n[Download](%s)\n\nThe link expires shortly; request the export again for a new one.\n", title, link)
	return s.send(ctx, []string{email}, subject, body)
}

func (s *NotificationServiceImpl) SendTargetingReportReady(ctx context.Context, emails []string, opportunity, dateRange, link string) error {
	subject := fmt.Sprintf("%s > Opportunity targeting report: %s", s.appName, opportunity)
	body := fmt.Sprintf("The targeting report for **%s** (%s) is ready.\n\n[Download](%s)\n", opportunity, dateRange, link)
	return s.send(ctx, emails, subject, body)
}

func (s *NotificationServiceImpl) SendPaymentNotification(ctx context.Context, email, eventType, message string) error {
	subject := fmt.Sprintf("%s > Payment notifications", s.appName)
	body := fmt.Sprintf("%s\n\nPlease do not respond to this email.\n", message)
	if err := s.send(ctx, []string{email}, subject, body); err != nil {
		return err
	}
	if s.paymentNotifyAddr == "" {
		return nil
	}
	adminBody := fmt.Sprintf("Dear Admin,\n\n- Event: `%s`\n- Customer: %s\n- Message: %s\n", eventType, email, message)
	return s.send(ctx, []string{s.paymentNotifyAddr}, "Payment actions", adminBody)
}

// ResendEmailProvider sends through the Resend API
type ResendEmailProvider struct {
	client *resend.Client
	from   string
}

// NewEmailProvider returns a Resend provider, or a logging provider in dev mode or without an API key
func NewEmailProvider(cfg config.EmailConfig) EmailProvider {
	if cfg.DevMode || cfg.ResendAPIKey == "" {
		return &LogEmailProvider{}
	}
	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}
	return &ResendEmailProvider{client: resend.NewClient(cfg.ResendAPIKey), from: from}
}

func (p *ResendEmailProvider) SendEmail(ctx context.Context, to []string, subject, html, text string) error {
	params := &resend.SendEmailRequest{
		From:    p.from,
		To:      to,
		Subject: subject,
		Html:    html,
		Text:    text,
	}
	sent, err := p.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email %q: %w", subject, err)
	}
	slog.Info("email sent", "id", sent.Id, "to", strings.Join(to, ","), "subject", subject)
	return nil
}

// LogEmailProvider only logs; used in development
type LogEmailProvider struct{}

func (p *LogEmailProvider) SendEmail(_ context.Context, to []string, subject, _, text string) error {
	slog.Info("email sent (dev mode)", "to", strings.Join(to, ","), "subject", subject, "body", text)
	return nil
}
