// utils/email.go
package utils

import (
	"fmt"
	htmlpkg "html"
	"log"
	"strings"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// sender delivers a single message through one provider.
type sender interface {
	send(from, to, subject, html, text string) error
}

type postmarkSender struct {
	client *postmark.Client
}

func (p postmarkSender) send(from, to, subject, html, text string) error {
	_, err := p.client.SendEmail(postmark.Email{
		From:     from,
		To:       to,
		Subject:  subject,
		HtmlBody: html,
		TextBody: text,
	})
	return err
}

type sendgridSender struct {
	client *sendgrid.Client
}

func (s sendgridSender) send(from, to, subject, html, text string) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", from), subject, mail.NewEmail("", to), text, html)
	resp, err := s.client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// EmailService handles sending account emails through Postmark or SendGrid
type EmailService struct {
	sender sender
	from   string
}

// NewEmailService initializes an EmailService for provider ("postmark" or
// "sendgrid"). An empty provider returns nil, which disables email.
func NewEmailService(provider, apiToken, from string) (*EmailService, error) {
	switch strings.ToLower(provider) {
	case "":
		return nil, nil
	case "postmark":
		if apiToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return &EmailService{sender: postmarkSender{client: postmark.NewClient(apiToken, "")}, from: from}, nil
	case "sendgrid":
		if apiToken == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return &EmailService{sender: sendgridSender{client: sendgrid.NewSendClient(apiToken)}, from: from}, nil
	}
	return nil, fmt.Errorf("unknown email provider %q", provider)
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent, textContent string) error {
	if err := es.sender.send(es.from, toEmail, subject, htmlContent, textContent); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	log.Printf("email: sent %q to %s", subject, toEmail)
	return nil
}

// SendWelcomeEmail greets a newly registered user
func (es *EmailService) SendWelcomeEmail(toEmail, username string) error {
	subject := "Welcome to the store"
	html := fmt.Sprintf("<strong>Hi %s,</strong><br><br>Your account has been created. Happy shopping!", htmlpkg.EscapeString(username))
	text := fmt.Sprintf("Hi %s,\n\nYour account has been created. Happy shopping!", username)
	return es.SendEmail(toEmail, subject, html, text)
}

// SendPasswordChangedEmail tells a user their password was changed
func (es *EmailService) SendPasswordChangedEmail(toEmail, username string) error {
	subject := "Your password was changed"
	html := fmt.Sprintf("<strong>Hi %s,</strong><br><br>The password on your account was just changed. If this wasn't you, contact support.", htmlpkg.EscapeString(username))
	text := fmt.Sprintf("Hi %s,\n\nThe password on your account was just changed. If this wasn't you, contact support.", username)
	return es.SendEmail(toEmail, subject, html, text)
}
