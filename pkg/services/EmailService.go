package services

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/adampresley/adamgokit/email"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<h1>Welcome to Image Captioning!</h1>
<p>Hello {{.Name}}! Your account is ready. Sign in at
<a href="{{.SiteURL}}">{{.SiteURL}}</a>, pick an image, and we'll write
a caption for it.</p>
`))

type EmailServicer interface {
	Enabled() bool
	SendWelcome(toName, toEmail string) error
}

type EmailServiceConfig struct {
	ApiKey    string
	FromEmail string
	FromName  string
	SiteURL   string
}

// EmailService sends account mail through Resend. Without an API key it is disabled.
type EmailService struct {
	apiKey    string
	fromEmail string
	fromName  string
	siteURL   string
}

func NewEmailService(config EmailServiceConfig) EmailService {
	return EmailService{
		apiKey:    config.ApiKey,
		fromEmail: config.FromEmail,
		fromName:  config.FromName,
		siteURL:   config.SiteURL,
	}
}

func (s EmailService) Enabled() bool {
	return s.apiKey != "" && s.fromEmail != ""
}

func (s EmailService) SendWelcome(toName, toEmail string) error {
	var (
		err  error
		body string
	)

	if !s.Enabled() {
		return nil
	}

	if body, err = RenderWelcome(toName, s.siteURL); err != nil {
		return err
	}

	service := email.NewResendService(&email.Config{
		ApiKey: s.apiKey,
	})

	err = service.Send(email.Mail{
		Body:       body,
		BodyIsHtml: true,
		From: email.EmailAddress{
			Email: s.fromEmail,
			Name:  s.fromName,
		},
		Subject: "Welcome to Image Captioning",
		To: []email.EmailAddress{
			{Name: toName, Email: toEmail},
		},
	})

	if err != nil {
		return fmt.Errorf("error sending welcome email to '%s': %w", toEmail, err)
	}

	return nil
}

func RenderWelcome(name, siteURL string) (string, error) {
	var b strings.Builder

	if err := welcomeTemplate.Execute(&b, map[string]string{"Name": name, "SiteURL": siteURL}); err != nil {
		return "", fmt.Errorf("error rendering welcome email: %w", err)
	}

	return b.String(), nil
}
