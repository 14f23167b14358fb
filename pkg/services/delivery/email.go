package delivery

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailSettings struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailChannel sends reports through SendGrid.
type EmailChannel struct {
	client   mailClient
	settings EmailSettings
}

func NewEmailChannel(settings EmailSettings) (*EmailChannel, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if settings.FromEmail == "" {
		return nil, fmt.Errorf("sender email is required")
	}
	return &EmailChannel{client: sendgrid.NewSendClient(settings.APIKey), settings: settings}, nil
}

func (c *EmailChannel) Send(ctx context.Context, to domain.Recipient, req Request) error {
	from := mail.NewEmail(c.settings.FromName, c.settings.FromEmail)
	rcpt := mail.NewEmail(to.Name, to.Address)
	text := req.Body()

	message := mail.NewSingleEmail(from, req.Subject(), rcpt, text, htmlBody(req.Title, text))
	if req.Options.AttachFile && len(req.File.Content) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(req.File.Content))
		attachment.SetType(req.File.MimeType)
		attachment.SetFilename(req.File.Name)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email via sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid api error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}

func htmlBody(title, text string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; color: #333;">`)
	b.WriteString(`<h2 style="color: #0066cc;">` + html.EscapeString(title) + `</h2>`)
	for _, p := range strings.Split(text, "\n\n") {
		b.WriteString("<p>" + strings.ReplaceAll(html.EscapeString(p), "\n", "<br>") + "</p>")
	}
	b.WriteString(`<p style="color: #666; font-size: 12px;">This is an automated email. Please do not reply.</p>`)
	b.WriteString(`</body></html>`)
	return b.String()
}
