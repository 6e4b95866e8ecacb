package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailClient sends one plain-text message.
type EmailClient interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SendGridClient struct {
	apiKey   string
	fromName string
	from     string
}

func NewSendGridClient(apiKey, fromName, from string) *SendGridClient {
	return &SendGridClient{apiKey: apiKey, fromName: fromName, from: from}
}

func (c *SendGridClient) Send(ctx context.Context, to, subject, body string) error {
	if c.apiKey == "" {
		return errors.New("sendgrid api key is empty")
	}
	if to == "" {
		return errors.New("to address is empty")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(c.fromName, c.from),
		subject,
		mail.NewEmail("", to),
		body,
		fmt.Sprintf("<pre>%s</pre>", body),
	)

	response, err := sendgrid.NewSendClient(c.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	log.Debug().Int("status", response.StatusCode).Str("subject", subject).Msg("sendgrid: mail sent")
	return nil
}
