package mail

import (
	"context"
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

type MailjetMailer struct {
	client *mailjet.Client
	from   string
}

func NewMailjetMailer(publicKey, privateKey, from string) *MailjetMailer {
	return &MailjetMailer{
		client: mailjet.NewMailjetClient(publicKey, privateKey),
		from:   from,
	}
}

func (m *MailjetMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: m.from},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To}},
		Subject:  msg.Subject,
		TextPart: msg.Body,
	}}

	msgs := mailjet.MessagesV31{Info: info}
	if _, err := m.client.SendMailV31(&msgs); err != nil {
		return fmt.Errorf("could not send mail: %w", err)
	}
	return nil
}
