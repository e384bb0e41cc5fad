package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailNotifier mails the decision to the requester through SendGrid.
type EmailNotifier struct {
	client    mailSender
	fromEmail string
	fromName  string
}

func NewEmailNotifier(apiKey, fromEmail, fromName string) *EmailNotifier {
	return &EmailNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (n *EmailNotifier) NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error {
	if notice.Requester.Email == "" {
		return nil
	}
	subject, body := decisionText(notice)
	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", notice.Requester.Email)
	message := mail.NewSingleEmail(from, subject, to, body, fmt.Sprintf("<p>%s</p>", html.EscapeString(body)))

	logger.ExternalServiceCall("SendGrid", "Send", "requestID", notice.Resolution.Request.ID)
	response, err := n.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("SendGrid", "Send", err, "requestID", notice.Resolution.Request.ID)
	if err != nil {
		return fmt.Errorf("failed to send decision email: %w", err)
	}
	return nil
}
