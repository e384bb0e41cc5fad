package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier mails the decision through a plain SMTP relay. It is the
// self-hosted alternative to EmailNotifier.
type SMTPNotifier struct {
	dialer mailDialer
	from   string
}

func NewSMTPNotifier(host string, port int, username, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (n *SMTPNotifier) NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error {
	if notice.Requester.Email == "" {
		return nil
	}
	// gomail has no context support
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := decisionText(notice)
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", notice.Requester.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body+"\n\nBest regards,\nThe Fishtank Team")

	logger.ExternalServiceCall("SMTP", "DialAndSend", "requestID", notice.Resolution.Request.ID)
	err := n.dialer.DialAndSend(m)
	logger.ExternalServiceResult("SMTP", "DialAndSend", err, "requestID", notice.Resolution.Request.ID)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}
