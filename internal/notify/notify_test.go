package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"fishtank-backend/internal/domain"
)

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type MockContactInvalidator struct {
	mock.Mock
}

func (m *MockContactInvalidator) Invalidate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}

func acceptedNotice() *domain.DecisionNotice {
	return &domain.DecisionNotice{
		Resolution: domain.Resolution{
			Request:  domain.JoinRequest{ID: "req-1", FishtankID: "tank-1", Status: domain.JoinRequestStatusAccepted},
			Decision: domain.DecisionAccept,
		},
		Fishtank:  domain.FishtankSummary{ID: "tank-1", Name: "Reef <3"},
		Requester: domain.Contact{UserID: "user-1", Email: "nemo@reef.test", PushToken: "tok-1"},
	}
}

func TestPushNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends", func(t *testing.T) {
		sender := new(MockMessageSender)
		n := &PushNotifier{client: sender}
		sender.On("Send", ctx, mock.MatchedBy(func(m *messaging.Message) bool {
			return m.Token == "tok-1" &&
				m.Notification.Title == "Welcome to Reef <3" &&
				m.Data["request_id"] == "req-1" &&
				m.Data["status"] == "accepted"
		})).Return("msg-1", nil).Once()

		require.NoError(t, n.NotifyDecision(ctx, acceptedNotice()))
		sender.AssertExpectations(t)
	})

	t.Run("NoToken", func(t *testing.T) {
		sender := new(MockMessageSender)
		n := &PushNotifier{client: sender}
		notice := acceptedNotice()
		notice.Requester.PushToken = ""
		require.NoError(t, n.NotifyDecision(ctx, notice))
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Error", func(t *testing.T) {
		sender := new(MockMessageSender)
		inv := new(MockContactInvalidator)
		n := (&PushNotifier{client: sender}).WithInvalidator(inv)
		sender.On("Send", ctx, mock.Anything).Return("", errors.New("quota exceeded")).Once()
		assert.Error(t, n.NotifyDecision(ctx, acceptedNotice()))
		inv.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("UnregisteredTokenDropsCachedContact", func(t *testing.T) {
		gone := errors.New("requested entity was not found")
		sender := new(MockMessageSender)
		inv := new(MockContactInvalidator)
		n := (&PushNotifier{client: sender, unregistered: func(err error) bool { return errors.Is(err, gone) }}).WithInvalidator(inv)
		sender.On("Send", ctx, mock.Anything).Return("", gone).Once()
		inv.On("Invalidate", ctx, "user-1").Return(nil).Once()

		require.NoError(t, n.NotifyDecision(ctx, acceptedNotice()))
		inv.AssertExpectations(t)
	})

	t.Run("InvalidationFailureIsNotAnError", func(t *testing.T) {
		gone := errors.New("requested entity was not found")
		sender := new(MockMessageSender)
		inv := new(MockContactInvalidator)
		n := (&PushNotifier{client: sender, unregistered: func(err error) bool { return errors.Is(err, gone) }}).WithInvalidator(inv)
		sender.On("Send", ctx, mock.Anything).Return("", gone).Once()
		inv.On("Invalidate", ctx, "user-1").Return(errors.New("redis down")).Once()

		require.NoError(t, n.NotifyDecision(ctx, acceptedNotice()))
		inv.AssertExpectations(t)
	})
}

func TestEmailNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends", func(t *testing.T) {
		sender := new(MockMailSender)
		n := &EmailNotifier{client: sender, fromEmail: "noreply@fishtank.test", fromName: "Fishtank"}
		sender.On("SendWithContext", ctx, mock.MatchedBy(func(m *mail.SGMailV3) bool {
			if m.Subject != "Welcome to Reef <3" || m.From.Address != "noreply@fishtank.test" {
				return false
			}
			if len(m.Personalizations) != 1 || m.Personalizations[0].To[0].Address != "nemo@reef.test" {
				return false
			}
			for _, c := range m.Content {
				if c.Type == "text/html" && !strings.Contains(c.Value, "Reef &lt;3") {
					return false
				}
			}
			return true
		})).Return(&rest.Response{StatusCode: 202}, nil).Once()

		require.NoError(t, n.NotifyDecision(ctx, acceptedNotice()))
		sender.AssertExpectations(t)
	})

	t.Run("RejectedByProvider", func(t *testing.T) {
		sender := new(MockMailSender)
		n := &EmailNotifier{client: sender}
		sender.On("SendWithContext", ctx, mock.Anything).Return(&rest.Response{StatusCode: 401, Body: "bad key"}, nil).Once()
		err := n.NotifyDecision(ctx, acceptedNotice())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("RejectWording", func(t *testing.T) {
		notice := acceptedNotice()
		notice.Resolution.Decision = domain.DecisionReject
		subject, body := decisionText(notice)
		assert.Equal(t, "Your request to join Reef <3", subject)
		assert.Contains(t, body, "declined")
	})
}

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) DialAndSend(msgs ...*gomail.Message) error {
	args := m.Called(msgs)
	return args.Error(0)
}

func TestSMTPNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends", func(t *testing.T) {
		dialer := new(MockDialer)
		n := &SMTPNotifier{dialer: dialer, from: "noreply@fishtank.test"}
		dialer.On("DialAndSend", mock.MatchedBy(func(msgs []*gomail.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			m := msgs[0]
			return m.GetHeader("To")[0] == "nemo@reef.test" &&
				m.GetHeader("From")[0] == "noreply@fishtank.test" &&
				m.GetHeader("Subject")[0] == "Welcome to Reef <3"
		})).Return(nil).Once()

		require.NoError(t, n.NotifyDecision(ctx, acceptedNotice()))
		dialer.AssertExpectations(t)
	})

	t.Run("NoEmail", func(t *testing.T) {
		dialer := new(MockDialer)
		n := &SMTPNotifier{dialer: dialer}
		notice := acceptedNotice()
		notice.Requester.Email = ""
		require.NoError(t, n.NotifyDecision(ctx, notice))
		dialer.AssertNotCalled(t, "DialAndSend", mock.Anything)
	})

	t.Run("RelayDown", func(t *testing.T) {
		dialer := new(MockDialer)
		n := &SMTPNotifier{dialer: dialer}
		dialer.On("DialAndSend", mock.Anything).Return(errors.New("connection refused")).Once()
		assert.ErrorContains(t, n.NotifyDecision(ctx, acceptedNotice()), "connection refused")
	})

	t.Run("CanceledContext", func(t *testing.T) {
		dialer := new(MockDialer)
		n := &SMTPNotifier{dialer: dialer}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, n.NotifyDecision(cctx, acceptedNotice()), context.Canceled)
		dialer.AssertNotCalled(t, "DialAndSend", mock.Anything)
	})
}
