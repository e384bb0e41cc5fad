package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishtank-backend/internal/domain"
)

func testNotice() *domain.DecisionNotice {
	return &domain.DecisionNotice{
		Resolution: domain.Resolution{
			Request: domain.JoinRequest{
				ID: "req-1", FishtankID: "tank-1", RequesterID: "user-1",
				ResolvedBy: "owner-1", Status: domain.JoinRequestStatusAccepted,
			},
			Decision:   domain.DecisionAccept,
			ResolvedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Fishtank: domain.FishtankSummary{ID: "tank-1", MemberCount: 4},
	}
}

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, cfg)
}

func TestPublisher_NotifyDecision(t *testing.T) {
	producer := newMockProducer(t)
	p := NewPublisherWithProducer(producer, "fishtank.join-requests")
	defer p.Close()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev DecisionEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Type != EventJoinRequestResolved || ev.RequestID != "req-1" || ev.Status != domain.JoinRequestStatusAccepted {
			return errors.New("unexpected event")
		}
		if ev.MemberCount != 4 || ev.ResolvedBy != "owner-1" {
			return errors.New("unexpected event details")
		}
		return nil
	})

	require.NoError(t, p.NotifyDecision(context.Background(), testNotice()))
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := newMockProducer(t)
	p := NewPublisherWithProducer(producer, "fishtank.join-requests")
	defer p.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	err := p.NotifyDecision(context.Background(), testNotice())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestPublisher_CancelledContext(t *testing.T) {
	producer := newMockProducer(t)
	p := NewPublisherWithProducer(producer, "fishtank.join-requests")
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.NotifyDecision(ctx, testNotice()), context.Canceled)
}
