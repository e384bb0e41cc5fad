package postgres

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"fishtank-backend/internal/logger"
)

// notificationSource is the part of *pq.Listener the hub relies on.
type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

type listenerFactory func() (notificationSource, error)

func newPQListenerFactory(connStr string) listenerFactory {
	if connStr == "" {
		return nil
	}
	return func() (notificationSource, error) {
		l := pq.NewListener(connStr, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
				logger.Warn("Change listener connection problem", "event", ev, "error", err)
			case pq.ListenerEventReconnected:
				logger.Info("Change listener reconnected")
			}
		})
		if err := l.Listen(changeChannel); err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("listen on %s: %w", changeChannel, err)
		}
		return l, nil
	}
}

type subscription struct {
	fishtankID string
	dirty      chan struct{}
	dead       chan error
}

// changeHub shares one LISTEN connection between all live queries and
// wakes the subscriptions of the fishtank named in each notification.
type changeHub struct {
	listen listenerFactory

	mu     sync.Mutex
	source notificationSource
	subs   map[string]map[*subscription]struct{}
	closed bool
}

func newChangeHub(listen listenerFactory) *changeHub {
	return &changeHub{
		listen: listen,
		subs:   make(map[string]map[*subscription]struct{}),
	}
}

func (h *changeHub) subscribe(fishtankID string) (*subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errors.New("change hub closed")
	}
	if h.source == nil {
		if h.listen == nil {
			return nil, errors.New("live queries are not configured for this store")
		}
		src, err := h.listen()
		if err != nil {
			return nil, err
		}
		h.source = src
		go h.run(src)
	}

	sub := &subscription{
		fishtankID: fishtankID,
		dirty:      make(chan struct{}, 1),
		dead:       make(chan error, 1),
	}
	sub.dirty <- struct{}{} // initial emission
	if h.subs[fishtankID] == nil {
		h.subs[fishtankID] = make(map[*subscription]struct{})
	}
	h.subs[fishtankID][sub] = struct{}{}
	return sub, nil
}

func (h *changeHub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sub.fishtankID], sub)
	if len(h.subs[sub.fishtankID]) == 0 {
		delete(h.subs, sub.fishtankID)
	}
}

func (h *changeHub) run(src notificationSource) {
	for n := range src.NotificationChannel() {
		h.mu.Lock()
		if n == nil {
			// reconnected: notifications may have been missed, refresh everyone
			for _, set := range h.subs {
				wake(set)
			}
		} else {
			wake(h.subs[n.Extra])
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.source == src {
		h.source = nil
	}
	for id, set := range h.subs {
		for sub := range set {
			sub.dead <- errors.New("change listener closed")
		}
		delete(h.subs, id)
	}
}

func wake(set map[*subscription]struct{}) {
	for sub := range set {
		select {
		case sub.dirty <- struct{}{}:
		default:
		}
	}
}

func (h *changeHub) Close() error {
	h.mu.Lock()
	src := h.source
	h.closed = true
	h.mu.Unlock()
	if src != nil {
		return src.Close()
	}
	return nil
}
