package services

import (
	"sync"

	"pulsepath/internal/models"
	"pulsepath/pkg/logger"

	"github.com/google/uuid"
)

// Subscription is one subscriber's filtered view of the transition stream.
// Events arrive on C in commit order for any single request. The channel is
// buffered; a subscriber that falls behind loses events and is expected to
// re-fetch current state (delivery is at-least-once, not exactly-once).
type Subscription struct {
	ID     string
	Filter models.EventFilter
	C      <-chan *models.RequestEvent

	ch     chan *models.RequestEvent
	fanout *FanoutService
	once   sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.fanout.remove(s.ID)
		close(s.ch)
	})
}

// FanoutService routes committed transition events to subscribers whose
// filter predicate matches. It holds no authoritative state: subscriptions
// live exactly as long as their client connection.
type FanoutService struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	log    *logger.Logger
}

func NewFanoutService(log *logger.Logger, buffer int) *FanoutService {
	if buffer <= 0 {
		buffer = 32
	}
	return &FanoutService{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a filter and returns the subscription handle. The
// caller must Close it on disconnect.
func (f *FanoutService) Subscribe(filter models.EventFilter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: filter,
		ch:     make(chan *models.RequestEvent, f.buffer),
		fanout: f,
	}
	sub.C = sub.ch

	f.mu.Lock()
	f.subs[sub.ID] = sub
	f.mu.Unlock()
	return sub
}

func (f *FanoutService) remove(id string) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

// SubscriberCount is used by tests and the health endpoint.
func (f *FanoutService) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish delivers evt to every matching subscriber without blocking. The
// store invokes this from its commit hook, so calls arrive in commit order
// per request; per-subscriber FIFO channels preserve that order end to end.
func (f *FanoutService) Publish(evt *models.RequestEvent) {
	if evt == nil {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if !sub.Filter.Matches(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Slow subscriber: drop rather than stall the commit path.
			// The subscriber reconciles by re-fetching on its next read.
			f.log.WithSOSID(evt.RequestID).
				WithField("subscription_id", sub.ID).
				Warn("Dropping event for slow subscriber")
		}
	}
}
