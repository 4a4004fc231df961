package services

import (
	"context"
	"encoding/json"

	"pulsepath/internal/models"
	"pulsepath/internal/utils"
	"pulsepath/pkg/cache"
	"pulsepath/pkg/logger"

	"github.com/google/uuid"
)

// bridgeEnvelope wraps an event with its origin so an instance never
// re-fans-out its own publications.
type bridgeEnvelope struct {
	Origin string               `json:"origin"`
	Event  *models.RequestEvent `json:"event"`
}

// EventBridge mirrors locally committed transition events onto a Redis
// channel and feeds remote instances' events into the local fanout, so
// subscribers see the whole cluster's transitions regardless of which
// instance committed them.
type EventBridge struct {
	cache      *cache.RedisCache
	fanout     *FanoutService
	instanceID string
	log        *logger.Logger
}

func NewEventBridge(redisCache *cache.RedisCache, fanout *FanoutService, log *logger.Logger) *EventBridge {
	return &EventBridge{
		cache:      redisCache,
		fanout:     fanout,
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// Forward publishes a locally committed event to the cluster. Best effort:
// a Redis failure only degrades cross-instance delivery, local subscribers
// already got the event.
func (b *EventBridge) Forward(ctx context.Context, evt *models.RequestEvent) {
	envelope := bridgeEnvelope{Origin: b.instanceID, Event: evt}
	if err := b.cache.Publish(ctx, utils.EventChannel, envelope); err != nil {
		b.log.WithError(err).WithSOSID(evt.RequestID).Warn("Failed to forward event to Redis")
	}
}

// Run consumes remote events until ctx is cancelled.
func (b *EventBridge) Run(ctx context.Context) {
	pubsub := b.cache.Subscribe(ctx, utils.EventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.log.WithError(err).Warn("Failed to decode bridged event")
				continue
			}
			if envelope.Origin == b.instanceID || envelope.Event == nil {
				continue
			}
			b.fanout.Publish(envelope.Event)
		}
	}
}
