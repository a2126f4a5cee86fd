package stream

import (
	"context"
	"time"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// Publisher writes an event to the durable stream.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Mirror wraps a Broadcaster and copies room-wide events to a Publisher.
// Timer ticks and private events are not mirrored. Publishing happens on
// Run's goroutine so a slow broker never stalls the game.
type Mirror struct {
	next      events.Broadcaster
	publisher Publisher
	queue     chan *events.Event
	timeout   time.Duration
}

// NewMirror creates a mirror with a queue of the given size.
func NewMirror(next events.Broadcaster, publisher Publisher, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Mirror{
		next:      next,
		publisher: publisher,
		queue:     make(chan *events.Event, buffer),
		timeout:   5 * time.Second,
	}
}

// BroadcastToRoom delivers the event and queues it for the stream.
func (m *Mirror) BroadcastToRoom(roomID string, event *events.Event) {
	m.next.BroadcastToRoom(roomID, event)

	if event.Type.IsTick() {
		return
	}
	select {
	case m.queue <- event:
	default:
		log.Warn().
			Str("room_id", roomID).
			Str("event_type", string(event.Type)).
			Msg("stream queue full, event not mirrored")
	}
}

// SendToPlayer delivers a private event. Private events stay off the stream.
func (m *Mirror) SendToPlayer(roomID, playerID string, event *events.Event) {
	m.next.SendToPlayer(roomID, playerID, event)
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// already queued.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.drain()
			return
		case event := <-m.queue:
			m.publish(context.Background(), event)
		}
	}
}

func (m *Mirror) drain() {
	for {
		select {
		case event := <-m.queue:
			m.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (m *Mirror) publish(parent context.Context, event *events.Event) {
	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()

	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("room_id", event.RoomID).
			Str("event_type", string(event.Type)).
			Msg("failed to mirror event")
	}
}
