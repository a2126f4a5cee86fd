// Package timer provides per-room one-second countdowns with
// pause/resume, used for the round, meeting and duel clocks.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// OnZero is invoked once a countdown reaches zero. The countdown has
// already been removed when it runs, so it may start a new one.
type OnZero func(roomID string)

// Notifier receives every tick.
type Notifier interface {
	BroadcastToRoom(roomID string, event *events.Event)
}

// Recorder persists the remaining seconds. Failures are logged only.
type Recorder interface {
	UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error
}

// Config describes one kind of countdown.
type Config struct {
	Name         string
	EventType    events.EventType
	DefaultTicks int
	Interval     time.Duration
}

type countdown struct {
	remaining int
	onZero    OnZero
	ticker    clockwork.Ticker
	done      chan struct{}
}

type snapshot struct {
	remaining int
	onZero    OnZero
}

// Controller owns at most one running countdown per room.
type Controller struct {
	cfg      Config
	clock    clockwork.Clock
	notifier Notifier
	recorder Recorder
	fallback OnZero

	mu      sync.Mutex
	running map[string]*countdown
	paused  map[string]snapshot
}

// NewController creates a controller. recorder may be nil.
func NewController(cfg Config, clock clockwork.Clock, notifier Notifier, recorder Recorder) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		cfg:      cfg,
		clock:    clock,
		notifier: notifier,
		recorder: recorder,
		running:  make(map[string]*countdown),
		paused:   make(map[string]snapshot),
	}
}

// SetDefaultCallback sets the callback used by Resume when no snapshot exists.
func (c *Controller) SetDefaultCallback(fn OnZero) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = fn
}

// Start begins a countdown of ticks for roomID, replacing any running or
// paused one. The initial value is broadcast immediately.
func (c *Controller) Start(roomID string, ticks int, onZero OnZero) {
	if ticks <= 0 {
		ticks = c.cfg.DefaultTicks
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked(roomID)
	delete(c.paused, roomID)
	c.launchLocked(roomID, ticks, onZero)

	log.Debug().
		Str("room_id", roomID).
		Str("timer", c.cfg.Name).
		Int("ticks", ticks).
		Msg("countdown started")
}

// Pause snapshots the remaining ticks and callback and cancels the
// countdown. It is a no-op when nothing runs.
func (c *Controller) Pause(roomID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cd, ok := c.running[roomID]
	if !ok {
		return 0, false
	}
	c.paused[roomID] = snapshot{remaining: cd.remaining, onZero: cd.onZero}
	c.cancelLocked(roomID)

	log.Debug().
		Str("room_id", roomID).
		Str("timer", c.cfg.Name).
		Int("remaining", cd.remaining).
		Msg("countdown paused")
	return cd.remaining, true
}

// Resume restarts from the paused snapshot, or from the default duration
// with the default callback when there is none. A running countdown is
// left alone.
func (c *Controller) Resume(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.running[roomID]; ok {
		return
	}

	snap, ok := c.paused[roomID]
	delete(c.paused, roomID)
	if !ok || snap.remaining <= 0 {
		snap = snapshot{remaining: c.cfg.DefaultTicks, onZero: c.fallback}
	}
	c.launchLocked(roomID, snap.remaining, snap.onZero)

	log.Debug().
		Str("room_id", roomID).
		Str("timer", c.cfg.Name).
		Int("remaining", snap.remaining).
		Msg("countdown resumed")
}

// Stop cancels and forgets any countdown for roomID.
func (c *Controller) Stop(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(roomID)
	delete(c.paused, roomID)
}

// StopAll cancels every countdown.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for roomID := range c.running {
		c.cancelLocked(roomID)
	}
	c.paused = make(map[string]snapshot)
}

// Remaining returns the running or paused value for roomID.
func (c *Controller) Remaining(roomID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cd, ok := c.running[roomID]; ok {
		return cd.remaining, true
	}
	if snap, ok := c.paused[roomID]; ok {
		return snap.remaining, true
	}
	return 0, false
}

// Running reports whether a countdown is ticking for roomID.
func (c *Controller) Running(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[roomID]
	return ok
}

func (c *Controller) launchLocked(roomID string, ticks int, onZero OnZero) {
	cd := &countdown{
		remaining: ticks,
		onZero:    onZero,
		ticker:    c.clock.NewTicker(c.cfg.Interval),
		done:      make(chan struct{}),
	}
	c.running[roomID] = cd
	c.publishLocked(roomID, ticks)
	go c.run(roomID, cd)
}

// cancelLocked stops the ticker synchronously so no stale tick can fire.
func (c *Controller) cancelLocked(roomID string) {
	cd, ok := c.running[roomID]
	if !ok {
		return
	}
	cd.ticker.Stop()
	close(cd.done)
	delete(c.running, roomID)
}

func (c *Controller) publishLocked(roomID string, remaining int) {
	if c.recorder != nil {
		if err := c.recorder.UpdateRoomTimer(context.Background(), roomID, remaining); err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("timer", c.cfg.Name).Msg("failed to persist timer value")
		}
	}
	if c.notifier != nil {
		c.notifier.BroadcastToRoom(roomID, events.New(c.cfg.EventType, roomID, events.TimerPayload{TimeRemaining: remaining}))
	}
}

func (c *Controller) run(roomID string, cd *countdown) {
	for {
		select {
		case <-cd.done:
			return
		case <-cd.ticker.Chan():
			c.mu.Lock()
			if c.running[roomID] != cd {
				c.mu.Unlock()
				return
			}
			cd.remaining--
			if cd.remaining < 0 {
				cd.remaining = 0
			}
			c.publishLocked(roomID, cd.remaining)

			if cd.remaining > 0 {
				c.mu.Unlock()
				continue
			}

			// Self-cancel before the callback so it can start a fresh countdown.
			c.cancelLocked(roomID)
			onZero := cd.onZero
			c.mu.Unlock()

			log.Debug().Str("room_id", roomID).Str("timer", c.cfg.Name).Msg("countdown reached zero")
			if onZero != nil {
				onZero(roomID)
			}
			return
		}
	}
}
