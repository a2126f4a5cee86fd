package sabotage

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SweepFunc removes expired entries for a room and returns how many
// entries remain. The sweep for a room ends when it returns 0.
type SweepFunc func(roomID string, now time.Time) int

// Sweeper runs at most one periodic expiry check per room, and only while
// that room has entries.
type Sweeper struct {
	clock    clockwork.Clock
	interval time.Duration
	sweep    SweepFunc

	mu     sync.Mutex
	active map[string]*roomSweep
}

type roomSweep struct {
	ticker clockwork.Ticker
	done   chan struct{}
	// pending is set by Ensure while a sweep is running so a sweep that
	// just saw zero entries does not exit under a freshly added one.
	pending bool
}

// NewSweeper creates a sweeper ticking every interval.
func NewSweeper(clock clockwork.Clock, interval time.Duration, fn SweepFunc) *Sweeper {
	return &Sweeper{
		clock:    clock,
		interval: interval,
		sweep:    fn,
		active:   make(map[string]*roomSweep),
	}
}

// Ensure starts the sweep for roomID unless one is already running.
func (s *Sweeper) Ensure(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rs, ok := s.active[roomID]; ok {
		rs.pending = true
		return
	}

	rs := &roomSweep{
		ticker: s.clock.NewTicker(s.interval),
		done:   make(chan struct{}),
	}
	s.active[roomID] = rs
	go s.run(roomID, rs)

	log.Debug().Str("room_id", roomID).Dur("interval", s.interval).Msg("sabotage sweep started")
}

// Stop ends the sweep for roomID, if any.
func (s *Sweeper) Stop(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(roomID)
}

// StopAll ends every running sweep.
func (s *Sweeper) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID := range s.active {
		s.stopLocked(roomID)
	}
}

// Running reports whether roomID currently has a sweep.
func (s *Sweeper) Running(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[roomID]
	return ok
}

func (s *Sweeper) stopLocked(roomID string) {
	rs, ok := s.active[roomID]
	if !ok {
		return
	}
	rs.ticker.Stop()
	close(rs.done)
	delete(s.active, roomID)
	log.Debug().Str("room_id", roomID).Msg("sabotage sweep stopped")
}

func (s *Sweeper) run(roomID string, rs *roomSweep) {
	for {
		select {
		case <-rs.done:
			return
		case now := <-rs.ticker.Chan():
			s.mu.Lock()
			if s.active[roomID] != rs {
				s.mu.Unlock()
				return
			}
			rs.pending = false
			s.mu.Unlock()

			// The callback takes the room lock, so it must run without ours.
			if remaining := s.sweep(roomID, now); remaining > 0 {
				continue
			}

			s.mu.Lock()
			if s.active[roomID] != rs {
				s.mu.Unlock()
				return
			}
			if rs.pending {
				rs.pending = false
				s.mu.Unlock()
				continue
			}
			s.stopLocked(roomID)
			s.mu.Unlock()
			log.Debug().Str("room_id", roomID).Msg("no sabotaged stations left, sweep finished")
			return
		}
	}
}
