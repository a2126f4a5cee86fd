package orchestrator

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/mcdev12/sabotage/go/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	persistQueueSize = 256
	persistTimeout   = 3 * time.Second
)

var errPersistQueueFull = errors.New("persist queue full")

type persistOp struct {
	roomID string
	name   string
	run    func(ctx context.Context) error
}

// Persister mirrors live state into the store from a pool of workers.
// Writes for one room always land on the same worker so they apply in
// order. Failures are logged and swallowed.
type Persister struct {
	store  store.Store
	shards []chan persistOp

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewPersister creates a persister with numWorkers shards.
func NewPersister(st store.Store, numWorkers int) *Persister {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	shards := make([]chan persistOp, numWorkers)
	for i := range shards {
		shards[i] = make(chan persistOp, persistQueueSize)
	}
	return &Persister{store: st, shards: shards}
}

// Start launches the worker pool. Workers drain their queue and exit
// once ctx is cancelled.
func (p *Persister) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i, ch := range p.shards {
		p.wg.Add(1)
		go p.worker(ctx, i, ch)
	}
	log.Info().Int("workers", len(p.shards)).Msg("persistence workers started")
}

// Wait blocks until every worker has exited.
func (p *Persister) Wait() {
	p.wg.Wait()
}

func (p *Persister) worker(ctx context.Context, workerID int, ch chan persistOp) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			p.drain(workerID, ch)
			log.Debug().Int("worker_id", workerID).Msg("persistence worker shutting down")
			return
		case op := <-ch:
			p.apply(context.Background(), workerID, op)
		}
	}
}

// drain applies whatever is already queued so the last state reaches the
// store on shutdown.
func (p *Persister) drain(workerID int, ch chan persistOp) {
	for {
		select {
		case op := <-ch:
			p.apply(context.Background(), workerID, op)
		default:
			return
		}
	}
}

func (p *Persister) apply(parent context.Context, workerID int, op persistOp) {
	ctx, cancel := context.WithTimeout(parent, persistTimeout)
	defer cancel()

	if err := op.run(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn().
			Err(err).
			Str("room_id", op.roomID).
			Str("op", op.name).
			Int("worker_id", workerID).
			Msg("failed to persist state")
	}
}

func (p *Persister) enqueue(roomID, name string, run func(ctx context.Context) error) error {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	ch := p.shards[h.Sum32()%uint32(len(p.shards))]

	select {
	case ch <- persistOp{roomID: roomID, name: name, run: run}:
		return nil
	default:
		log.Warn().Str("room_id", roomID).Str("op", name).Msg("persist queue full, dropping write")
		return errPersistQueueFull
	}
}

// SaveRoom queues a room snapshot.
func (p *Persister) SaveRoom(room *models.Room) {
	snap := room.Clone()
	_ = p.enqueue(snap.ID, "save_room", func(ctx context.Context) error {
		return p.store.SaveRoom(ctx, snap)
	})
}

// DeleteRoom queues removal of a room and its players.
func (p *Persister) DeleteRoom(roomID string) {
	_ = p.enqueue(roomID, "delete_room", func(ctx context.Context) error {
		return p.store.DeleteRoom(ctx, roomID)
	})
}

// SavePlayer queues a player snapshot.
func (p *Persister) SavePlayer(player *models.Player) {
	snap := player.Clone()
	_ = p.enqueue(snap.RoomID, "save_player", func(ctx context.Context) error {
		return p.store.SavePlayer(ctx, snap)
	})
}

// DeletePlayer queues removal of a player record.
func (p *Persister) DeletePlayer(roomID, playerID string) {
	_ = p.enqueue(roomID, "delete_player", func(ctx context.Context) error {
		return p.store.DeletePlayer(ctx, playerID)
	})
}

// UpdateRoomTimer queues a timer write. It satisfies timer.Recorder.
func (p *Persister) UpdateRoomTimer(_ context.Context, roomID string, seconds int) error {
	return p.enqueue(roomID, "update_timer", func(ctx context.Context) error {
		return p.store.UpdateRoomTimer(ctx, roomID, seconds)
	})
}
