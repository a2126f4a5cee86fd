package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/sabotage/go/internal/models"
)

// Memory is an in-process Store used for development and tests.
type Memory struct {
	mu      sync.RWMutex
	rooms   map[string]*models.Room
	players map[string]*models.Player
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:   make(map[string]*models.Room),
		players: make(map[string]*models.Player),
	}
}

func (m *Memory) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

func (m *Memory) SaveRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room.Clone()
	return nil
}

// DeleteRoom removes the room and every player that belongs to it.
func (m *Memory) DeleteRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	for id, p := range m.players {
		if p.RoomID == roomID {
			delete(m.players, id)
		}
	}
	return nil
}

func (m *Memory) UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.Timer = seconds
	return nil
}

func (m *Memory) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) SavePlayer(ctx context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[player.ID] = player.Clone()
	return nil
}

func (m *Memory) DeletePlayer(ctx context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, playerID)
	return nil
}

// ListRoomPlayers returns the room's players ordered by join time.
func (m *Memory) ListRoomPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Player
	for _, p := range m.players {
		if p.RoomID == roomID {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}
