// Package store persists room and player records for a live game.
//
// Every backend is best-effort from the game's point of view: the orchestrator
// keeps the authoritative state in memory and only mirrors it here.
package store

import (
	"context"
	"errors"

	"github.com/mcdev12/sabotage/go/internal/models"
)

// ErrNotFound is returned when a room or player record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the keyed room/player record store.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, roomID string) error
	UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error

	GetPlayer(ctx context.Context, playerID string) (*models.Player, error)
	SavePlayer(ctx context.Context, player *models.Player) error
	DeletePlayer(ctx context.Context, playerID string) error
	ListRoomPlayers(ctx context.Context, roomID string) ([]models.Player, error)
}
