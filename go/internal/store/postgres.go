package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_rooms (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS game_players (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS game_players_room_id_idx ON game_players (room_id);
`

// Postgres stores room and player records as jsonb rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool and makes sure the tables exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	log.Info().Msg("connected to postgres")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM game_rooms WHERE id = $1`, roomID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &room, nil
}

func (p *Postgres) SaveRoom(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO game_rooms (id, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		room.ID, data)
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM game_players WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("delete room players: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM game_rooms WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE game_rooms SET data = jsonb_set(data, '{timer}', to_jsonb($2::int)), updated_at = now()
		WHERE id = $1`, roomID, seconds)
	if err != nil {
		return fmt.Errorf("update room timer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM game_players WHERE id = $1`, playerID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	var player models.Player
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return &player, nil
}

func (p *Postgres) SavePlayer(ctx context.Context, player *models.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO game_players (id, room_id, data, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET room_id = EXCLUDED.room_id, data = EXCLUDED.data, updated_at = now()`,
		player.ID, player.RoomID, data)
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func (p *Postgres) DeletePlayer(ctx context.Context, playerID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM game_players WHERE id = $1`, playerID); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func (p *Postgres) ListRoomPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM game_players WHERE room_id = $1 ORDER BY data->>'joined_at', id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list room players: %w", err)
	}
	raws, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan room players: %w", err)
	}

	players := make([]models.Player, 0, len(raws))
	for _, raw := range raws {
		var player models.Player
		if err := json.Unmarshal(raw, &player); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		players = append(players, player)
	}
	return players, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
