package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/sabotage/go/internal/dbconfig"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis stores rooms and players as JSON values, with a set per room
// tracking its members.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg dbconfig.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis")
	return &Redis{client: rdb, prefix: cfg.KeyPrefix}, nil
}

func (r *Redis) roomKey(id string) string        { return fmt.Sprintf("%s:room:%s", r.prefix, id) }
func (r *Redis) roomMembersKey(id string) string { return fmt.Sprintf("%s:room:%s:players", r.prefix, id) }
func (r *Redis) playerKey(id string) string      { return fmt.Sprintf("%s:player:%s", r.prefix, id) }

func (r *Redis) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	if err := r.getJSON(ctx, r.roomKey(roomID), &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *Redis) SaveRoom(ctx context.Context, room *models.Room) error {
	return r.setJSON(ctx, r.roomKey(room.ID), room)
}

// DeleteRoom removes the room record, its member set and every member record.
func (r *Redis) DeleteRoom(ctx context.Context, roomID string) error {
	members, err := r.client.SMembers(ctx, r.roomMembersKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("list room members: %w", err)
	}

	keys := []string{r.roomKey(roomID), r.roomMembersKey(roomID)}
	for _, id := range members {
		keys = append(keys, r.playerKey(id))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

func (r *Redis) UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	room.Timer = seconds
	return r.SaveRoom(ctx, room)
}

func (r *Redis) GetPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	var p models.Player
	if err := r.getJSON(ctx, r.playerKey(playerID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Redis) SavePlayer(ctx context.Context, player *models.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("marshal player: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.playerKey(player.ID), data, 0)
		pipe.SAdd(ctx, r.roomMembersKey(player.RoomID), player.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save player: %w", err)
	}
	return nil
}

func (r *Redis) DeletePlayer(ctx context.Context, playerID string) error {
	p, err := r.GetPlayer(ctx, playerID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.playerKey(playerID))
		pipe.SRem(ctx, r.roomMembersKey(p.RoomID), playerID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

func (r *Redis) ListRoomPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	ids, err := r.client.SMembers(ctx, r.roomMembersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}

	players := make([]models.Player, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetPlayer(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Str("player_id", id).Msg("skipping unreadable player record")
			continue
		}
		players = append(players, *p)
	}
	return players, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Redis) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
