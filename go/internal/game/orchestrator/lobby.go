package orchestrator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/sabotage"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/mcdev12/sabotage/go/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	roomCodeLength  = 6
	roomCodeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxNameLength   = 24
)

func newRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeLetters[rand.IntN(len(roomCodeLetters))]
	}
	return string(b)
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	return name
}

func (o *Orchestrator) newPlayer(playerID, roomID, name, avatar string) *models.Player {
	return &models.Player{
		ID:       playerID,
		RoomID:   roomID,
		Name:     name,
		Avatar:   avatar,
		Role:     models.RoleUnassigned,
		Alive:    true,
		JoinedAt: o.clock.Now(),
	}
}

// CreateRoom opens a new room with a fresh code and joins the creator to it.
func (o *Orchestrator) CreateRoom(playerID, name, avatar string) (string, error) {
	name = cleanName(name)
	if name == "" {
		return "", invalid(reasonNameRequired)
	}

	o.mu.Lock()
	if _, ok := o.playerRooms[playerID]; ok {
		o.mu.Unlock()
		return "", invalid(reasonAlreadyInRoom)
	}
	code := newRoomCode()
	for {
		if _, taken := o.rooms[code]; !taken {
			break
		}
		code = newRoomCode()
	}

	r := &roomState{
		room: &models.Room{
			ID:               code,
			SabotageStations: make(map[string]models.SabotageStationEntry),
			CreatedAt:        o.clock.Now(),
		},
		players: make(map[string]*models.Player),
	}
	p := o.newPlayer(playerID, code, name, avatar)
	r.players[playerID] = p
	r.order = append(r.order, playerID)

	o.rooms[code] = r
	o.playerRooms[playerID] = code
	o.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	o.persistRoom(r)
	o.persister.SavePlayer(p)
	o.sendTo(code, playerID, events.EventTypeRoomCreated, events.RoomJoinedPayload{
		RoomID:   code,
		PlayerID: playerID,
		Players:  r.publicPlayers(),
	})

	log.Info().Str("room_id", code).Str("player_id", playerID).Msg("room created")
	return code, nil
}

// JoinRoom adds a player to an existing room in its lobby phase.
func (o *Orchestrator) JoinRoom(roomID, playerID, name, avatar string) error {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))
	name = cleanName(name)

	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if name == "" {
		return invalid(reasonNameRequired)
	}
	if r.room.GameActive || r.preparing {
		return invalid(reasonGameInProgress)
	}
	if len(r.players) >= o.cfg.MaxPlayers {
		return invalid(reasonRoomFull)
	}

	o.mu.Lock()
	if _, ok := o.playerRooms[playerID]; ok {
		o.mu.Unlock()
		return invalid(reasonAlreadyInRoom)
	}
	o.playerRooms[playerID] = roomID
	o.mu.Unlock()

	p := o.newPlayer(playerID, roomID, name, avatar)
	r.players[playerID] = p
	r.order = append(r.order, playerID)
	o.persister.SavePlayer(p)

	players := r.publicPlayers()
	o.sendTo(roomID, playerID, events.EventTypeRoomJoined, events.RoomJoinedPayload{
		RoomID:   roomID,
		PlayerID: playerID,
		Players:  players,
	})
	o.broadcast(roomID, events.EventTypePlayerListUpdated, events.PlayerListPayload{Players: players})

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Int("players", len(r.players)).Msg("player joined room")
	return nil
}

// Leave removes a disconnected player. Votes are never cast on their
// behalf. The room is torn down with its last player.
func (o *Orchestrator) Leave(playerID string) {
	roomID, ok := o.RoomOf(playerID)
	if !ok {
		return
	}

	r, err := o.lockRoom(roomID)
	if err != nil {
		o.mu.Lock()
		delete(o.playerRooms, playerID)
		o.mu.Unlock()
		return
	}
	defer r.mu.Unlock()

	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	o.mu.Lock()
	delete(o.playerRooms, playerID)
	empty := len(r.players) == 0
	if empty {
		delete(o.rooms, roomID)
	}
	o.mu.Unlock()

	o.persister.DeletePlayer(roomID, playerID)

	if empty {
		o.teardownLocked(r)
		log.Info().Str("room_id", roomID).Msg("last player left, room closed")
		return
	}

	o.broadcast(roomID, events.EventTypePlayerListUpdated, events.PlayerListPayload{Players: r.publicPlayers()})
	log.Info().Str("room_id", roomID).Str("player_id", playerID).Int("players", len(r.players)).Msg("player left room")
}

// teardownLocked stops every schedule for the room and deletes its records.
func (o *Orchestrator) teardownLocked(r *roomState) {
	roomID := r.room.ID
	r.closed = true
	r.epoch++
	r.stopBreakTimer()
	o.stopRoomClocks(roomID)
	o.persister.DeleteRoom(roomID)
}

func (o *Orchestrator) stopRoomClocks(roomID string) {
	o.roundTimer.Stop(roomID)
	o.meetingTimer.Stop(roomID)
	o.duelTimer.Stop(roomID)
	o.sweeper.Stop(roomID)
}

// Move updates a player's position.
func (o *Orchestrator) Move(roomID, playerID string, pos models.Position) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, err := r.player(playerID)
	if err != nil {
		return err
	}
	if r.room.MeetingActive {
		return invalid(reasonMeetingActive)
	}
	if !p.CanWork() {
		return invalid(reasonDead)
	}
	if p.Frozen(o.clock.Now()) {
		return invalid(reasonFrozen)
	}

	p.Position = pos
	o.broadcast(roomID, events.EventTypePlayerMoved, events.PlayerMovedPayload{PlayerID: playerID, Position: pos})
	return nil
}

// MeetingChat relays a message from a living player during a meeting.
func (o *Orchestrator) MeetingChat(roomID, playerID, text string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, err := r.player(playerID)
	if err != nil {
		return err
	}
	if !r.room.MeetingActive {
		return invalid(reasonNoMeeting)
	}
	if !p.Alive {
		return invalid(reasonDead)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid(reasonEmptyMessage)
	}
	if utf8.RuneCountInString(text) > o.cfg.ChatMaxLength {
		return invalid(reasonMessageTooLong)
	}

	o.broadcast(roomID, events.EventTypeMeetingChat, events.MeetingChatPayload{
		PlayerID: playerID,
		Name:     p.Name,
		Text:     text,
		SentAt:   o.clock.Now(),
	})
	return nil
}

// RecordAttempt appends a task attempt to the player's history for the
// end-of-game report.
func (o *Orchestrator) RecordAttempt(roomID, playerID, stationID, code string, passed bool, output string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if _, err := r.player(playerID); err != nil {
		return err
	}
	if !o.knownStation(stationID) {
		return notFound(reasonStationNotFound)
	}
	if r.session == nil || !r.room.GameActive {
		return invalid(reasonGameNotActive)
	}

	attempt := models.Attempt{
		StationID: stationID,
		Code:      code,
		Passed:    passed,
		Output:    output,
		At:        o.clock.Now(),
	}
	for _, t := range r.session.Assignments[playerID] {
		if t.StationID == stationID {
			attempt.TaskID = t.ID
			break
		}
	}
	r.session.Attempts[playerID] = append(r.session.Attempts[playerID], attempt)
	return nil
}

// ResetGame returns the room and every player to the lobby.
func (o *Orchestrator) ResetGame(roomID, playerID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if _, err := r.player(playerID); err != nil {
		return err
	}

	r.epoch++
	r.stopBreakTimer()
	o.stopRoomClocks(roomID)

	r.session = nil
	r.duel = nil
	r.preparing = false
	r.roundExpired = false
	r.room.GameActive = false
	r.room.MeetingActive = false
	r.room.Round = 0
	r.room.Timer = 0
	r.room.SabotageStations = make(map[string]models.SabotageStationEntry)
	for _, p := range r.playerList() {
		resetPlayer(p)
	}

	o.persistRoom(r)
	o.persistPlayers(r)
	o.broadcast(roomID, events.EventTypePlayerListUpdated, events.PlayerListPayload{Players: r.publicPlayers()})

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("game reset")
	return nil
}

func resetPlayer(p *models.Player) {
	p.Role = models.RoleUnassigned
	p.Alive = true
	p.CanTaskWhileDead = false
	p.TasksCompleted = 0
	p.SabotagePoints = 0
	p.Vote = ""
	p.TimeoutUntil = nil
}

// RoomSnapshot is the public view served by the state endpoint.
type RoomSnapshot struct {
	RoomID            string              `json:"room_id"`
	GameActive        bool                `json:"game_active"`
	MeetingActive     bool                `json:"meeting_active"`
	DuelActive        bool                `json:"duel_active"`
	Round             int                 `json:"round"`
	MaxRounds         int                 `json:"max_rounds"`
	TimeRemaining     int                 `json:"time_remaining"`
	Players           []events.PlayerView `json:"players"`
	SabotagedStations []string            `json:"sabotaged_stations"`
	TasksCompleted    int                 `json:"tasks_completed"`
	TaskTarget        int                 `json:"task_target"`
	CreatedAt         time.Time           `json:"created_at"`
	// Live is false when the snapshot was read back from the store.
	Live bool `json:"live"`
}

// RoomState returns the public snapshot of a room. Rooms not live in this
// process are read from the store.
func (o *Orchestrator) RoomState(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	roomID = strings.ToUpper(strings.TrimSpace(roomID))

	r, err := o.lockRoom(roomID)
	if err != nil {
		return o.storedRoomState(ctx, roomID)
	}
	defer r.mu.Unlock()

	now := o.clock.Now()
	snap := &RoomSnapshot{
		RoomID:            roomID,
		GameActive:        r.room.GameActive,
		MeetingActive:     r.room.MeetingActive,
		DuelActive:        r.duel != nil,
		Round:             r.room.Round,
		MaxRounds:         o.cfg.MaxRounds,
		Players:           r.publicPlayers(),
		SabotagedStations: []string{},
		CreatedAt:         r.room.CreatedAt,
		Live:              true,
	}
	if remaining, ok := o.roundTimer.Remaining(roomID); ok {
		snap.TimeRemaining = remaining
	}
	for id := range r.room.SabotageStations {
		if sabotage.IsSabotaged(r.room.SabotageStations, id, now) {
			snap.SabotagedStations = append(snap.SabotagedStations, id)
		}
	}
	sort.Strings(snap.SabotagedStations)
	if r.session != nil {
		snap.TasksCompleted = r.session.WorkerCompleted
		snap.TaskTarget = r.session.Target
	}
	return snap, nil
}

func (o *Orchestrator) storedRoomState(ctx context.Context, roomID string) (*RoomSnapshot, error) {
	if o.store == nil {
		return nil, notFound(reasonRoomNotFound)
	}

	room, err := o.store.GetRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("room_id", roomID).Msg("failed to read room from store")
		}
		return nil, notFound(reasonRoomNotFound)
	}
	players, err := o.store.ListRoomPlayers(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("failed to read room players from store")
	}

	snap := &RoomSnapshot{
		RoomID:            room.ID,
		GameActive:        room.GameActive,
		MeetingActive:     room.MeetingActive,
		Round:             room.Round,
		MaxRounds:         o.cfg.MaxRounds,
		TimeRemaining:     room.Timer,
		Players:           make([]events.PlayerView, 0, len(players)),
		SabotagedStations: []string{},
		CreatedAt:         room.CreatedAt,
	}
	for i := range players {
		snap.Players = append(snap.Players, publicView(&players[i], !room.GameActive && players[i].Role != models.RoleUnassigned))
	}
	for id := range room.SabotageStations {
		snap.SabotagedStations = append(snap.SabotagedStations, id)
	}
	sort.Strings(snap.SabotagedStations)
	return snap, nil
}
