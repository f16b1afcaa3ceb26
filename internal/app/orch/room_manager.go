package orch

import (
	"context"
	"slices"
	"sync"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type RoomInfo struct {
	ID           domain.RoomID `json:"id"`
	Participants int           `json:"participants"`
}

// RoomManager starts one Room loop per id on first use.
type RoomManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	policy app.Policy

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRoomManager(parent context.Context, policy app.Policy) *RoomManager {
	ctx, cancel := context.WithCancel(parent)
	return &RoomManager{
		ctx:    ctx,
		cancel: cancel,
		policy: policy,
		rooms:  make(map[domain.RoomID]*Room),
	}
}

func (rm *RoomManager) GetOrCreate(id domain.RoomID) *Room {
	rm.mu.RLock()
	room, ok := rm.rooms[id]
	rm.mu.RUnlock()
	if ok {
		return room
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if room, ok = rm.rooms[id]; !ok {
		room = newRoom(rm.ctx, id, rm.policy)
		rm.rooms[id] = room
		go room.run()
	}
	return room
}

func (rm *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[id]
	return room, ok
}

func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]RoomInfo, 0, len(rm.rooms))
	for id, r := range rm.rooms {
		out = append(out, RoomInfo{ID: id, Participants: r.reg.Len()})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (rm *RoomManager) running() []*Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		out = append(out, r)
	}
	return out
}

// StopIdle retires room and stops its loop if it is still the registered
// room for its id and holds nothing. The manager lock is held across the
// check so no new caller can pick up a room that is about to stop.
func (rm *RoomManager) StopIdle(room *Room) bool {
	rm.mu.Lock()
	if rm.rooms[room.id] != room {
		rm.mu.Unlock()
		return false
	}
	retired := false
	err := room.Do(rm.ctx, func(r *Room) {
		if r.idle() {
			r.retired = true
			retired = true
		}
	})
	if err != nil || !retired {
		rm.mu.Unlock()
		return false
	}
	delete(rm.rooms, room.id)
	rm.mu.Unlock()

	room.stop()
	log.Info().Str("module", "orch.rooms").Str("room", string(room.id)).Msg("idle room stopped")
	return true
}

// Close stops every room loop and waits for them to exit.
func (rm *RoomManager) Close() {
	rm.cancel()
	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.rooms = make(map[domain.RoomID]*Room)
	rm.mu.Unlock()
	for _, r := range rooms {
		<-r.stopped
	}
}
