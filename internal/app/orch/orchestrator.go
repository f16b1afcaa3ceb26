package orch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/preload"
	"github.com/dkeye/Classroom/internal/app/whiteboard"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/identity"
)

const DefaultChatMaxLen = 500

var ErrUnknownRoom = errors.New("unknown room")

type Options struct {
	Identities  identity.Provider
	Scheduler   *preload.Scheduler
	Storage     *conversion.Storage
	Board       whiteboard.Strategy
	Policy      app.Policy
	Authority   app.AuthorityPolicy
	ChatLimiter *app.RoomRateLimiter
	ChatMaxLen  int
	WarmPreload bool
	// RTC is handed to every joiner as-is (ICE configuration).
	RTC any
	Now func() time.Time
}

// Orchestrator is the event hub: it resolves which room a connection
// belongs to and runs every command on that room's loop.
type Orchestrator struct {
	Rooms *RoomManager

	identities  identity.Provider
	scheduler   *preload.Scheduler
	storage     *conversion.Storage
	board       whiteboard.Strategy
	authority   app.AuthorityPolicy
	chatLimiter *app.RoomRateLimiter
	chatMaxLen  int
	warmPreload bool
	rtc         any
	now         func() time.Time
	purgeWG     sync.WaitGroup

	mu       sync.RWMutex
	memberOf map[core.SessionID]domain.RoomID
}

func New(ctx context.Context, opts Options) *Orchestrator {
	if opts.Board == nil {
		opts.Board = whiteboard.SingleWriter{}
	}
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	if opts.Authority == "" {
		opts.Authority = app.AuthorityShared
	}
	if opts.ChatMaxLen <= 0 {
		opts.ChatMaxLen = DefaultChatMaxLen
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheduler == nil {
		var checker preload.ArtifactChecker = noStorage{}
		if opts.Storage != nil {
			checker = opts.Storage
		}
		opts.Scheduler = preload.NewScheduler(ctx, preload.DefaultWindow, preload.DefaultDelay, checker)
	}
	return &Orchestrator{
		Rooms:       NewRoomManager(ctx, opts.Policy),
		identities:  opts.Identities,
		scheduler:   opts.Scheduler,
		storage:     opts.Storage,
		board:       opts.Board,
		authority:   opts.Authority,
		chatLimiter: opts.ChatLimiter,
		chatMaxLen:  opts.ChatMaxLen,
		warmPreload: opts.WarmPreload,
		rtc:         opts.RTC,
		now:         opts.Now,
		memberOf:    make(map[core.SessionID]domain.RoomID),
	}
}

type noStorage struct{}

func (noStorage) Stat(string, string) (int64, bool) { return 0, false }

func (o *Orchestrator) timestamp() int64 { return o.now().UnixMilli() }

func (o *Orchestrator) roomOf(sid core.SessionID) (*Room, bool) {
	o.mu.RLock()
	id, ok := o.memberOf[sid]
	o.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return o.Rooms.Get(id)
}

func (o *Orchestrator) setMember(sid core.SessionID, id domain.RoomID) {
	o.mu.Lock()
	o.memberOf[sid] = id
	o.mu.Unlock()
}

func (o *Orchestrator) forgetMember(sid core.SessionID, id domain.RoomID) {
	o.mu.Lock()
	if cur, ok := o.memberOf[sid]; ok && cur == id {
		delete(o.memberOf, sid)
	}
	o.mu.Unlock()
}

// RoomOf reports the room sid has joined.
func (o *Orchestrator) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	id, ok := o.memberOf[sid]
	return id, ok
}

// actorCommand runs fn on the actor's room with the actor resolved.
func (o *Orchestrator) actorCommand(ctx context.Context, sid core.SessionID, fn func(r *Room, actor domain.Participant) error) error {
	room, ok := o.roomOf(sid)
	if !ok {
		return domain.ErrNotJoined
	}
	var cmdErr error
	err := room.Do(ctx, func(r *Room) {
		actor, ok := r.reg.Get(sid)
		if !ok {
			cmdErr = domain.ErrNotJoined
			return
		}
		cmdErr = fn(r, actor)
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Snapshot returns the current state of a room for read-only callers. It
// never starts a room.
func (o *Orchestrator) Snapshot(ctx context.Context, id domain.RoomID) (domain.RoomSnapshot, error) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return domain.RoomSnapshot{}, ErrUnknownRoom
	}
	var snap domain.RoomSnapshot
	err := room.Do(ctx, func(r *Room) {
		snap = o.roomSnapshot(r)
	})
	if errors.Is(err, ErrRoomStopped) {
		return domain.RoomSnapshot{}, ErrUnknownRoom
	}
	return snap, err
}

// Announce broadcasts v to every running room without starting one and
// returns how many connections it reached.
func (o *Orchestrator) Announce(ctx context.Context, v any) int {
	sent := 0
	for _, room := range o.Rooms.running() {
		err := room.Do(ctx, func(r *Room) {
			sent += r.broadcast(v).SendTo
		})
		if err != nil && !errors.Is(err, ErrRoomStopped) {
			return sent
		}
	}
	return sent
}

// reapIfIdle stops room once nobody is in it and it holds no deck or job.
func (o *Orchestrator) reapIfIdle(room *Room) {
	o.Rooms.StopIdle(room)
}

// withRoom runs fn on the room for id, starting a fresh room when the one
// found was retired between lookup and use.
func (o *Orchestrator) withRoom(ctx context.Context, id domain.RoomID, fn func(r *Room)) (*Room, error) {
	var err error
	for range 3 {
		room := o.Rooms.GetOrCreate(id)
		if err = room.Do(ctx, fn); !errors.Is(err, ErrRoomStopped) || o.Rooms.ctx.Err() != nil {
			return room, err
		}
	}
	return nil, err
}

func (o *Orchestrator) roomSnapshot(r *Room) domain.RoomSnapshot {
	snap := r.snapshot()
	if ops := o.board.Snapshot(r.state); ops != nil {
		snap.WhiteboardState = ops
	}
	return snap
}

// Wait blocks until background preload passes and storage purges finish.
func (o *Orchestrator) Wait() {
	o.scheduler.Wait()
	o.purgeWG.Wait()
}

// Close stops every room.
func (o *Orchestrator) Close() {
	o.Rooms.Close()
	o.Wait()
}
