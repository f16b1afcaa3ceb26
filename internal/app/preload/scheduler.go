// Package preload announces upcoming slides ahead of navigation.
package preload

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWindow = 3
	DefaultDelay  = 100 * time.Millisecond
)

// Candidate is one slide eligible for a preload announcement.
type Candidate struct {
	Index    int
	DeckID   string
	Artifact domain.SlideArtifact
}

// Target is the room side of a pass. Both calls run on the room's
// serialized dispatch path.
type Target interface {
	// Candidates returns eligible slides after current, in ascending order.
	Candidates(ctx context.Context, current, window int) ([]Candidate, error)
	// MarkPreloaded records c and broadcasts the announcement. It returns
	// false when the room state moved on and nothing was emitted.
	MarkPreloaded(ctx context.Context, c Candidate, size int64) (bool, error)
}

// ArtifactChecker verifies that an artifact is actually readable.
type ArtifactChecker interface {
	Stat(deckID, name string) (size int64, ok bool)
}

// SelectCandidates picks the indices in (current, current+window] that are
// in range, published and not yet preloaded.
func SelectCandidates(state *domain.RoomState, current, window int) []Candidate {
	out := make([]Candidate, 0, window)
	for i := current + 1; i <= current+window; i++ {
		if i < 0 || i >= state.TotalSlides || state.IsPreloaded(i) {
			continue
		}
		a, ok := state.Artifact(i)
		if !ok {
			continue
		}
		out = append(out, Candidate{Index: i, DeckID: state.DeckID, Artifact: a})
	}
	return out
}

type Scheduler struct {
	ctx     context.Context
	window  int
	delay   time.Duration
	tasks   *TaskRegistry
	checker ArtifactChecker
	wg      sync.WaitGroup
}

func NewScheduler(ctx context.Context, window int, delay time.Duration, checker ArtifactChecker) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	if delay < 0 {
		delay = 0
	}
	return &Scheduler{
		ctx:     ctx,
		window:  window,
		delay:   delay,
		tasks:   NewTaskRegistry(),
		checker: checker,
	}
}

func (s *Scheduler) Window() int { return s.window }

// Trigger starts a pass for room unless one is already running. It never
// blocks and reports whether a pass was started.
func (s *Scheduler) Trigger(room domain.RoomID, target Target, current int) bool {
	key := TaskKey{Room: room, Kind: KindPreload}
	release, ok := s.tasks.TryAcquire(key)
	if !ok {
		log.Debug().Str("module", "preload").Str("room", string(room)).Int("current", current).Msg("pass already running, trigger dropped")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		s.pass(room, target, current)
	}()
	return true
}

// Busy reports whether a pass is running for room.
func (s *Scheduler) Busy(room domain.RoomID) bool {
	return s.tasks.Active(TaskKey{Room: room, Kind: KindPreload})
}

// Wait blocks until every running pass has finished.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) pass(room domain.RoomID, target Target, current int) {
	logger := log.With().Str("module", "preload").Str("room", string(room)).Int("current", current).Logger()

	candidates, err := target.Candidates(s.ctx, current, s.window)
	if err != nil {
		logger.Warn().Err(err).Msg("candidates")
		return
	}
	emitted := 0
	for _, c := range candidates {
		size, ok := s.checker.Stat(c.DeckID, c.Artifact.Name)
		if !ok {
			logger.Debug().Int("index", c.Index).Msg("artifact missing on storage, skipped")
			continue
		}
		marked, err := target.MarkPreloaded(s.ctx, c, size)
		if err != nil {
			logger.Warn().Err(err).Int("index", c.Index).Msg("mark preloaded")
			return
		}
		if !marked {
			continue
		}
		emitted++
		if s.delay > 0 {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.delay):
			}
		}
	}
	logger.Debug().Int("emitted", emitted).Msg("pass done")
}
