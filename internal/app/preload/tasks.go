package preload

import (
	"sync"

	"github.com/dkeye/Classroom/internal/domain"
)

type TaskKind string

const KindPreload TaskKind = "preload"

type TaskKey struct {
	Room domain.RoomID
	Kind TaskKind
}

// TaskRegistry tracks background passes that must not overlap. A second
// acquire for an active key fails instead of queueing.
type TaskRegistry struct {
	mu     sync.Mutex
	active map[TaskKey]struct{}
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{active: make(map[TaskKey]struct{})}
}

// TryAcquire marks key active. The returned release must be called exactly
// once when the pass ends.
func (r *TaskRegistry) TryAcquire(key TaskKey) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[key]; busy {
		return nil, false
	}
	r.active[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, key)
			r.mu.Unlock()
		})
	}, true
}

func (r *TaskRegistry) Active(key TaskKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}
