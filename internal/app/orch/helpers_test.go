package orch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/preload"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/dkeye/Classroom/internal/identity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var errFull = errors.New("send buffer full")

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return errFull
	}
	c.frames = append(c.frames, append([]byte(nil), f...))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) types() []string {
	var out []string
	for _, e := range c.events() {
		out = append(out, e["type"].(string))
	}
	return out
}

func (c *fakeConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, e := range c.events() {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type harness struct {
	t       *testing.T
	o       *Orchestrator
	fs      afero.Fs
	storage *conversion.Storage
}

func testDirectory(t *testing.T) *identity.Directory {
	d, err := identity.NewDirectory([]domain.Identity{
		{Username: "teach", DisplayName: "Teacher", Role: domain.RoleAuthority},
		{Username: "teach2", DisplayName: "Co-Teacher", Role: domain.RoleAuthority},
		{Username: "amy", DisplayName: "Amy", Role: domain.RoleViewer},
		{Username: "bob", DisplayName: "Bob", Role: domain.RoleViewer},
	}, true)
	require.NoError(t, err)
	return d
}

func newHarness(t *testing.T, tweak ...func(*Options)) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	st := conversion.NewStorage(fs, "/slides", "")
	opts := Options{
		Identities:  testDirectory(t),
		Scheduler:   preload.NewScheduler(context.Background(), 3, time.Millisecond, st),
		Storage:     st,
		ChatLimiter: app.NewRoomRateLimiter(5, time.Minute),
		Now:         func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	o := New(context.Background(), opts)
	t.Cleanup(o.Close)
	return &harness{t: t, o: o, fs: fs, storage: st}
}

func (h *harness) join(sid, username string) *fakeConn {
	h.t.Helper()
	return h.joinRoom("main", sid, username)
}

func (h *harness) joinRoom(room domain.RoomID, sid, username string) *fakeConn {
	h.t.Helper()
	c := &fakeConn{}
	_, err := h.o.Join(context.Background(), core.SessionID(sid), c, func() {}, JoinRequest{Room: room, Username: username, ClientID: "client-" + sid})
	require.NoError(h.t, err)
	return c
}

func (h *harness) room() *Room {
	return h.o.Rooms.GetOrCreate("main")
}

func (h *harness) state(fn func(s *domain.RoomState)) {
	h.t.Helper()
	h.stateIn("main", fn)
}

func (h *harness) stateIn(room domain.RoomID, fn func(s *domain.RoomState)) {
	h.t.Helper()
	require.NoError(h.t, h.o.Rooms.GetOrCreate(room).Do(context.Background(), func(r *Room) { fn(r.state) }))
}

// setDeck publishes n stored slides as the current deck.
func (h *harness) setDeck(jobID string, n int) {
	h.t.Helper()
	h.setDeckIn("main", jobID, n)
}

func (h *harness) setDeckIn(room domain.RoomID, jobID string, n int) {
	h.t.Helper()
	dir, err := h.storage.Create(jobID)
	require.NoError(h.t, err)
	h.stateIn(room, func(s *domain.RoomState) {
		s.ResetSlides()
		s.DeckID = jobID
		s.TotalSlides = n
		for i := 0; i < n; i++ {
			name := conversion.SlideName(i)
			require.NoError(h.t, afero.WriteFile(h.fs, filepath.Join(dir, name), []byte("jpeg"), 0o644))
			s.SlideArtifacts = append(s.SlideArtifacts, domain.SlideArtifact{Index: i, URL: h.storage.URL(jobID, name), Name: name})
		}
	})
}

func pngBytes(w, h int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)))
	return buf.Bytes()
}

// pageRenderer writes pages PNGs; with gate set it blocks until the gate
// closes or ctx ends.
type pageRenderer struct {
	fs    afero.Fs
	pages int
	gate  chan struct{}
	err   error
}

func (r pageRenderer) Render(ctx context.Context, _ string, outDir string) ([]string, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	for n := 1; n <= r.pages; n++ {
		if err := afero.WriteFile(r.fs, filepath.Join(outDir, fmt.Sprintf("page-%d.png", n)), pngBytes(64, 48), 0o644); err != nil {
			return nil, err
		}
	}
	return conversion.ListRawPages(r.fs, outDir)
}

func (h *harness) pipeline(r conversion.PageRenderer) *conversion.Pipeline {
	return conversion.NewPipeline(conversion.Config{Storage: h.storage, Renderer: r})
}

func (h *harness) newJob(p *conversion.Pipeline, name string) *conversion.Job {
	h.t.Helper()
	src := filepath.Join("/uploads", name)
	require.NoError(h.t, afero.WriteFile(h.fs, src, []byte("%PDF-1.4\n"), 0o644))
	job, err := p.NewJob("main", src, name)
	require.NoError(h.t, err)
	return job
}

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)
