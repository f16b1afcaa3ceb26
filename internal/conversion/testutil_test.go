package conversion

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, pngBytes(t, w, h), 0o644))
}

// fakeRenderer writes pages PNGs named like pdftoppm output. Pages listed
// in broken get garbage bytes instead.
type fakeRenderer struct {
	t      *testing.T
	fs     afero.Fs
	pages  int
	broken map[int]bool
	err    error
}

func (r fakeRenderer) Render(_ context.Context, _ string, outDir string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	for n := 1; n <= r.pages; n++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%02d.png", n))
		if r.broken[n] {
			require.NoError(r.t, afero.WriteFile(r.fs, p, []byte("not a png"), 0o644))
			continue
		}
		writePNG(r.t, r.fs, p, 1600, 1200)
	}
	return ListRawPages(r.fs, outDir)
}

type fakeOffice struct {
	fs  afero.Fs
	err error
}

func (o fakeOffice) Convert(_ context.Context, src, outDir string) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	pdf := filepath.Join(outDir, "deck.pdf")
	return pdf, afero.WriteFile(o.fs, pdf, []byte("%PDF-1.4\n"), 0o644)
}

type recordingSink struct {
	mu        sync.Mutex
	events    []string
	total     int
	ready     []domain.SlideArtifact
	progress  []Progress
	completed *Result
	failed    *ConversionError
	onReady   func(a domain.SlideArtifact) error
}

func (s *recordingSink) add(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Started(*Job) { s.add("started") }

func (s *recordingSink) TotalKnown(_ *Job, total int) error {
	s.add("total")
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) ArtifactReady(_ *Job, a domain.SlideArtifact) error {
	if s.onReady != nil {
		if err := s.onReady(a); err != nil {
			return err
		}
	}
	s.add(fmt.Sprintf("ready:%d", a.Index))
	s.mu.Lock()
	s.ready = append(s.ready, a)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Progress(_ *Job, p Progress) {
	s.add(fmt.Sprintf("progress:%d", p.Percent))
	s.mu.Lock()
	s.progress = append(s.progress, p)
	s.mu.Unlock()
}

func (s *recordingSink) Completed(_ *Job, res Result) {
	s.add("completed")
	s.mu.Lock()
	s.completed = &res
	s.mu.Unlock()
}

func (s *recordingSink) Failed(_ *Job, err *ConversionError) {
	s.add("failed")
	s.mu.Lock()
	s.failed = err
	s.mu.Unlock()
}
