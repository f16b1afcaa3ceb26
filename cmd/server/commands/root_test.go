package commands

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, err := run(t)
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "convert")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, err := run(t, "--unknown-flag", "value")
	assert.Error(t, err)
}

func TestConvertCommand_WritesSlides(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "whiteboard.png")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 40, 30))))
	require.NoError(t, f.Close())

	out := filepath.Join(tmp, "slides")
	stdout, err := run(t, "convert", src, "--out", out, "--config", filepath.Join(tmp, "missing.yaml"))
	require.NoError(t, err)

	lines := strings.Fields(stdout)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "slide-1.jpg"))
	_, err = os.Stat(lines[0])
	assert.NoError(t, err)
}

func TestConvertCommand_RejectsUnsupported(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	_, err := run(t, "convert", src, "--out", filepath.Join(tmp, "slides"), "--config", filepath.Join(tmp, "missing.yaml"))
	assert.Error(t, err)
}

func TestSweepCommand_RemovesOldJobs(t *testing.T) {
	tmp := t.TempDir()
	slides := filepath.Join(tmp, "slides")
	old := filepath.Join(slides, "old-job")
	fresh := filepath.Join(slides, "fresh-job")
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))
	t.Setenv("CLASSROOM_STORAGE_SLIDES_DIR", slides)

	stdout, err := run(t, "sweep", "--max-age", "1h", "--config", filepath.Join(tmp, "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "removed 1 job directories")
	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
}
