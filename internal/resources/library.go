// Package resources keeps the files shared with a class next to the slide
// deck: one directory per upload, listed newest first.
package resources

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNotFound = errors.New("resource not found")

// Resource describes a stored upload as announced to rooms.
type Resource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SafeName  string `json:"safeName"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	MIME      string `json:"mime"`
	Timestamp int64  `json:"timestamp"`
}

// Entry is one file found on disk by List.
type Entry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Size    int64  `json:"size"`
	MtimeMs int64  `json:"mtimeMs"`
}

type Library struct {
	fs        afero.Fs
	root      string
	urlPrefix string
	now       func() time.Time
}

func NewLibrary(fs afero.Fs, root, urlPrefix string) *Library {
	if urlPrefix == "" {
		urlPrefix = "/resources"
	}
	return &Library{fs: fs, root: root, urlPrefix: urlPrefix, now: time.Now}
}

func (l *Library) Fs() afero.Fs { return l.fs }
func (l *Library) Root() string { return l.root }

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SafeName replaces everything outside [a-zA-Z0-9.-] with '_'.
func SafeName(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	switch safe {
	case "", ".", "..":
		return "file"
	}
	return safe
}

// URL returns /resources/{id}/{safeName}.
func (l *Library) URL(id, safeName string) string {
	return path.Join(l.urlPrefix, id, safeName)
}

// Add stores r under a fresh id. An empty mime is sniffed from the content.
func (l *Library) Add(name, mime string, r io.Reader) (Resource, error) {
	id := uuid.NewString()
	safe := SafeName(name)
	dir := filepath.Join(l.root, id)
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return Resource{}, fmt.Errorf("create resource dir: %w", err)
	}

	br := bufio.NewReaderSize(r, 3072)
	if mime == "" {
		head, _ := br.Peek(3072)
		mime = mimetype.Detect(head).String()
	}

	dst := filepath.Join(dir, safe)
	out, err := l.fs.Create(dst)
	if err != nil {
		_ = l.fs.RemoveAll(dir)
		return Resource{}, err
	}
	size, err := io.Copy(out, br)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.fs.RemoveAll(dir)
		return Resource{}, fmt.Errorf("write resource: %w", err)
	}

	res := Resource{
		ID:        id,
		Name:      name,
		SafeName:  safe,
		URL:       l.URL(id, safe),
		Size:      size,
		MIME:      mime,
		Timestamp: l.now().UnixMilli(),
	}
	log.Info().Str("module", "resources").Str("id", id).Str("file", safe).Int64("size", size).Msg("resource stored")
	return res, nil
}

// Path returns the file for id/name, or false when it does not exist or
// the parts would leave the library root.
func (l *Library) Path(id, name string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil || name != SafeName(name) {
		return "", false
	}
	p := filepath.Join(l.root, id, name)
	fi, err := l.fs.Stat(p)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return p, true
}

// Remove deletes one file and its directory once it is empty.
func (l *Library) Remove(id, name string) error {
	p, ok := l.Path(id, name)
	if !ok {
		return ErrNotFound
	}
	if err := l.fs.Remove(p); err != nil {
		return fmt.Errorf("remove resource: %w", err)
	}
	dir := filepath.Dir(p)
	if empty, err := afero.IsEmpty(l.fs, dir); err == nil && empty {
		if err := l.fs.Remove(dir); err != nil {
			log.Debug().Err(err).Str("module", "resources").Str("dir", dir).Msg("remove resource dir")
		}
	}
	log.Info().Str("module", "resources").Str("id", id).Str("file", name).Msg("resource removed")
	return nil
}

// List walks every resource directory, newest file first. A missing root
// is an empty library.
func (l *Library) List() ([]Entry, error) {
	dirs, err := afero.ReadDir(l.fs, l.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	out := []Entry{}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		files, err := afero.ReadDir(l.fs, filepath.Join(l.root, d.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			out = append(out, Entry{
				ID:      d.Name(),
				Name:    f.Name(),
				URL:     l.URL(d.Name(), f.Name()),
				Size:    f.Size(),
				MtimeMs: f.ModTime().UnixMilli(),
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		switch {
		case a.MtimeMs > b.MtimeMs:
			return -1
		case a.MtimeMs < b.MtimeMs:
			return 1
		}
		return 0
	})
	return out, nil
}
