package conversion

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrBadJobID = errors.New("invalid job id")

// Storage owns the artifact tree: one directory per job under root.
// Paths handed out are real paths on fs, so external tools can use them
// when fs is the OS filesystem.
type Storage struct {
	fs        afero.Fs
	root      string
	urlPrefix string
}

func NewStorage(fs afero.Fs, root, urlPrefix string) *Storage {
	if urlPrefix == "" {
		urlPrefix = "/slides"
	}
	return &Storage{fs: fs, root: root, urlPrefix: urlPrefix}
}

func (s *Storage) Fs() afero.Fs   { return s.fs }
func (s *Storage) Root() string   { return s.root }
func (s *Storage) Prefix() string { return s.urlPrefix }

func validJobID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func (s *Storage) JobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// Create makes the job directory and returns its path.
func (s *Storage) Create(jobID string) (string, error) {
	if !validJobID(jobID) {
		return "", ErrBadJobID
	}
	dir := s.JobDir(jobID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	return dir, nil
}

// URL returns the public artifact URL, /slides/{jobId}/{name}.
func (s *Storage) URL(jobID, name string) string {
	return path.Join(s.urlPrefix, jobID, name)
}

// Stat reports the size of an artifact if it is present and regular.
func (s *Storage) Stat(jobID, name string) (int64, bool) {
	if !validJobID(jobID) || name == "" || strings.ContainsAny(name, `/\`) {
		return 0, false
	}
	fi, err := s.fs.Stat(filepath.Join(s.JobDir(jobID), name))
	if err != nil || !fi.Mode().IsRegular() {
		return 0, false
	}
	return fi.Size(), true
}

// Purge removes a job directory and everything in it.
func (s *Storage) Purge(jobID string) error {
	if !validJobID(jobID) {
		return ErrBadJobID
	}
	if err := s.fs.RemoveAll(s.JobDir(jobID)); err != nil {
		return fmt.Errorf("purge job %s: %w", jobID, err)
	}
	log.Info().Str("module", "conversion.storage").Str("job", jobID).Msg("purged job dir")
	return nil
}

// Sweep removes job directories whose modification time is older than maxAge.
func (s *Storage) Sweep(maxAge time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-maxAge)
	return s.removeDirs(func(fi os.FileInfo) bool { return fi.ModTime().Before(cutoff) })
}

func (s *Storage) removeDirs(match func(os.FileInfo) bool) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read storage root: %w", err)
	}
	removed := 0
	var errs []error
	for _, fi := range entries {
		if !fi.IsDir() || !match(fi) {
			continue
		}
		if err := s.fs.RemoveAll(filepath.Join(s.root, fi.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
