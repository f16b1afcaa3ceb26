package conversion

import (
	"fmt"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one upload being turned into slides. The pipeline owns it and
// its OutputDir until it finishes.
type Job struct {
	ID         string
	Room       domain.RoomID
	SourcePath string
	Filename   string
	Format     Format
	OutputDir  string
	Status     Status
	Err        *ConversionError
	StartedAt  time.Time
}

func (j *Job) String() string {
	return fmt.Sprintf("job %s (%s, %s)", j.ID, j.Filename, j.Format)
}

// SlideName is the artifact file name for a zero-based page index.
func SlideName(index int) string {
	return fmt.Sprintf("slide-%d%s", index+1, ArtifactExt)
}
