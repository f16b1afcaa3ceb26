package conversion

import "github.com/dkeye/Classroom/internal/domain"

type Progress struct {
	Percent   int
	Completed int
	Total     int
}

// Sink receives job events in order. TotalKnown and ArtifactReady may
// return an error (typically ErrSuperseded) to abort the job.
type Sink interface {
	Started(job *Job)
	TotalKnown(job *Job, total int) error
	ArtifactReady(job *Job, a domain.SlideArtifact) error
	Progress(job *Job, p Progress)
	Completed(job *Job, res Result)
	Failed(job *Job, err *ConversionError)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Started(*Job)                                   {}
func (NopSink) TotalKnown(*Job, int) error                     { return nil }
func (NopSink) ArtifactReady(*Job, domain.SlideArtifact) error { return nil }
func (NopSink) Progress(*Job, Progress)                        {}
func (NopSink) Completed(*Job, Result)                         {}
func (NopSink) Failed(*Job, *ConversionError)                  {}
