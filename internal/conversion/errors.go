package conversion

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindToolMissing Kind = "tool_missing"
	KindToolFailed  Kind = "tool_failed"
	KindRender      Kind = "render"
	KindEncode      Kind = "encode"
	KindSuperseded  Kind = "superseded"
	KindInternal    Kind = "internal"
)

var (
	ErrTimeout     = errors.New("external converter timed out")
	ErrToolMissing = errors.New("external converter not installed")
	ErrToolFailed  = errors.New("external converter failed")
	ErrRender      = errors.New("page render failed")
	ErrEncode      = errors.New("page encode failed")
	ErrSuperseded  = errors.New("job superseded")
	ErrInternal    = errors.New("conversion failed")

	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrNoPages           = errors.New("no slides generated from file")
)

var kindSentinels = map[Kind]error{
	KindTimeout:     ErrTimeout,
	KindToolMissing: ErrToolMissing,
	KindToolFailed:  ErrToolFailed,
	KindRender:      ErrRender,
	KindEncode:      ErrEncode,
	KindSuperseded:  ErrSuperseded,
	KindInternal:    ErrInternal,
}

// ConversionError is the terminal failure of a job. It matches its kind
// sentinel with errors.Is, as well as the underlying cause.
type ConversionError struct {
	Kind  Kind
	JobID string
	Err   error
}

func newError(kind Kind, jobID string, err error) *ConversionError {
	return &ConversionError{Kind: kind, JobID: jobID, Err: err}
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return kindSentinels[e.Kind].Error()
	}
	return fmt.Sprintf("%s: %v", kindSentinels[e.Kind], e.Err)
}

func (e *ConversionError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the kind of a conversion failure, or "" for other errors.
func KindOf(err error) Kind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// asConversionError keeps an existing ConversionError and classifies
// everything else under fallback.
func asConversionError(jobID string, fallback Kind, err error) *ConversionError {
	var ce *ConversionError
	if errors.As(err, &ce) {
		if ce.JobID == "" {
			ce.JobID = jobID
		}
		return ce
	}
	if errors.Is(err, ErrSuperseded) {
		return newError(KindSuperseded, jobID, err)
	}
	return newError(fallback, jobID, err)
}
