package conversion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type Config struct {
	Storage   *Storage
	Office    DocumentConverter
	Renderer  PageRenderer
	Encoder   Encoder
	BatchSize int
}

type Result struct {
	JobID       string
	Slides      []domain.SlideArtifact
	TotalSlides int
}

type Outcome struct {
	Result Result
	Err    error
}

// Pipeline turns one upload into an ordered set of slide artifacts.
// Jobs are independent; a Pipeline may run many of them at once.
type Pipeline struct {
	storage   *Storage
	fs        afero.Fs
	office    DocumentConverter
	renderer  PageRenderer
	encoder   Encoder
	batchSize int
	now       func() time.Time
}

func NewPipeline(cfg Config) *Pipeline {
	fs := cfg.Storage.Fs()
	office := cfg.Office
	if office == nil {
		office = OfficeConverter{Fs: fs}
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = PopplerRenderer{Fs: fs}
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Pipeline{
		storage:   cfg.Storage,
		fs:        fs,
		office:    office,
		renderer:  renderer,
		encoder:   cfg.Encoder.withDefaults(),
		batchSize: size,
		now:       time.Now,
	}
}

func (p *Pipeline) Storage() *Storage { return p.storage }

// NewJob sniffs the upload at src and allocates the job's output directory.
// The returned error is a *domain.ValidationError for unsupported input.
func (p *Pipeline) NewJob(room domain.RoomID, src, filename string) (*Job, error) {
	format, err := DetectFormat(p.fs, src, filename)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	dir, err := p.storage.Create(id)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:         id,
		Room:       room,
		SourcePath: src,
		Filename:   filename,
		Format:     format,
		OutputDir:  dir,
		Status:     StatusRunning,
		StartedAt:  p.now(),
	}, nil
}

// Submit runs the job in the background. The channel yields exactly one
// Outcome and is then closed.
func (p *Pipeline) Submit(ctx context.Context, job *Job, sink Sink) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := p.Run(ctx, job, sink)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// Run converts the job synchronously. On failure the output directory is
// purged before sink.Failed is called. Cancelling ctx with ErrSuperseded
// as its cause fails the job with KindSuperseded.
func (p *Pipeline) Run(ctx context.Context, job *Job, sink Sink) (Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	logger := log.With().Str("module", "conversion.pipeline").Str("job", job.ID).Str("format", string(job.Format)).Logger()
	logger.Info().Str("file", job.Filename).Msg("conversion started")
	sink.Started(job)

	res, err := p.run(ctx, job, sink, logger)
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrSuperseded) {
			err = newError(KindSuperseded, job.ID, cause)
		}
		ce := asConversionError(job.ID, KindInternal, err)
		job.Status = StatusFailed
		job.Err = ce
		if perr := p.storage.Purge(job.ID); perr != nil {
			logger.Error().Err(perr).Msg("purge after failure")
		}
		logger.Warn().Err(ce).Str("kind", string(ce.Kind)).Msg("conversion failed")
		sink.Failed(job, ce)
		return Result{JobID: job.ID}, ce
	}

	job.Status = StatusSucceeded
	logger.Info().Int("slides", res.TotalSlides).Dur("took", p.now().Sub(job.StartedAt)).Msg("conversion complete")
	sink.Completed(job, res)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, job *Job, sink Sink, logger zerolog.Logger) (Result, error) {
	switch job.Format {
	case FormatImage:
		if err := sink.TotalKnown(job, 1); err != nil {
			return Result{}, err
		}
		return p.encodeAll(ctx, job, []string{job.SourcePath}, false, sink, logger)

	case FormatPDF:
		return p.runPaged(ctx, job, job.SourcePath, sink, logger)

	case FormatOffice:
		pdf, err := p.office.Convert(ctx, job.SourcePath, job.OutputDir)
		if err != nil {
			return Result{}, err
		}
		defer func() {
			if err := p.fs.Remove(pdf); err != nil {
				logger.Debug().Err(err).Msg("remove intermediate pdf")
			}
		}()
		return p.runPaged(ctx, job, pdf, sink, logger)
	}
	return Result{}, newError(KindInternal, job.ID, fmt.Errorf("%w: %q", ErrUnsupportedFormat, job.Format))
}

func (p *Pipeline) runPaged(ctx context.Context, job *Job, pdf string, sink Sink, logger zerolog.Logger) (Result, error) {
	pages, err := p.renderer.Render(ctx, pdf, job.OutputDir)
	if err != nil {
		return Result{}, err
	}
	if err := sink.TotalKnown(job, len(pages)); err != nil {
		return Result{}, err
	}
	return p.encodeAll(ctx, job, pages, true, sink, logger)
}

func (p *Pipeline) encodeAll(ctx context.Context, job *Job, pages []string, removeRaw bool, sink Sink, logger zerolog.Logger) (Result, error) {
	total := len(pages)
	slides := make([]domain.SlideArtifact, total)

	encode := func(_ context.Context, i int) error {
		name := SlideName(i)
		if err := p.encoder.Encode(p.fs, pages[i], filepath.Join(job.OutputDir, name)); err != nil {
			return newError(KindEncode, job.ID, err)
		}
		if removeRaw {
			if err := p.fs.Remove(pages[i]); err != nil {
				logger.Debug().Err(err).Str("page", pages[i]).Msg("remove raw page")
			}
		}
		slides[i] = domain.SlideArtifact{Index: i, URL: p.storage.URL(job.ID, name), Name: name}
		return nil
	}
	afterBatch := func(from, to int) error {
		for i := from; i < to; i++ {
			if err := sink.ArtifactReady(job, slides[i]); err != nil {
				return err
			}
		}
		sink.Progress(job, Progress{Percent: to * 100 / total, Completed: to, Total: total})
		return nil
	}

	if err := runBatches(ctx, total, p.batchSize, encode, afterBatch); err != nil {
		return Result{}, err
	}
	return Result{JobID: job.ID, Slides: slides, TotalSlides: total}, nil
}
