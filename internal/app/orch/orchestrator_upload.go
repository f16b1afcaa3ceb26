package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Convert runs job in the background and publishes its progress into the
// job's room. A newer upload to the same room supersedes it. The channel
// yields the single outcome for the uploader.
func (o *Orchestrator) Convert(ctx context.Context, p *conversion.Pipeline, job *conversion.Job, clientID string) <-chan conversion.Outcome {
	out := make(chan conversion.Outcome, 1)
	jobCtx, cancel := context.WithCancelCause(ctx)

	// The job is owned by the room before it starts so the room is not
	// stopped under it and a reset cancels it.
	room, err := o.withRoom(ctx, job.Room, func(r *Room) {
		r.jobs[job.ID] = cancel
	})
	if err != nil {
		cancel(err)
		if perr := p.Storage().Purge(job.ID); perr != nil {
			log.Error().Err(perr).Str("module", "orch").Str("job", job.ID).Msg("purge unstarted job")
		}
		out <- conversion.Outcome{
			Result: conversion.Result{JobID: job.ID},
			Err:    &conversion.ConversionError{Kind: conversion.KindInternal, JobID: job.ID, Err: err},
		}
		close(out)
		return out
	}
	sink := &roomSink{o: o, room: room, clientID: clientID}

	go func() {
		defer close(out)
		defer cancel(nil)
		res := <-p.Submit(jobCtx, job, sink)
		if res.Err == nil && sink.lost {
			// Finished after a newer upload took over; its deck is not shown.
			if err := p.Storage().Purge(job.ID); err != nil {
				log.Error().Err(err).Str("module", "orch").Str("job", job.ID).Msg("purge superseded job")
			}
			res = conversion.Outcome{
				Result: conversion.Result{JobID: job.ID},
				Err:    &conversion.ConversionError{Kind: conversion.KindSuperseded, JobID: job.ID, Err: conversion.ErrSuperseded},
			}
		}
		out <- res
		o.reapIfIdle(room)
	}()
	return out
}

// roomSink feeds pipeline events through the room loop. Events from a job
// that is no longer the room's active one are dropped.
type roomSink struct {
	o        *Orchestrator
	room     *Room
	clientID string
	// lost is written on the room loop inside Completed and read after
	// the pipeline returned.
	lost bool
}

func (s *roomSink) do(job *conversion.Job, fn func(r *Room)) error {
	err := s.room.Do(context.Background(), fn)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("job", job.ID).Msg("conversion event dropped")
	}
	return err
}

func (s *roomSink) Started(job *conversion.Job) {
	_ = s.do(job, func(r *Room) {
		if _, ok := r.jobs[job.ID]; !ok {
			// cancelled by a reset before it got going
			return
		}
		if prev := r.active; prev != "" {
			if cancel, ok := r.jobs[prev]; ok {
				cancel(conversion.ErrSuperseded)
			}
			log.Info().Str("module", "orch").Str("room", string(r.id)).Str("job", prev).Str("by", job.ID).Msg("job superseded")
		} else {
			deck := r.state.SaveDeck()
			r.backup = &deck
		}
		r.active = job.ID
		r.state.ResetSlides()
		r.state.DeckID = job.ID

		r.broadcast(core.UploadStartedEvent{
			Type:      core.EventUploadStarted,
			JobID:     job.ID,
			Filename:  job.Filename,
			Timestamp: s.o.timestamp(),
		})
	})
}

func (s *roomSink) TotalKnown(job *conversion.Job, total int) error {
	var err error
	if derr := s.do(job, func(r *Room) {
		if r.active != job.ID {
			err = conversion.ErrSuperseded
			return
		}
		r.state.TotalSlides = total
		r.state.CurrentSlideIndex = 0
		r.state.SlideArtifacts = make([]domain.SlideArtifact, 0, total)
		r.broadcast(core.TotalSlidesEvent{Type: core.EventTotalSlides, JobID: job.ID, TotalSlides: total})
	}); derr != nil {
		return derr
	}
	return err
}

func (s *roomSink) ArtifactReady(job *conversion.Job, a domain.SlideArtifact) error {
	var err error
	if derr := s.do(job, func(r *Room) {
		if r.active != job.ID {
			err = conversion.ErrSuperseded
			return
		}
		if a.Index != len(r.state.SlideArtifacts) {
			err = errors.New("artifact out of order")
			return
		}
		r.state.SlideArtifacts = append(r.state.SlideArtifacts, a)
		r.broadcast(core.SlideReadyEvent{Type: core.EventSlideReady, JobID: job.ID, URL: a.URL, Index: a.Index})

		if s.o.warmPreload && s.o.storage != nil && a.Index < s.o.scheduler.Window() {
			if size, ok := s.o.storage.Stat(job.ID, a.Name); ok {
				s.o.markPreloaded(r, a, size)
			}
		}
	}); derr != nil {
		return derr
	}
	return err
}

func (s *roomSink) Progress(job *conversion.Job, p conversion.Progress) {
	_ = s.do(job, func(r *Room) {
		if r.active != job.ID {
			return
		}
		r.broadcast(core.ProgressEvent{
			Type:            core.EventConversionProgress,
			JobID:           job.ID,
			Progress:        p.Percent,
			CompletedSlides: p.Completed,
			TotalSlides:     p.Total,
		})
	})
}

func (s *roomSink) Completed(job *conversion.Job, res conversion.Result) {
	err := s.do(job, func(r *Room) {
		delete(r.jobs, job.ID)
		if r.active != job.ID {
			s.lost = true
			return
		}
		if r.backup != nil && r.backup.DeckID != "" && r.backup.DeckID != job.ID {
			// the replaced deck is no longer reachable from this room
			s.o.purgeDecks(r.id, []string{r.backup.DeckID})
		}
		r.active = ""
		r.backup = nil
		r.broadcast(core.UploadCompleteEvent{
			Type:        core.EventUploadComplete,
			JobID:       job.ID,
			TotalSlides: res.TotalSlides,
			Timestamp:   s.o.timestamp(),
		})
	})
	if err != nil {
		s.lost = true
	}
}

func (s *roomSink) Failed(job *conversion.Job, cerr *conversion.ConversionError) {
	_ = s.do(job, func(r *Room) {
		delete(r.jobs, job.ID)
		if r.active == job.ID {
			// Roll back to the last complete deck without announcing it;
			// slides already announced for this job simply stop resolving.
			if r.backup != nil {
				r.state.RestoreDeck(*r.backup)
			} else {
				r.state.ResetSlides()
			}
			r.active = ""
			r.backup = nil
		}
		if cerr.Kind != conversion.KindSuperseded {
			s.notifyUploader(r, cerr)
		}
	})
}

// notifyUploader sends the failure to every connection of the uploading
// client, and to no one else.
func (s *roomSink) notifyUploader(r *Room, cerr *conversion.ConversionError) {
	if s.clientID == "" {
		return
	}
	for _, p := range r.reg.Roster() {
		if p.ClientID == s.clientID {
			r.sendTo(core.SessionID(p.ConnectionID), core.ErrorEvent{Type: core.EventError, Error: cerr.Error()})
		}
	}
}
