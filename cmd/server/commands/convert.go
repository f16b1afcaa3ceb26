package commands

import (
	"fmt"
	"path/filepath"

	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document into slide images without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Storage.SlidesDir = out
			}
			res, err := convertFile(cmd, afero.NewOsFs(), cfg, args[0])
			if err != nil {
				return err
			}
			for _, s := range res.Slides {
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(cfg.Storage.SlidesDir, res.JobID, s.Name))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default storage.slides_dir)")
	return cmd
}

func convertFile(cmd *cobra.Command, fs afero.Fs, cfg *config.Config, path string) (conversion.Result, error) {
	p := newPipeline(newStorage(fs, cfg), cfg)
	job, err := p.NewJob(domain.RoomID(cfg.Room.Default), path, filepath.Base(path))
	if err != nil {
		return conversion.Result{}, err
	}
	return p.Run(cmd.Context(), job, logSink{})
}

// logSink reports job events on the console.
type logSink struct {
	conversion.NopSink
}

func (logSink) TotalKnown(job *conversion.Job, total int) error {
	log.Info().Str("job", job.ID).Int("total", total).Msg("pages")
	return nil
}

func (logSink) Progress(job *conversion.Job, p conversion.Progress) {
	log.Info().Str("job", job.ID).Int("percent", p.Percent).Int("done", p.Completed).Int("total", p.Total).Msg("progress")
}

func (logSink) Failed(job *conversion.Job, err *conversion.ConversionError) {
	log.Error().Str("job", job.ID).Str("kind", string(err.Kind)).Err(err).Msg("conversion failed")
}
