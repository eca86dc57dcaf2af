// Package orchestrator runs pipeline stages in order.
package orchestrator

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/ingestion"
	"github.com/opst/netsec/pkg/domain/trainer"
	"github.com/opst/netsec/pkg/domain/transformation"
	"github.com/opst/netsec/pkg/domain/validation"
	"github.com/opst/netsec/pkg/store"
	"github.com/opst/netsec/pkg/tracking"
)

type Orchestrator struct {
	conf           *configs.PipelineConfig
	store          store.Store
	sink           tracking.Sink
	logger         *log.Logger
	clock          func() time.Time
	trainerOptions []trainer.Option
}

type Option func(*Orchestrator)

// WithClock replaces the clock naming run directories and timing stages.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithTrainerOptions passes options to the trainer stage.
func WithTrainerOptions(options ...trainer.Option) Option {
	return func(o *Orchestrator) {
		o.trainerOptions = append(o.trainerOptions, options...)
	}
}

func New(
	conf *configs.PipelineConfig,
	st store.Store,
	sink tracking.Sink,
	logger *log.Logger,
	options ...Option,
) *Orchestrator {
	o := &Orchestrator{conf: conf, store: st, sink: sink, logger: logger, clock: time.Now}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run runs Ingest, Validate, Transform and Train in this order, in a new run directory.
//
// A failure of a stage stops the run. No stage is retried.
// The manifest of the run is written to the run directory, whether it succeeds or not.
//
// # Returns
//
// - domain.TrainerArtifact: the artifact of the last stage
//
// - *domain.Manifest: the record of the run
//
// - error: *domain.StageError wrapping the cause, when a stage fails.
func (o *Orchestrator) Run(ctx context.Context) (domain.TrainerArtifact, *domain.Manifest, error) {
	started := o.clock()
	layout := domain.LayoutAt(o.conf.ArtifactRoot(), started)
	manifest := &domain.Manifest{
		RunDir:    layout.Root(),
		Status:    domain.RunRunning,
		StartedAt: started,
		Stages:    []domain.StageRecord{},
	}
	o.logger.Infof("pipeline run starts: %s", layout.Root())

	artifact, err := o.run(ctx, layout, manifest)

	manifest.FinishedAt = o.clock()
	if err != nil {
		manifest.Status = domain.RunFailed
		manifest.Error = err.Error()
		if se, ok := err.(*domain.StageError); ok {
			manifest.FailedStage = se.Stage
		}
		o.logger.Errorf("pipeline run failed: %s", err)
	} else {
		manifest.Status = domain.RunSucceeded
		o.logger.Infof("pipeline run finished: %s", layout.Root())
	}
	if serr := manifest.Save(layout.Manifest()); serr != nil {
		o.logger.Warnf("failed to write the manifest: %s", serr)
	}
	return artifact, manifest, err
}

// stage runs f as s, recording timing into m.
func (o *Orchestrator) stage(m *domain.Manifest, s domain.Stage, f func() error) error {
	rec := domain.StageRecord{Stage: s, StartedAt: o.clock()}
	o.logger.Infof("stage %s starts", s)
	err := f()
	rec.FinishedAt = o.clock()
	if err != nil {
		rec.Error = err.Error()
	}
	m.Stages = append(m.Stages, rec)
	if err != nil {
		return &domain.StageError{Stage: s, Err: err}
	}
	o.logger.Infof("stage %s finished in %s", s, rec.FinishedAt.Sub(rec.StartedAt))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, layout domain.Layout, m *domain.Manifest) (domain.TrainerArtifact, error) {
	var ingested domain.IngestionArtifact
	if err := o.stage(m, domain.Ingest, func() error {
		in := ingestion.New(o.store, o.conf.Store(), o.conf.Ingestion(), layout, o.logger)
		a, err := in.Run(ctx)
		if err != nil {
			return err
		}
		ingested = a
		m.Ingestion = &a
		return nil
	}); err != nil {
		return domain.TrainerArtifact{}, err
	}

	var validated domain.ValidationArtifact
	if err := o.stage(m, domain.Validate, func() error {
		a, err := validation.New(o.conf.Validation(), ingested, layout, o.logger).Run()
		if err != nil {
			return err
		}
		validated = a
		m.Validation = &a
		return nil
	}); err != nil {
		return domain.TrainerArtifact{}, err
	}

	var transformed domain.TransformationArtifact
	if err := o.stage(m, domain.Transform, func() error {
		a, err := transformation.New(
			o.conf.Transformation(), validated, layout, o.conf.FinalPreprocessorPath(), o.logger,
		).Run()
		if err != nil {
			return err
		}
		transformed = a
		m.Transformation = &a
		return nil
	}); err != nil {
		return domain.TrainerArtifact{}, err
	}

	var trained domain.TrainerArtifact
	if err := o.stage(m, domain.Train, func() error {
		tr, err := trainer.New(
			o.conf.Trainer(), transformed, layout, o.conf.FinalModelPath(),
			o.sink, o.logger, o.trainerOptions...,
		)
		if err != nil {
			return err
		}
		a, err := tr.TrainBest(ctx)
		if err != nil {
			return err
		}
		trained = a
		m.Trainer = &a
		return nil
	}); err != nil {
		return domain.TrainerArtifact{}, err
	}
	return trained, nil
}
