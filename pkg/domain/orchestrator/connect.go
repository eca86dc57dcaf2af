package orchestrator

import (
	"context"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	storeconn "github.com/opst/netsec/pkg/store/connect"
	trackconn "github.com/opst/netsec/pkg/tracking/connect"
)

// RunOnce connects to the store and the tracking sink of conf, and runs the pipeline once.
//
// The connections are closed when it returns.
func RunOnce(
	ctx context.Context,
	conf *configs.PipelineConfig,
	logger *log.Logger,
	options ...Option,
) (domain.TrainerArtifact, *domain.Manifest, error) {
	st, err := storeconn.Open(ctx, conf.Store().URI())
	if err != nil {
		return domain.TrainerArtifact{}, nil, err
	}
	defer st.Close()

	sink, err := trackconn.Open(ctx, conf.Tracking().URI())
	if err != nil {
		return domain.TrainerArtifact{}, nil, err
	}
	defer sink.Close()

	return New(conf, st, sink, logger, options...).Run(ctx)
}
