package train

import (
	"context"
	"encoding/json"

	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/orchestrator"
	"github.com/youta-t/flarc"
)

// Runner runs the pipeline once.
type Runner func(
	ctx context.Context, conf *configs.PipelineConfig, logger *log.Logger,
) (domain.TrainerArtifact, *domain.Manifest, error)

func runOnce(ctx context.Context, conf *configs.PipelineConfig, logger *log.Logger) (domain.TrainerArtifact, *domain.Manifest, error) {
	return orchestrator.RunOnce(ctx, conf, logger)
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run the training pipeline once.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task(runOnce)),
		flarc.WithDescription(`
Run Ingest, Validate, Transform and Train stages in a new run directory under artifactRoot.

The artifact of the trainer is printed as JSON.
The record of the run is written as pipeline.yaml in the run directory, even if it fails.
`),
	)
}

func Task(run Runner) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		env common.Env,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		artifact, manifest, err := run(ctx, env.Config, logger)
		if manifest != nil {
			logger.Infof("run directory: %s", manifest.RunDir)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cl.Stdout())
		enc.SetIndent("", "    ")
		return enc.Encode(artifact)
	}
}
