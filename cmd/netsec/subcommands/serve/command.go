package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	"github.com/opst/netsec/pkg/domain"
	"github.com/opst/netsec/pkg/domain/orchestrator"
	"github.com/opst/netsec/pkg/serving"
	"github.com/youta-t/flarc"
	"golang.org/x/sync/errgroup"
)

type Flags struct {
	Port int `flag:"port" alias:"p" help:"port to listen. serving.port in the config is used when omitted."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve predictions and training over HTTP.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Start the web server.

- POST /predict : predict records in the uploaded CSV (form field "file") with the latest model.
- GET|POST /train : run the training pipeline.
- GET /healthz : tell whether a model is loaded.

The model is reloaded when the file in finalModelDir is updated.
When serving.tokenKey is set, /train requires "Authorization: Bearer <token>" (see "token" subcommand).
`),
	)
}

func Task(
	ctx context.Context,
	logger *log.Logger,
	env common.Env,
	cl flarc.Commandline[Flags],
	params []any,
) error {
	conf := env.Config
	port := cl.Flags().Port
	if port == 0 {
		port = conf.Serving().Port()
	}

	options := []serving.Option{}
	if path := conf.Serving().TokenKey(); path != "" {
		key, err := serving.LoadKey(path)
		if err != nil {
			return err
		}
		options = append(options, serving.WithTokenKey(key))
	}

	holder := serving.NewHolder(conf.FinalModelPath(), logger)
	train := func(ctx context.Context) (domain.TrainerArtifact, error) {
		artifact, _, err := orchestrator.RunOnce(ctx, conf, logger)
		return artifact, err
	}
	e := serving.BuildServer(holder, train, conf.Serving().PredictionOutput(), env.LogLevel, options...)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return holder.Watch(ctx)
	})
	eg.Go(func() error {
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return e.Shutdown(graceful)
	})
	return eg.Wait()
}
