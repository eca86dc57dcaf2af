package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/opst/netsec/pkg/domain"
	xe "github.com/opst/netsec/pkg/errors"
	"github.com/opst/netsec/pkg/serving/apierr"
)

// TrainFunc runs the whole pipeline and returns the artifact of the last stage.
type TrainFunc func(ctx context.Context) (domain.TrainerArtifact, error)

// Reloader reloads the bundle after training.
type Reloader interface {
	Reload() error
}

// TrainHandler runs the pipeline synchronously, and responds its TrainerArtifact.
//
// Only one training runs at once. Requests during training get 409 Conflict.
// Training goes on even if the client disconnects.
func TrainHandler(train TrainFunc, models Reloader) echo.HandlerFunc {
	busy := new(atomic.Bool)
	return func(c echo.Context) error {
		if !busy.CompareAndSwap(false, true) {
			return apierr.Conflict(
				"training is in progress",
				apierr.WithAdvice("retry after it finishes."),
			)
		}
		defer busy.Store(false)

		artifact, err := train(context.WithoutCancel(c.Request().Context()))
		if err != nil {
			if errors.Is(err, xe.KindExternalService) {
				return apierr.ServiceUnavailable("check the record store and retry later.", err)
			}
			return apierr.InternalServerError(err)
		}
		if err := models.Reload(); err != nil {
			c.Logger().Warnf("trained model is not loaded: %s", err)
		}
		return c.JSON(http.StatusOK, artifact)
	}
}

// HealthHandler responds 200 when a model is loaded, otherwise 503.
func HealthHandler(models ModelSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := models.Get(); err != nil {
			return apierr.ServiceUnavailable("train a model first.", err)
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
