// Package serving exposes the trained bundle over HTTP.
package serving

import (
	"github.com/labstack/echo/v4"
	"github.com/opst/netsec/pkg/echoutil"
	"github.com/opst/netsec/pkg/serving/handlers"
)

type serverOptions struct {
	tokenKey []byte
}

type Option func(*serverOptions)

// WithTokenKey protects /train with bearer tokens signed with key.
func WithTokenKey(key []byte) Option {
	return func(o *serverOptions) {
		o.tokenKey = key
	}
}

// BuildServer routes
//
// - GET /healthz
//
// - POST /predict
//
// - GET, POST /train
func BuildServer(
	holder *Holder,
	train handlers.TrainFunc,
	predictionOutput string,
	loglevel string,
	options ...Option,
) *echo.Echo {
	opts := &serverOptions{}
	for _, o := range options {
		o(opts)
	}

	e := echo.New()
	e.HideBanner = true

	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	e.GET("/healthz", handlers.HealthHandler(holder))
	e.POST("/predict", handlers.PredictHandler(holder, predictionOutput))

	guard := []echo.MiddlewareFunc{}
	if len(opts.tokenKey) != 0 {
		guard = append(guard, Guard(opts.tokenKey))
	}
	trainHandler := handlers.TrainHandler(train, holder)
	e.GET("/train", trainHandler, guard...)
	e.POST("/train", trainHandler, guard...)

	return e
}
