package common

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/labstack/gommon/log"
	configs "github.com/opst/netsec/pkg/configs/pipeline"
	"github.com/opst/netsec/pkg/logs"
	"github.com/youta-t/flarc"
)

// DefaultConfig is the config file path used when --config is not given.
const DefaultConfig = "netsec.yaml"

type CommonFlags struct {
	Config   string `flag:"config" alias:"c" help:"path to the pipeline config file"`
	LogLevel string `flag:"loglevel" help:"log level. debug|info|warn|error|off. logLevel in the config is used when omitted."`
}

func DefaultCommonFlags() CommonFlags {
	return CommonFlags{Config: DefaultConfig}
}

// Env is what a task runs with.
type Env struct {
	Config *configs.PipelineConfig

	// LogLevel is the name of the effective log level.
	LogLevel string
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	env Env,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask loads the config named by common flags, and runs task with it.
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		env, err := LoadEnv(commonFlag)
		if err != nil {
			return err
		}
		logger := logs.New(cl.Stderr(), cl.Fullname(), env.LogLevel)
		return task(ctx, logger, env, cl, newpos)
	}
}

// LoadEnv reads the config file, and resolves the log level.
//
// --loglevel wins over logLevel in the config.
func LoadEnv(flags CommonFlags) (Env, error) {
	path := flags.Config
	if path == "" {
		path = DefaultConfig
	}
	conf, err := configs.LoadPipelineConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Env{}, fmt.Errorf(
				"%w: config file (%s) is not found. Pass --config", flarc.ErrUsage, path,
			)
		}
		return Env{}, fmt.Errorf("%w: failed to load config (%s)", err, path)
	}
	level := conf.LogLevel()
	if flags.LogLevel != "" {
		level = flags.LogLevel
	}
	return Env{Config: conf, LogLevel: level}, nil
}
