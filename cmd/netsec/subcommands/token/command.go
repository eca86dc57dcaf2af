package token

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	"github.com/opst/netsec/pkg/serving"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Subject string `flag:"subject" alias:"s" help:"subject of the token"`
	TTL     string `flag:"ttl" help:"lifetime of the token, like 24h or 30m"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Issue a bearer token for /train.",
		Flags{Subject: "netsec", TTL: "24h"},
		flarc.Args{},
		common.NewTask(Task(time.Now)),
		flarc.WithDescription(`
Issue a HS256 token signed with the key file configured as serving.tokenKey.

Pass it as "Authorization: Bearer <token>" header to /train.
`),
	)
}

func Task(now func() time.Time) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		env common.Env,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		ttl, err := time.ParseDuration(flags.TTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("%w: --ttl should be a positive duration: %q", flarc.ErrUsage, flags.TTL)
		}

		path := env.Config.Serving().TokenKey()
		if path == "" {
			return fmt.Errorf("%w: serving.tokenKey is not configured", flarc.ErrUsage)
		}
		key, err := serving.LoadKey(path)
		if err != nil {
			return err
		}

		issuedAt := now()
		token, err := serving.IssueToken(key, flags.Subject, issuedAt, ttl)
		if err != nil {
			return err
		}
		logger.Infof("token for %s expires at %s", flags.Subject, issuedAt.Add(ttl).Format(time.RFC3339))
		_, err = fmt.Fprintln(cl.Stdout(), token)
		return err
	}
}
