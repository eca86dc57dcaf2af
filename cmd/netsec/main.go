package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/opst/netsec/cmd/netsec/subcommands/common"
	subpush "github.com/opst/netsec/cmd/netsec/subcommands/push"
	subreport "github.com/opst/netsec/cmd/netsec/subcommands/report"
	subserve "github.com/opst/netsec/cmd/netsec/subcommands/serve"
	subtoken "github.com/opst/netsec/cmd/netsec/subcommands/token"
	subtrain "github.com/opst/netsec/cmd/netsec/subcommands/train"
	subver "github.com/opst/netsec/cmd/netsec/subcommands/version"
	"github.com/opst/netsec/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := log.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	push := try.To(subpush.New()).OrFatal(logger)
	train := try.To(subtrain.New()).OrFatal(logger)
	serve := try.To(subserve.New()).OrFatal(logger)
	report := try.To(subreport.New()).OrFatal(logger)
	token := try.To(subtoken.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	netsec := try.To(
		flarc.NewCommandGroup(
			"Network security ML pipeline",
			common.DefaultCommonFlags(),
			flarc.WithSubcommand("push", push),
			flarc.WithSubcommand("train", train),
			flarc.WithSubcommand("serve", serve),
			flarc.WithSubcommand("report", report),
			flarc.WithSubcommand("token", token),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, netsec))
}
