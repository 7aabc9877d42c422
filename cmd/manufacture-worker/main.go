// Command manufacture-worker runs the batch reconciliation pipeline: it
// consumes part messages from Kafka, fans them out to the reconciliation
// handlers and periodically re-announces batches that still need work.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-manufacture/config"
	"github.com/goliatone/go-manufacture/logger"
)

type CLI struct {
	Config string `short:"c" type:"path" env:"MANUFACTURE_CONFIG" help:"Path to the YAML configuration file."`

	Worker  WorkerCmd  `cmd:"" default:"1" help:"Consume part messages and run the reconciliation handlers."`
	Sweep   SweepCmd   `cmd:"" help:"Re-announce batches that are still reconcilable."`
	Indexes IndexesCmd `cmd:"" help:"Create the MongoDB indexes used by batches and dedup markers."`
	Publish PublishCmd `cmd:"" help:"Publish a part message by hand."`
}

// env is bound into every command's Run method.
type env struct {
	ctx    context.Context
	cfg    config.Config
	logger logger.Logger
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("manufacture-worker"),
		kong.Description("Manufacturing batch reconciliation worker."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lgr := newLogger(cfg.Logger)
	err = kctx.Run(&env{ctx: ctx, cfg: cfg, logger: lgr})
	if err != nil {
		lgr.Error("%s failed: %v", kctx.Command(), err)
	}
	kctx.FatalIfErrorf(err)
}

func newLogger(cfg config.LoggerConfig) logger.Logger {
	if cfg.Format == "text" {
		return logger.NewFmtLogger(os.Stdout)
	}
	return logger.NewJSON(os.Stdout, cfg.Level)
}
