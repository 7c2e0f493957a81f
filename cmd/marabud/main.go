// Command marabud runs a node, or feeds it objects from a file for offline
// validation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsv-blockchain/marabu/daemon"
	"github.com/bsv-blockchain/marabu/settings"
	"github.com/bsv-blockchain/marabu/tracing"
	"github.com/bsv-blockchain/marabu/ulogger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "marabud",
		Usage: "Marabu full node",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Start the node and wait for a signal",
				Action: run,
			},
			{
				Name:      "import",
				Usage:     "Validate newline delimited JSON objects from a file and store the valid ones",
				ArgsUsage: "<file>",
				Action:    importFile,
			},
			{
				Name:   "tip",
				Usage:  "Print the tip of the longest chain and the mempool",
				Action: tip,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDaemon() (*daemon.Daemon, *settings.Settings, ulogger.Logger) {
	tSettings := settings.NewSettings()
	logger := ulogger.New("marabud", ulogger.WithLevel(tSettings.LogLevel), ulogger.WithPretty(tSettings.PrettyLogs))

	return daemon.New(logger, tSettings), tSettings, logger
}

func run(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, tSettings, logger := newDaemon()

	if err := tracing.InitTracer(ctx, tSettings.ClientName, tSettings); err != nil {
		logger.Warnf("tracing disabled: %v", err)
	}

	defer func() {
		_ = tracing.ShutdownTracer(context.Background())
	}()

	if _, err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	logger.Infof("shutting down")

	return d.Stop(context.Background())
}

func importFile(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("import needs exactly one file", 2)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	d, _, _ := newDaemon()

	node, err := d.Start(c.Context)
	if err != nil {
		return err
	}

	accepted, rejected, err := importObjects(c.Context, node, f, c.App.Writer)

	fmt.Fprintf(c.App.Writer, "%d accepted, %d rejected\n", accepted, rejected)

	if stopErr := d.Stop(context.Background()); err == nil {
		err = stopErr
	}

	return err
}

func tip(c *cli.Context) error {
	d, _, _ := newDaemon()

	node, err := d.Start(c.Context)
	if err != nil {
		return err
	}

	defer func() {
		_ = d.Stop(context.Background())
	}()

	tipID, err := node.GetChainTip(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "chaintip %s\n", tipID)

	for _, txID := range node.GetMempool() {
		fmt.Fprintf(c.App.Writer, "mempool  %s\n", txID)
	}

	return nil
}
