// Command maestro-orchestra runs a single declarative flow file against a
// driver and reports the outcome, the way the teacher's "test" subcommand
// drives pkg/executor over a parsed flow.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/flow-orchestra/pkg/driver/mock"
	"github.com/devicelab-dev/flow-orchestra/pkg/maestro"
	"github.com/devicelab-dev/flow-orchestra/pkg/proxy/httpproxy"
	"github.com/devicelab-dev/flow-orchestra/pkg/script/gojaengine"
)

// Version is set at build time.
var Version = "dev"

func init() {
	maestro.SetMockRuleLoader(httpproxy.LoadRulesFile)
}

func main() {
	app := &cli.App{
		Name:    "maestro-orchestra",
		Usage:   "Run declarative UI automation flows",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug-level logging",
			},
			&cli.IntFlag{
				Name:  "proxy-port",
				Usage: "Network proxy port used by mockNetwork",
				Value: maestro.DefaultNetworkProxyPort,
			},
			&cli.BoolFlag{
				Name:  "mock-driver",
				Usage: "Run against the in-memory mock driver instead of a real device",
				Value: true,
			},
		},
		Commands: []*cli.Command{runCommand},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run a single flow file",
	ArgsUsage: "<flow-file>",
	Action:    runFlow,
}

func runFlow(cctx *cli.Context) error {
	path := cctx.Args().First()
	if path == "" {
		return cli.Exit("a flow file argument is required", 1)
	}

	log := logrus.New()
	if cctx.Bool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}
	logEntry := logrus.NewEntry(log).WithField("flow", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("reading flow file: %v", err), 1)
	}

	commands, err := maestro.ParseFlow(data, path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("parsing flow file: %v", err), 1)
	}

	engine := gojaengine.New()
	defer engine.Close()

	netProxy := httpproxy.New(cctx.Int("proxy-port"), logEntry.WithField("component", "proxy"))

	var driver maestro.Driver
	if cctx.Bool("mock-driver") {
		driver = mock.New(mock.Config{})
	} else {
		return cli.Exit("only --mock-driver is wired in this build", 1)
	}

	callbacks := maestro.Callbacks{
		OnCommandStart: func(index int, cmd maestro.Command) {
			logEntry.WithField("index", index).Info(cmd.Describe())
		},
		OnCommandComplete: func(index int, cmd maestro.Command) {
			logEntry.WithField("index", index).Debug("completed")
		},
		OnCommandSkipped: func(index int, cmd maestro.Command) {
			logEntry.WithField("index", index).Debug("skipped")
		},
		OnCommandFailed: func(index int, cmd maestro.Command, err error) maestro.ErrorResolution {
			logEntry.WithField("index", index).WithError(err).Error("command failed")
			return maestro.ResolutionFail
		},
	}

	orchestra := maestro.NewOrchestra(driver, engine, netProxy, callbacks, maestro.OrchestraConfig{
		NetworkProxyPort: cctx.Int("proxy-port"),
	}, logEntry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	ok, err := orchestra.RunFlow(ctx, commands, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("flow error: %v", err), 1)
	}
	if !ok {
		return cli.Exit("flow failed", 1)
	}

	logEntry.Info("flow passed")
	return nil
}
