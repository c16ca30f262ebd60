package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/splitpay"
	"github.com/lightningnetwork/lnd/build"
	lfn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/signal"
	"github.com/urfave/cli"
)

const (
	// Environment variables names that can be used to set the global flags.
	envVarNetwork    = "SPLITCLI_NETWORK"
	envVarDebugLevel = "SPLITCLI_DEBUGLEVEL"
	envVarRoundDelay = "SPLITCLI_ROUNDDELAY"

	// defaultRoundDelay is the round delay used if none is given, one day
	// worth of blocks.
	defaultRoundDelay = 144
)

// NewApp creates a new splitcli app with all the available commands.
func NewApp(actionOpts ...ActionOption) cli.App {
	app := cli.NewApp()
	app.Name = "splitcli"
	app.Version = splitpay.Version()
	app.Usage = "build and inspect split payout settlement outputs"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network to render addresses for, e.g. " +
				"mainnet, testnet, regtest, signet or simnet.",
			Value:  "testnet",
			EnvVar: envVarNetwork,
		},
		cli.StringFlag{
			Name: "debuglevel",
			Usage: "Logging level for all subsystems {trace, debug, " +
				"info, warn, error, critical, off}, or a comma " +
				"separated list of <subsystem>=<level> pairs.",
			Value:  "off",
			EnvVar: envVarDebugLevel,
		},
	}
	app.Before = setupLogging

	// Add all the available commands.
	app.Commands = []cli.Command{
		NewDescribeCommand(actionOpts...),
		NewWitnessCommand(actionOpts...),
		NewBuildRoundCommand(actionOpts...),
	}
	app.Commands = append(app.Commands, partyCommands(actionOpts...)...)

	return *app
}

// setupLogging writes the logs of all subsystems to stderr, so they never
// mix with the JSON responses printed to stdout.
func setupLogging(ctx *cli.Context) error {
	logMgr := build.NewSubLoggerManager(btclog.NewDefaultHandler(os.Stderr))
	splitpay.SetupLoggers(logMgr, nil, UseLogger)

	debugLevel := ctx.GlobalString("debuglevel")
	if debugLevel == "" {
		debugLevel = "off"
	}

	// Parse, validate, and set debug log level(s).
	err := build.ParseAndSetDebugLevels(debugLevel, logMgr)
	if err != nil {
		return fmt.Errorf("error parsing debug level: %w", err)
	}

	log.Debugf("Running %v on network %v", ctx.Args().First(),
		ctx.GlobalString("network"))

	return nil
}

// networkParams returns the chain parameters of the network selected with the
// global network flag.
func networkParams(ctx *cli.Context) (*chaincfg.Params, error) {
	network := ctx.GlobalString("network")
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil

	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	default:
		return nil, fmt.Errorf("unknown network: %v", network)
	}
}

// actionOpts contains the options for an action.
type actionOpts struct {
	ctx          context.Context
	silencePrint bool
	respChan     chan<- lfn.Result[interface{}]
}

// ActionOption is a function type that can be used to set options for an
// action.
type ActionOption func(*actionOpts)

// defaultActionOpts returns the default action options.
func defaultActionOpts() *actionOpts {
	return &actionOpts{}
}

// ActionWithCtx is an option modifier function that sets the context for an
// action.
func ActionWithCtx(ctx context.Context) ActionOption {
	return func(opts *actionOpts) {
		opts.ctx = ctx
	}
}

// ActionWithSilencePrint is an option modifier function that sets the silence
// print option for an action.
func ActionWithSilencePrint(silencePrint bool) ActionOption {
	return func(opts *actionOpts) {
		opts.silencePrint = silencePrint
	}
}

// ActionRespChan is an option modifier function that sets the response channel
// for an action.
func ActionRespChan(respChan chan<- lfn.Result[interface{}]) ActionOption {
	return func(opts *actionOpts) {
		opts.respChan = respChan
	}
}

func getContext() context.Context {
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctxc, cancel := context.WithCancel(context.Background())
	go func() {
		<-shutdownInterceptor.ShutdownChannel()
		cancel()
	}()
	return ctxc
}

func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		Fatal(err)
	}

	var out bytes.Buffer
	_ = json.Indent(&out, b, "", "\t")
	out.WriteString("\n")
	_, _ = out.WriteTo(os.Stdout)
}

// Fatal prints the error to stderr and exits.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "[splitcli] %v\n", err)
	os.Exit(1)
}

// UnwrappedAction is a function signatures for unwrapped actions that are
// executed by the wrapped action.
type UnwrappedAction func(cliCtx *cli.Context, ctx context.Context,
	silencePrint bool) (interface{}, error)

// WrappedAction is a function signature for wrapped actions that are executed
// by cli.
type WrappedAction = func(*cli.Context) error

// NewWrappedAction creates a new WrappedAction that wraps an UnwrappedAction.
func NewWrappedAction(action UnwrappedAction,
	actionOpts ...ActionOption) WrappedAction {

	// Formulate the action options struct from the provided option
	// modifier functions.
	opts := defaultActionOpts()
	for _, actionOpt := range actionOpts {
		actionOpt(opts)
	}

	var (
		// Unpack options from opts to avoid overwriting below.
		ctx          = opts.ctx
		silencePrint = opts.silencePrint
		respChan     = opts.respChan
	)

	return func(cliCtx *cli.Context) error {
		// Only install the interrupt handler if the caller didn't
		// bring its own context.
		if ctx == nil {
			ctx = getContext()
		}

		resp, err := action(cliCtx, ctx, silencePrint)
		if err != nil {
			// If a response channel is provided, send the error to
			// the response channel.
			if respChan != nil {
				respChan <- lfn.Err[interface{}](err)
			}

			return err
		}

		// If a response channel is provided, send the response to the
		// response channel.
		if respChan != nil {
			respChan <- lfn.Ok[interface{}](resp)
		}

		return nil
	}
}
