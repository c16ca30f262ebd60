package splitpay

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/lightninglabs/splitpay/splitscript"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem is the logging code of the splitpay binaries themselves.
const Subsystem = "SPAY"

// genSubLogger creates a logger for a subsystem. The shutdown function is
// called whenever a critical error is logged.
func genSubLogger(root *build.SubLoggerManager,
	shutdown func()) func(string) btclog.Logger {

	if shutdown == nil {
		shutdown = func() {}
	}

	// Return a function which will create a sublogger from our root
	// logger.
	return func(tag string) btclog.Logger {
		return root.GenSubLogger(tag, shutdown)
	}
}

// SetupLoggers initializes all package-global logger variables and registers
// them with the root logger, so their levels can be changed with
// build.ParseAndSetDebugLevels. The logger of the binaries themselves is
// handed to the given functions.
func SetupLoggers(root *build.SubLoggerManager, shutdown func(),
	useLoggers ...func(btclog.Logger)) {

	AddSubLogger(root, Subsystem, shutdown, useLoggers...)
	AddSubLogger(
		root, splitscript.Subsystem, shutdown, splitscript.UseLogger,
	)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	shutdown func(), useLoggers ...func(btclog.Logger)) {

	// genSubLogger will return a callback for creating a logger instance,
	// which we will give to the root logger.
	genLogger := genSubLogger(root, shutdown)

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, genLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a sub
// system.
func SetSubLogger(root *build.SubLoggerManager, subsystem string,
	logger btclog.Logger, useLoggers ...func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
