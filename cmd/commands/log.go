package commands

import (
	"github.com/btcsuite/btclog/v2"
)

// log is the logger of the command line app. It is disabled until the
// loggers are set up from the --debuglevel flag.
var log = btclog.Disabled

// UseLogger uses a specified Logger to output command logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}
