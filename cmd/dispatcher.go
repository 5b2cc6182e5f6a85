// Package cmd implements the gtleap applets.
package cmd

import (
	"fmt"
	"os"

	"github.com/karasz/gtleap/config"
	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/logger"
	"github.com/spf13/pflag"
)

// exitFailure is the daemontools convention for a temporary failure
const exitFailure = 111

// Applets maps applet names to their entry points
var Applets = map[string]func([]string) int{
	"leapcount": LeapCountRun,
	"tailocal":  TAILocalRun,
	"taiclockd": TAIClockDRun,
	"taiclockc": TAIClockCRun,
	"gntpclock": GNTPClockRun,
	"leapgen":   LeapGenRun,
}

// MainDispatcher is called if run as "gtleap <applet>"
func MainDispatcher(args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(os.Stderr,
			"Available applets: leapcount,tailocal,taiclockd,taiclockc,gntpclock,leapgen")
		return 1
	}

	run, ok := Applets[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		return 1
	}
	return run(args[1:])
}

// newFlagSet returns a flag set carrying the shared configuration flags
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	return fs
}

// setup parses args, configures logging and loads the leap second table
func setup(fs *pflag.FlagSet, args []string) (*config.Config, *leapsecs.Table, error) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.FromFlags(fs)
	if err != nil {
		return nil, nil, err
	}
	logger.Setup(cfg.Log)

	tbl, err := cfg.Table()
	if err != nil {
		return nil, nil, err
	}
	return cfg, tbl, nil
}
