package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/karasz/gtleap/tai64"
	"github.com/karasz/gtleap/taiclockd"
	"github.com/rs/zerolog/log"
)

const defaultRounds = 10

// parseClockArgs parses "<ip> [saveclock]"
func parseClockArgs(args []string) (servIP net.IP, saveClock bool, err error) {
	switch len(args) {
	case 1, 2:
		servIP = net.ParseIP(args[0])
		if servIP == nil {
			return nil, false, fmt.Errorf("invalid IP address: %s", args[0])
		}
		saveClock = len(args) == 2 && args[1] == "saveclock"
	default:
		return nil, false, errors.New("unknown number of arguments. Please use 1 or 2")
	}
	return servIP, saveClock, nil
}

// reportClock prints the server time, the local clock and their difference
func reportClock(w io.Writer, conv *tai64.Converter, res taiclockd.Result) {
	_, _ = fmt.Fprintln(w, "before:", time.Now().UTC())
	_, _ = fmt.Fprintln(w, "after: ", res.Server)
	_, _ = fmt.Fprintln(w, "label: ", conv.FromTime(res.Server))
	_, _ = fmt.Fprintln(w, "offset:", res.Offset, "rtt:", res.RTT)
}

// TAIClockCRun asks a taiclockd server for the time and optionally sets
// the system clock from the answer.
func TAIClockCRun(args []string) int {
	fs := newFlagSet("taiclockc")
	port := fs.String("port", "4014", "server port")
	rounds := fs.Int("rounds", defaultRounds, "number of requests, the fastest answer wins")
	timeout := fs.Duration("timeout", taiclockd.DefaultQueryTimeout, "overall timeout")

	_, tbl, err := setup(fs, args)
	if err != nil {
		log.Error().Err(err).Msg("taiclockc")
		return exitFailure
	}
	servIP, saveClock, err := parseClockArgs(fs.Args())
	if err != nil {
		log.Error().Err(err).Msg("taiclockc")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conv := tai64.NewConverter(tbl)
	addr := net.JoinHostPort(servIP.String(), *port)
	res, err := taiclockd.Query(ctx, addr, conv, *rounds)
	if err != nil {
		log.Error().Err(err).Str("server", addr).Msg("taiclockc")
		return exitFailure
	}
	log.Debug().Str("server", addr).Dur("offset", res.Offset).Dur("rtt", res.RTT).Msg("measured")

	if saveClock {
		if err := setSystemClockTime(time.Now().Add(res.Offset)); err != nil {
			log.Error().Err(err).Msg("cannot set the system clock")
			return exitFailure
		}
	}
	reportClock(os.Stdout, conv, res)
	return 0
}
