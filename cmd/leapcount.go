package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/karasz/gtleap/leapsecs"
	"github.com/rs/zerolog/log"
)

// parseEpoch accepts POSIX seconds, fractional or not, or an RFC 3339 time
func parseEpoch(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("%q is neither POSIX seconds nor an RFC 3339 time", s)
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9, nil
}

// leapCount writes "<input> <count>" for every epoch in args, or for every
// whitespace separated word of in when args is empty. Bad words are logged
// and skipped; the returned error reports whether there were any.
func leapCount(tbl *leapsecs.Table, inserted bool, args []string, in io.Reader, out io.Writer) error {
	count := tbl.Count
	if inserted {
		count = tbl.Inserted
	}

	bad := 0
	emit := func(word string) error {
		epoch, err := parseEpoch(word)
		if err != nil {
			log.Error().Err(err).Msg("skipping input")
			bad++
			return nil
		}
		_, err = fmt.Fprintf(out, "%s %d\n", word, count(epoch))
		return err
	}

	if len(args) > 0 {
		for _, a := range args {
			if err := emit(a); err != nil {
				return err
			}
		}
	} else {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			for _, word := range strings.Fields(scanner.Text()) {
				if err := emit(word); err != nil {
					return err
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d unparsable inputs", bad)
	}
	return nil
}

// LeapCountRun prints TAI-UTC for the given instants, read from standard
// input when none are given on the command line.
func LeapCountRun(args []string) int {
	fs := newFlagSet("leapcount")
	inserted := fs.Bool("inserted", false, "print the leap seconds inserted since 1972 instead of TAI-UTC")

	_, tbl, err := setup(fs, args)
	if err != nil {
		log.Error().Err(err).Msg("leapcount")
		return exitFailure
	}

	output := bufio.NewWriter(os.Stdout)
	err = leapCount(tbl, *inserted, fs.Args(), os.Stdin, output)
	if ferr := output.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		log.Error().Err(err).Msg("leapcount")
		return exitFailure
	}
	return 0
}
