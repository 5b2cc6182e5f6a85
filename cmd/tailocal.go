package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/karasz/gtleap/tai64"
	"github.com/rs/zerolog/log"
)

const (
	tainLabelLength = 1 + 2*tai64.TAINLength
	taiLabelLength  = 1 + 2*tai64.TAILength
)

// localizer rewrites external TAI64 and TAI64N labels as UTC
type localizer struct {
	conv *tai64.Converter
}

// tryParseTimestamp converts the label at the start of s, preferring TAI64N.
// It returns the replacement and the number of bytes it consumed.
func (l *localizer) tryParseTimestamp(s string) (string, int, bool) {
	if len(s) >= tainLabelLength {
		if tn, err := tai64.ParseTAIN(s[:tainLabelLength]); err == nil {
			return fmt.Sprint(l.conv.Time(tn)), tainLabelLength, true
		}
	}
	if len(s) >= taiLabelLength {
		if t, err := tai64.ParseTAI(s[:taiLabelLength]); err == nil {
			return fmt.Sprint(l.conv.TAITime(t)), taiLabelLength, true
		}
	}
	return "", 0, false
}

// processline replaces every label in s
func (l *localizer) processline(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}

	var b strings.Builder
	for {
		atpos := strings.IndexByte(s, '@')
		if atpos < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:atpos])
		s = s[atpos:]

		if repl, n, ok := l.tryParseTimestamp(s); ok {
			b.WriteString(repl)
			s = s[n:]
			continue
		}
		b.WriteByte('@')
		s = s[1:]
	}
}

// processInputStream reads from in and writes processed lines to output
func (l *localizer) processInputStream(in *bufio.Reader, output *bufio.Writer) error {
	for {
		line, err := in.ReadString('\n')
		if line != "" {
			if _, werr := output.WriteString(l.processline(line)); werr != nil {
				return werr
			}
			if werr := output.Flush(); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// processFile runs name through l, "-" being standard input
func (l *localizer) processFile(name string, output *bufio.Writer) error {
	if name == "-" {
		return l.processInputStream(bufio.NewReader(os.Stdin), output)
	}
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return l.processInputStream(bufio.NewReader(f), output)
}

// TAILocalRun converts TAI64 and TAI64N labels in its input, as written by
// multilog or tai64n, to UTC. It reads the named files or standard input.
func TAILocalRun(args []string) int {
	fs := newFlagSet("tailocal")

	_, tbl, err := setup(fs, args)
	if err != nil {
		log.Error().Err(err).Msg("tailocal")
		return exitFailure
	}

	names := fs.Args()
	if len(names) == 0 {
		names = []string{"-"}
	}

	l := &localizer{conv: tai64.NewConverter(tbl)}
	output := bufio.NewWriter(os.Stdout)
	for _, name := range names {
		if err := l.processFile(name, output); err != nil {
			log.Error().Err(err).Str("file", name).Msg("tailocal")
			_ = output.Flush()
			return exitFailure
		}
	}
	return 0
}
