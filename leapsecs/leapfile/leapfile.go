// Package leapfile reads the IETF/NIST leap-seconds.list format and turns
// it into a leapsecs.Table.
//
// Data lines carry an NTP timestamp (seconds since 1900-01-01 UTC) and the
// TAI-UTC count that takes effect at that instant. Special comment lines
// carry the last update (#$), the expiration (#@) and a SHA-1 of the data
// (#h).
package leapfile

import (
	"bufio"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/karasz/gtleap/leapsecs"
	"github.com/rs/zerolog/log"
)

// NTPOffset is the number of seconds between 1900-01-01 and 1970-01-01 UTC
const NTPOffset = int64(2208988800)

var (
	// ErrSyntax is returned for lines that cannot be parsed
	ErrSyntax = errors.New("leap-seconds.list syntax error")
	// ErrNoHash is returned by Verify when the file has no #h line
	ErrNoHash = errors.New("leap-seconds.list has no hash")
	// ErrHashMismatch is returned by Verify when the data does not match #h
	ErrHashMismatch = errors.New("leap-seconds.list hash mismatch")
)

// File is a parsed leap-seconds.list
type File struct {
	Updated time.Time
	Expires time.Time
	Entries []leapsecs.Entry
	Hash    []uint32

	updatedRaw string
	expiresRaw string
	dataRaw    []string
}

// NTPToUnix converts NTP seconds to POSIX seconds
func NTPToUnix(ntp int64) int64 {
	return ntp - NTPOffset
}

// Parse reads a leap-seconds.list from r. Entries keep the file order.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		if line[0] == '#' {
			err = f.parseSpecial(line)
		} else {
			err = f.parseData(line)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrSyntax, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("%w: no data lines", ErrSyntax)
	}
	return f, nil
}

func (f *File) parseData(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("want timestamp and count, got %q", line)
	}

	ntp, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return err
	}

	f.Entries = append(f.Entries, leapsecs.Entry{Epoch: NTPToUnix(ntp), Count: count})
	f.dataRaw = append(f.dataRaw, fields[0]+fields[1])
	return nil
}

func (f *File) parseSpecial(line string) error {
	if len(line) < 2 {
		return nil
	}
	value := strings.TrimSpace(line[2:])

	switch line[1] {
	case '$':
		t, err := parseNTPTime(value)
		if err != nil {
			return err
		}
		f.Updated, f.updatedRaw = t, value
	case '@':
		t, err := parseNTPTime(value)
		if err != nil {
			return err
		}
		f.Expires, f.expiresRaw = t, value
	case 'h':
		words := strings.Fields(value)
		hash := make([]uint32, 0, len(words))
		for _, w := range words {
			x, err := strconv.ParseUint(w, 16, 32)
			if err != nil {
				return err
			}
			hash = append(hash, uint32(x))
		}
		f.Hash = hash
	}
	return nil
}

func parseNTPTime(s string) (time.Time, error) {
	ntp, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(NTPToUnix(ntp), 0).UTC(), nil
}

// Verify recomputes the SHA-1 over the digits of the #$, #@ and data
// lines and compares it with the #h line.
func (f *File) Verify() error {
	if len(f.Hash) == 0 {
		return ErrNoHash
	}

	var b strings.Builder
	b.WriteString(f.updatedRaw)
	b.WriteString(f.expiresRaw)
	for _, d := range f.dataRaw {
		b.WriteString(d)
	}
	sum := sha1.Sum([]byte(b.String()))

	if len(f.Hash) != len(sum)/4 {
		return fmt.Errorf("%w: %d hash words", ErrHashMismatch, len(f.Hash))
	}
	for i, w := range f.Hash {
		if binary.BigEndian.Uint32(sum[i*4:]) != w {
			return fmt.Errorf("%w: computed %x", ErrHashMismatch, sum)
		}
	}
	return nil
}

// Expired reports whether the file is past its #@ date. Files without an
// expiration never expire.
func (f *File) Expired(now time.Time) bool {
	return !f.Expires.IsZero() && !now.Before(f.Expires)
}

// Table builds the leap second table and checks that it starts at the
// 1972-01-01 introduction of leap seconds.
func (f *File) Table() (*leapsecs.Table, error) {
	tbl, err := leapsecs.New(f.Entries)
	if err != nil {
		return nil, err
	}
	if err := leapsecs.ValidateIERS(tbl); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Read parses, verifies and builds a table from r. A missing hash is
// tolerated, a wrong one is not.
func Read(r io.Reader) (*leapsecs.Table, *File, error) {
	f, err := Parse(r)
	if err != nil {
		return nil, nil, err
	}

	if err := f.Verify(); err != nil {
		if !errors.Is(err, ErrNoHash) {
			return nil, nil, err
		}
		log.Warn().Msg("leap-seconds.list carries no hash, skipping verification")
	}
	if f.Expired(time.Now()) {
		log.Warn().Time("expires", f.Expires).
			Msg("leap-seconds.list is expired, counts after the last entry may be stale")
	}

	tbl, err := f.Table()
	if err != nil {
		return nil, nil, err
	}
	return tbl, f, nil
}

// Load reads a leap-seconds.list from path
func Load(path string) (*leapsecs.Table, *File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = file.Close() }()

	tbl, f, err := Read(file)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).
		Int("entries", tbl.Len()).
		Time("updated", f.Updated).
		Msg("loaded leap second table")
	return tbl, f, nil
}
