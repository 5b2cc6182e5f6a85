// Package tai64 converts between UTC and TAI64/TAI64N labels as defined by
// libtai (http://cr.yp.to/libtai/tai64.html).
//
// A TAI64 label is 2^62 plus the number of TAI seconds since
// 1970-01-01 00:00:10 TAI. Since TAI-UTC was 10s at the start of the leap
// second system, the label of a POSIX second u is 2^62 + u + (TAI-UTC at u).
package tai64

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/karasz/glibtai"
	"github.com/karasz/gtleap/leapsecs"
)

// Base is 2^62, the label of 1970-01-01 00:00:00 TAI
const Base = uint64(1) << 62

// TAILength is the length of a packed TAI64 label
const TAILength = 8

// TAINLength is the length of a packed TAI64N label
const TAINLength = 12

var (
	// ErrShortBuffer is returned when unpacking fewer bytes than a label needs
	ErrShortBuffer = errors.New("tai64: short buffer")
	// ErrLabel is returned for malformed external @hex labels
	ErrLabel = errors.New("tai64: invalid label")
)

// TAI is a TAI64 label
type TAI struct {
	Sec uint64
}

// TAIN is a TAI64N label
type TAIN struct {
	Sec  uint64
	Nano uint32
}

// Pack packs a TAI64 label in big endian order
func (t TAI) Pack() []byte {
	result := make([]byte, TAILength)
	binary.BigEndian.PutUint64(result, t.Sec)
	return result
}

// UnpackTAI unpacks a TAI64 label from the first TAILength bytes of b
func UnpackTAI(b []byte) (TAI, error) {
	if len(b) < TAILength {
		return TAI{}, fmt.Errorf("%w: %d bytes", ErrShortBuffer, len(b))
	}
	return TAI{Sec: binary.BigEndian.Uint64(b)}, nil
}

// Pack packs a TAI64N label in big endian order
func (t TAIN) Pack() []byte {
	result := make([]byte, TAINLength)
	binary.BigEndian.PutUint64(result, t.Sec)
	binary.BigEndian.PutUint32(result[TAILength:], t.Nano)
	return result
}

// UnpackTAIN unpacks a TAI64N label from the first TAINLength bytes of b
func UnpackTAIN(b []byte) (TAIN, error) {
	if len(b) < TAINLength {
		return TAIN{}, fmt.Errorf("%w: %d bytes", ErrShortBuffer, len(b))
	}
	return TAIN{
		Sec:  binary.BigEndian.Uint64(b),
		Nano: binary.BigEndian.Uint32(b[TAILength:]),
	}, nil
}

// TAI drops the nanoseconds
func (t TAIN) TAI() TAI {
	return TAI{Sec: t.Sec}
}

func (t TAI) String() string {
	return glibtai.TAIUnpack(t.Pack()).String()
}

func (t TAIN) String() string {
	return glibtai.TAINUnpack(t.Pack()).String()
}

// ParseTAI parses an external TAI64 label such as @4000000037c219bf
func ParseTAI(s string) (TAI, error) {
	if len(s) != 1+2*TAILength {
		return TAI{}, fmt.Errorf("%w: %q has length %d", ErrLabel, s, len(s))
	}
	t, err := glibtai.TAIfromString(s)
	if err != nil {
		return TAI{}, fmt.Errorf("%w: %v", ErrLabel, err)
	}
	return UnpackTAI(glibtai.TAIPack(t))
}

// ParseTAIN parses an external TAI64N label such as @4000000037c219bf2ef02e94
func ParseTAIN(s string) (TAIN, error) {
	if len(s) != 1+2*TAINLength {
		return TAIN{}, fmt.Errorf("%w: %q has length %d", ErrLabel, s, len(s))
	}
	t, err := glibtai.TAINfromString(s)
	if err != nil {
		return TAIN{}, fmt.Errorf("%w: %v", ErrLabel, err)
	}
	return UnpackTAIN(glibtai.TAINPack(t))
}

// Converter maps UTC to TAI labels and back using a leap second table
type Converter struct {
	table *leapsecs.Table
}

// NewConverter returns a Converter backed by tbl
func NewConverter(tbl *leapsecs.Table) *Converter {
	return &Converter{table: tbl}
}

// Table returns the leap second table in use
func (c *Converter) Table() *leapsecs.Table {
	return c.table
}

// Now returns the current time as a TAI64N label
func (c *Converter) Now() TAIN {
	return c.FromTime(time.Now())
}

// FromTime returns the TAI64N label of t
func (c *Converter) FromTime(t time.Time) TAIN {
	sec := t.Unix()
	return TAIN{
		Sec:  Base + uint64(sec+int64(c.table.CountUnix(sec))),
		Nano: uint32(t.Nanosecond()),
	}
}

// TAIFromTime returns the TAI64 label of t
func (c *Converter) TAIFromTime(t time.Time) TAI {
	return c.FromTime(t).TAI()
}

// Time returns the UTC time of a TAI64N label. An inserted leap second has
// no POSIX representation and maps onto the second before it.
func (c *Converter) Time(t TAIN) time.Time {
	return time.Unix(c.unix(int64(t.Sec-Base)), int64(t.Nano)).UTC()
}

// TAITime returns the UTC time of a TAI64 label
func (c *Converter) TAITime(t TAI) time.Time {
	return time.Unix(c.unix(int64(t.Sec-Base)), 0).UTC()
}

// unix returns the largest POSIX second u with u + count(u) <= tai
func (c *Converter) unix(tai int64) int64 {
	u := tai - int64(c.table.CountUnix(tai-int64(c.table.CountUnix(tai))))
	if u+int64(c.table.CountUnix(u)) > tai {
		u--
	}
	return u
}
