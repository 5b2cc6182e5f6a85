package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/leapsecs/leapfile"
	"github.com/karasz/gtleap/tai64"
	"github.com/rs/zerolog/log"
)

type mode byte
type ntpTime uint64

const (
	reserved mode = 0 + iota
	symmetricActive
	symmetricPassive
	client
	server
	broadcast
	controlMessage
	reservedPrivate
)

// leapIndicator is the two bit LI field of an NTP header
type leapIndicator byte

const (
	leapNone leapIndicator = iota
	leapInsert
	leapDelete
	leapUnsynchronized
)

func (li leapIndicator) String() string {
	switch li {
	case leapNone:
		return "none"
	case leapInsert:
		return "insert"
	case leapDelete:
		return "delete"
	default:
		return "unsynchronized"
	}
}

const nanoPerSec = 1e9

var ntpEpoch = time.Unix(-leapfile.NTPOffset, 0).UTC()

// duration interprets the fixed-point ntpTime as a number of elapsed seconds
func (t ntpTime) duration() time.Duration {
	sec := (t >> 32) * nanoPerSec
	frac := (t & 0xffffffff) * nanoPerSec >> 32
	return time.Duration(sec + frac)
}

// decode interprets the fixed-point ntpTime and returns a time.Time
func (t ntpTime) decode() time.Time {
	return ntpEpoch.Add(t.duration())
}

// encode encodes a time.Time in a ntpTime format
func encode(t time.Time) ntpTime {
	nsec := uint64(t.Sub(ntpEpoch))
	sec := nsec / nanoPerSec
	frac := (nsec - sec*nanoPerSec) << 32 / nanoPerSec
	return ntpTime(sec<<32 | frac)
}

func (t ntpTime) sub(tt ntpTime) time.Duration {
	return t.decode().Sub(tt.decode())
}

type msg struct {
	LiVnMode       byte // Leap Indicator (2) + Version (3) + Mode (3)
	Stratum        byte
	Poll           byte
	Precision      byte
	RootDelay      uint32
	RootDispersion uint32
	ReferenceID    uint32
	ReferenceTime  ntpTime
	OriginateTime  ntpTime
	ReceiveTime    ntpTime
	TransmitTime   ntpTime
}

func (m *msg) setVersion(v byte) {
	m.LiVnMode = (m.LiVnMode & 0xc7) | v<<3
}

func (m *msg) setMode(md mode) {
	m.LiVnMode = (m.LiVnMode & 0xf8) | byte(md)
}

func (m *msg) leap() leapIndicator {
	return leapIndicator(m.LiVnMode >> 6)
}

// getTime queries the NTP server at addr in client mode. It returns the
// reply and the time it arrived.
func getTime(ctx context.Context, addr string) (msg, ntpTime, error) {
	var d net.Dialer
	con, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return msg{}, 0, err
	}
	defer func() { _ = con.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := con.SetDeadline(deadline); err != nil {
		return msg{}, 0, err
	}

	m := new(msg)
	m.setMode(client)
	m.setVersion(4)
	m.TransmitTime = encode(time.Now())

	if err := binary.Write(con, binary.BigEndian, m); err != nil {
		return msg{}, 0, err
	}
	if err := binary.Read(con, binary.BigEndian, m); err != nil {
		return msg{}, 0, err
	}

	return *m, encode(time.Now()), nil
}

// getParams returns the time offset and the round trip time
func getParams(m msg, dest ntpTime) (offset time.Duration, rtt time.Duration) {
	t1 := m.OriginateTime
	t2 := m.ReceiveTime
	t3 := m.TransmitTime
	t4 := dest
	offset = (t2.sub(t1) + t3.sub(t4)) / 2
	rtt = t4.sub(t1) - t3.sub(t2)
	return offset, rtt
}

// nextLeapBoundary is the end of the UTC month containing t, where an
// announced leap second would take effect
func nextLeapBoundary(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// tableKnowsLeap reports whether tbl carries the leap second li announces
// for the end of the month containing at. Indicators that announce nothing
// are always consistent.
func tableKnowsLeap(tbl *leapsecs.Table, li leapIndicator, at time.Time) bool {
	b := nextLeapBoundary(at).Unix()
	step := tbl.CountUnix(b) - tbl.CountUnix(b-1)
	switch li {
	case leapInsert:
		return step == 1
	case leapDelete:
		return step == -1
	default:
		return true
	}
}

// reportNTP prints what the server said next to what the table says
func reportNTP(w io.Writer, conv *tai64.Converter, m msg, offset, rtt time.Duration) {
	serverTime := time.Now().Add(offset).UTC()
	_, _ = fmt.Fprintln(w, "System time", time.Now().Round(0))
	_, _ = fmt.Fprintln(w, "Offset ", offset, "RTT ", rtt)
	_, _ = fmt.Fprintln(w, "Leap   ", m.leap())
	_, _ = fmt.Fprintln(w, "TAI-UTC", conv.Table().CountAt(serverTime))
	_, _ = fmt.Fprintln(w, "TAI64N ", conv.FromTime(serverTime))
}

// GNTPClockRun queries an SNTP server, reports the offset and compares the
// server's leap indicator with the leap second table.
func GNTPClockRun(args []string) int {
	fs := newFlagSet("gntpclock")
	port := fs.String("port", "123", "server port")
	timeout := fs.Duration("timeout", 5*time.Second, "query timeout")

	_, tbl, err := setup(fs, args)
	if err != nil {
		log.Error().Err(err).Msg("gntpclock")
		return exitFailure
	}
	servIP, saveClock, err := parseClockArgs(fs.Args())
	if err != nil {
		log.Error().Err(err).Msg("gntpclock")
		return exitFailure
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m, dst, err := getTime(ctx, net.JoinHostPort(servIP.String(), *port))
	if err != nil {
		log.Error().Err(err).Msg("gntpclock")
		return exitFailure
	}

	offset, rtt := getParams(m, dst)
	li := m.leap()
	if !tableKnowsLeap(tbl, li, dst.decode()) {
		log.Warn().
			Stringer("leap", li).
			Time("boundary", nextLeapBoundary(dst.decode())).
			Msg("server leap indicator disagrees with the leap second table")
	}
	reportNTP(os.Stdout, tai64.NewConverter(tbl), m, offset, rtt)

	if saveClock {
		if err := setSystemClockTime(time.Now().Add(offset)); err != nil {
			log.Error().Err(err).Msg("cannot set the system clock")
			return exitFailure
		}
	}
	return 0
}
