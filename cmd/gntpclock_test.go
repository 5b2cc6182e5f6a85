package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/tai64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNTPConstants(t *testing.T) {
	assert.True(t, ntpEpoch.Equal(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, mode(0), reserved)
	assert.Equal(t, mode(3), client)
	assert.Equal(t, mode(4), server)
}

func TestNTPTimeDuration(t *testing.T) {
	tests := []struct {
		name     string
		ntpTime  ntpTime
		expected time.Duration
	}{
		{"zero", 0, 0},
		{"one second", 1 << 32, time.Second},
		{"half second", 1 << 31, 500 * time.Millisecond},
		{"two seconds", 2 << 32, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, float64(tt.expected), float64(tt.ntpTime.duration()), float64(time.Microsecond))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"ntp epoch", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"recent time", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"fraction", time.Date(2017, 1, 1, 0, 0, 0, 250000000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := encode(tt.time).decode()
			assert.Less(t, decoded.Sub(tt.time).Abs(), time.Microsecond)
		})
	}

	assert.Equal(t, ntpTime(0), encode(ntpEpoch))
	assert.Equal(t, ntpTime(2208988800)<<32, encode(time.Unix(0, 0)))
}

func TestNTPTimeSub(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	diff := encode(base.Add(5 * time.Second)).sub(encode(base))
	assert.InDelta(t, float64(5*time.Second), float64(diff), float64(time.Microsecond))
}

func TestMsgFields(t *testing.T) {
	m := &msg{}
	m.setVersion(4)
	m.setMode(client)
	assert.Equal(t, byte(4), (m.LiVnMode>>3)&0x7)
	assert.Equal(t, byte(client), m.LiVnMode&0x7)
	assert.Equal(t, leapNone, m.leap())

	m.setVersion(3)
	m.setMode(server)
	assert.Equal(t, byte(3), (m.LiVnMode>>3)&0x7)
	assert.Equal(t, byte(server), m.LiVnMode&0x7)

	m.LiVnMode |= byte(leapInsert) << 6
	assert.Equal(t, leapInsert, m.leap())
	assert.Equal(t, byte(3), (m.LiVnMode>>3)&0x7)
	assert.Equal(t, "insert", m.leap().String())
}

func TestGetParams(t *testing.T) {
	now := time.Now()
	m := msg{
		OriginateTime: encode(now),                            // T1
		ReceiveTime:   encode(now.Add(10 * time.Millisecond)), // T2
		TransmitTime:  encode(now.Add(20 * time.Millisecond)), // T3
	}
	dest := encode(now.Add(30 * time.Millisecond)) // T4

	// offset = ((T2-T1) + (T3-T4))/2 = 0, rtt = (T4-T1) - (T3-T2) = 20ms
	offset, rtt := getParams(m, dest)
	assert.InDelta(t, 0, float64(offset), float64(time.Millisecond))
	assert.InDelta(t, float64(20*time.Millisecond), float64(rtt), float64(time.Millisecond))
}

func TestNextLeapBoundary(t *testing.T) {
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		nextLeapBoundary(time.Date(2016, 12, 31, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC),
		nextLeapBoundary(time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTableKnowsLeap(t *testing.T) {
	tbl := leapsecs.Builtin()
	dec2016 := time.Date(2016, 12, 31, 12, 0, 0, 0, time.UTC)
	nov2016 := time.Date(2016, 11, 30, 12, 0, 0, 0, time.UTC)

	assert.True(t, tableKnowsLeap(tbl, leapInsert, dec2016))
	assert.False(t, tableKnowsLeap(tbl, leapDelete, dec2016))
	assert.False(t, tableKnowsLeap(tbl, leapInsert, nov2016))
	assert.True(t, tableKnowsLeap(tbl, leapNone, nov2016))
	assert.True(t, tableKnowsLeap(tbl, leapUnsynchronized, nov2016))
}

func TestReportNTP(t *testing.T) {
	conv := tai64.NewConverter(leapsecs.Builtin())
	var buf bytes.Buffer
	reportNTP(&buf, conv, msg{LiVnMode: byte(leapInsert) << 6}, 0, time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Leap    insert\n")
	assert.Contains(t, out, "TAI-UTC 37\n")
	assert.Contains(t, out, "TAI64N  @4000")
}

// fakeNTPServer answers one client request with the leap indicator li
func fakeNTPServer(t *testing.T, li leapIndicator) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 48)
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil || n != 48 {
			return
		}
		var req msg
		if binary.Read(bytes.NewReader(buf), binary.BigEndian, &req) != nil {
			return
		}
		now := encode(time.Now())
		resp := msg{
			Stratum:       1,
			OriginateTime: req.TransmitTime,
			ReceiveTime:   now,
			TransmitTime:  now,
		}
		resp.setVersion(4)
		resp.setMode(server)
		resp.LiVnMode |= byte(li) << 6

		var out bytes.Buffer
		_ = binary.Write(&out, binary.BigEndian, &resp)
		_, _ = conn.WriteToUDP(out.Bytes(), raddr)
	}()
	return conn.LocalAddr().String()
}

func TestGetTime(t *testing.T) {
	addr := fakeNTPServer(t, leapInsert)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, dst, err := getTime(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, leapInsert, m.leap())
	assert.Equal(t, byte(1), m.Stratum)

	offset, rtt := getParams(m, dst)
	assert.Less(t, offset.Abs(), 100*time.Millisecond)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
}

func TestParseClockArgsNTP(t *testing.T) {
	_, _, err := parseClockArgs([]string{"not-an-ip"})
	assert.Error(t, err)
	assert.Equal(t, exitFailure, GNTPClockRun([]string{}))
}

func BenchmarkEncode(b *testing.B) {
	now := time.Now()
	for i := 0; i < b.N; i++ {
		encode(now)
	}
}

func BenchmarkNTPTimeDecode(b *testing.B) {
	nt := encode(time.Now())
	for i := 0; i < b.N; i++ {
		nt.decode()
	}
}
