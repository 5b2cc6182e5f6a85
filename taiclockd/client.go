package taiclockd

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/karasz/gtleap/tai64"
)

const (
	// QueryLength is the size of requests sent by Query
	QueryLength = 28
	// DefaultQueryTimeout applies when ctx has no deadline
	DefaultQueryTimeout = 5 * time.Second

	nonceOffset = 20
)

// ErrBadResponse is returned for replies that do not answer our request
var ErrBadResponse = errors.New("taiclockd: bad response")

// Result is the outcome of Query
type Result struct {
	// Server is the server time, in UTC, at the moment the reply arrived
	Server time.Time
	// Offset is Server minus the local clock
	Offset time.Duration
	// RTT is the round trip of the sample Server was taken from
	RTT time.Duration
}

func newQuery(conv *tai64.Converter) ([]byte, error) {
	query := make([]byte, QueryLength)
	copy(query, RequestMagic)
	copy(query[4:], conv.Now().Pack())
	if _, err := rand.Read(query[nonceOffset:]); err != nil {
		return nil, err
	}
	return query, nil
}

func decodeResponse(query, resp []byte) (tai64.TAIN, error) {
	if len(resp) != len(query) || resp[0] != ResponseHeader {
		return tai64.TAIN{}, fmt.Errorf("%w: %d bytes, header %q", ErrBadResponse, len(resp), resp[:min(1, len(resp))])
	}
	if !bytes.Equal(resp[nonceOffset:], query[nonceOffset:]) {
		return tai64.TAIN{}, fmt.Errorf("%w: nonce mismatch", ErrBadResponse)
	}
	return tai64.UnpackTAIN(resp[4:])
}

// Query asks the taiclock server at addr for its time rounds times and
// keeps the sample with the shortest round trip, corrected by half of it.
func Query(ctx context.Context, addr string, conv *tai64.Converter, rounds int) (Result, error) {
	if rounds <= 0 {
		rounds = 1
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultQueryTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Result{}, err
	}

	var best Result
	resp := make([]byte, QueryLength+1)
	for i := 0; i < rounds; i++ {
		query, err := newQuery(conv)
		if err != nil {
			return Result{}, err
		}

		t0 := time.Now()
		if _, err := conn.Write(query); err != nil {
			return Result{}, err
		}
		n, err := conn.Read(resp)
		if err != nil {
			return Result{}, err
		}
		t1 := time.Now()

		label, err := decodeResponse(query, resp[:n])
		if err != nil {
			return Result{}, err
		}
		rtt := t1.Sub(t0)
		if i == 0 || rtt < best.RTT {
			server := conv.Time(label).Add(rtt / 2)
			best = Result{Server: server, Offset: server.Sub(t1), RTT: rtt}
		}
	}
	return best, nil
}
