package taiclockd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/tai64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()
	if config.Addr == "" {
		config.Addr = "127.0.0.1:0"
	}
	srv, err := NewServer(config, tai64.NewConverter(leapsecs.Builtin()))
	require.NoError(t, err)
	return srv
}

func serve(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return")
		}
	})
}

func TestNewServerNoTable(t *testing.T) {
	_, err := NewServer(Defaults(), nil)
	assert.ErrorIs(t, err, ErrNoTable)

	_, err = NewServer(Defaults(), tai64.NewConverter(nil))
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestNewServerDefaults(t *testing.T) {
	srv := newTestServer(t, Config{})
	defer func() { _ = srv.Close() }()

	assert.Equal(t, DefaultMaxConcurrentResponses, cap(srv.semaphore))
	assert.Equal(t, DefaultMaxRequestSize, srv.config.MaxRequestSize)
	assert.Equal(t, DefaultMaxRequestsPerIP, srv.config.MaxRequestsPerIP)
	assert.Equal(t, DefaultRateLimitWindow, srv.config.RateLimitWindow)
	assert.Equal(t, DefaultReadTimeout, srv.config.ReadTimeout)
	assert.NotNil(t, srv.Addr())
}

func TestServerRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{MaxRequestsPerIP: 3, RateLimitWindow: 50 * time.Millisecond})
	defer func() { _ = srv.Close() }()

	for i := 0; i < 3; i++ {
		assert.True(t, srv.allow("192.0.2.1"), "request %d", i)
	}
	assert.False(t, srv.allow("192.0.2.1"))
	assert.True(t, srv.allow("192.0.2.2"))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, srv.allow("192.0.2.1"))
}

func TestServerValid(t *testing.T) {
	srv := newTestServer(t, Config{})
	defer func() { _ = srv.Close() }()

	long := make([]byte, DefaultMaxRequestSize+1)
	copy(long, RequestMagic)

	tests := []struct {
		name string
		req  []byte
		want bool
	}{
		{"minimal", append([]byte("ctai"), make([]byte, 16)...), true},
		{"query length", append([]byte("ctai"), make([]byte, 24)...), true},
		{"too short", append([]byte("ctai"), make([]byte, 15)...), false},
		{"wrong magic", append([]byte("ntai"), make([]byte, 16)...), false},
		{"too long", long, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, srv.valid(tt.req), tt.name)
	}
}

func TestServeAndQuery(t *testing.T) {
	srv := newTestServer(t, Config{})
	serve(t, srv)

	conv := tai64.NewConverter(leapsecs.Builtin())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := Query(ctx, srv.Addr().String(), conv, 3)
	require.NoError(t, err)
	assert.Less(t, res.Offset.Abs(), time.Second)
	assert.GreaterOrEqual(t, res.RTT, time.Duration(0))
	assert.WithinDuration(t, time.Now(), res.Server, time.Second)
}

func TestServeRawResponse(t *testing.T) {
	srv := newTestServer(t, Config{})
	serve(t, srv)

	conn, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	req := append([]byte("ctai"), make([]byte, 16)...)
	req[19] = 0x42
	_, err = conn.Write(req)
	require.NoError(t, err)

	resp := make([]byte, 64)
	n, err := conn.Read(resp)
	require.NoError(t, err)
	require.Equal(t, len(req), n)
	assert.Equal(t, byte(ResponseHeader), resp[0])
	assert.Equal(t, []byte("tai"), resp[1:4])
	assert.Equal(t, byte(0x42), resp[19])

	label, err := tai64.UnpackTAIN(resp[4:])
	require.NoError(t, err)
	// TAI runs 37s ahead of UTC since 2017
	diff := int64(label.Sec-tai64.Base) - (time.Now().Unix() + 37)
	assert.LessOrEqual(t, diff, int64(1))
	assert.GreaterOrEqual(t, diff, int64(-1))
}

func TestDecodeResponse(t *testing.T) {
	conv := tai64.NewConverter(leapsecs.Builtin())
	query, err := newQuery(conv)
	require.NoError(t, err)
	require.Len(t, query, QueryLength)
	assert.Equal(t, RequestMagic, query[:4])

	resp := make([]byte, len(query))
	copy(resp, query)
	resp[0] = ResponseHeader
	_, err = decodeResponse(query, resp)
	assert.NoError(t, err)

	resp[nonceOffset] ^= 0xff
	_, err = decodeResponse(query, resp)
	assert.ErrorIs(t, err, ErrBadResponse)

	_, err = decodeResponse(query, resp[:10])
	assert.ErrorIs(t, err, ErrBadResponse)

	_, err = decodeResponse(query, query)
	assert.ErrorIs(t, err, ErrBadResponse)
}
