// Package taiclockd serves TAI64N time over UDP.
//
// TAICLOCK protocol, as in DJB's clockspeed taiclockd:
//
//	Request (at least 20 bytes):
//	  Bytes 0-3:   "ctai"
//	  Bytes 4-19+: client data, echoed back
//	Response (same length as the request):
//	  Byte  0:     's'
//	  Bytes 1-3:   copied from the request
//	  Bytes 4-15:  TAI64N label (big endian seconds, nanoseconds)
//	  Bytes 16-:   copied from the request
//
// The label is computed from the system clock (UTC) with the leap second
// table, so TAI = UTC + TAI-UTC at the time of the reply.
package taiclockd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/karasz/gtleap/tai64"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultAddr is the standard taiclock port
	DefaultAddr = ":4014"
	// DefaultMaxConcurrentResponses bounds in-flight responses
	DefaultMaxConcurrentResponses = 500
	// DefaultMaxRequestSize is the largest datagram answered
	DefaultMaxRequestSize = 64
	// DefaultMaxRequestsPerIP is the per-IP budget within one window
	DefaultMaxRequestsPerIP = 100
	// DefaultRateLimitWindow is the rate limiting window
	DefaultRateLimitWindow = time.Second
	// DefaultReadTimeout bounds each read so shutdown is noticed
	DefaultReadTimeout = 100 * time.Millisecond

	// RequestLength is the minimum request size
	RequestLength = 20
	// ResponseHeader is the first byte of every response
	ResponseHeader = 's'
)

// RequestMagic starts every request
var RequestMagic = []byte("ctai")

// ErrNoTable is returned when a server is created without a leap second table
var ErrNoTable = errors.New("taiclockd: no leap second table")

// Config holds server settings
type Config struct {
	Addr string `env:"ADDR" yaml:"addr"`
	// ConfigDir holds clientok files and an optional "port" file
	ConfigDir              string        `env:"CONFIGDIR" yaml:"configDir"`
	MaxConcurrentResponses int           `env:"MAXCONCURRENTRESPONSES" yaml:"maxConcurrentResponses"`
	MaxRequestSize         int           `env:"MAXREQUESTSIZE" yaml:"maxRequestSize"`
	MaxRequestsPerIP       int           `env:"MAXREQUESTSPERIP" yaml:"maxRequestsPerIP"`
	RateLimitWindow        time.Duration `env:"RATELIMITWINDOW" yaml:"rateLimitWindow"`
	ReadTimeout            time.Duration `env:"READTIMEOUT" yaml:"readTimeout"`
}

// Defaults returns the default server settings
func Defaults() Config {
	return Config{
		Addr:                   DefaultAddr,
		MaxConcurrentResponses: DefaultMaxConcurrentResponses,
		MaxRequestSize:         DefaultMaxRequestSize,
		MaxRequestsPerIP:       DefaultMaxRequestsPerIP,
		RateLimitWindow:        DefaultRateLimitWindow,
		ReadTimeout:            DefaultReadTimeout,
	}
}

func (c *Config) setDefaults() {
	d := Defaults()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxConcurrentResponses <= 0 {
		c.MaxConcurrentResponses = d.MaxConcurrentResponses
	}
	if c.MaxRequestSize < RequestLength {
		c.MaxRequestSize = d.MaxRequestSize
	}
	if c.MaxRequestsPerIP <= 0 {
		c.MaxRequestsPerIP = d.MaxRequestsPerIP
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = d.RateLimitWindow
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
}

// Server answers TAICLOCK requests
type Server struct {
	conn      *net.UDPConn
	conv      *tai64.Converter
	config    Config
	semaphore chan struct{}
	limits    *cache.Cache
	wg        sync.WaitGroup
}

// NewServer binds the UDP socket. It fails when conv carries no table so
// that the service never answers with unknown TAI-UTC.
func NewServer(config Config, conv *tai64.Converter) (*Server, error) {
	if conv == nil || conv.Table() == nil {
		return nil, ErrNoTable
	}
	config.setDefaults()

	addr := config.listenAddr()
	servAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", servAddr)
	if err != nil {
		if strings.Contains(err.Error(), "permission denied") {
			return nil, fmt.Errorf(
				"permission denied binding to %s - try running as root or use a port >= 1024", addr)
		}
		return nil, err
	}

	return &Server{
		conn:      conn,
		conv:      conv,
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrentResponses),
		limits:    cache.New(config.RateLimitWindow, 2*config.RateLimitWindow),
	}, nil
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the socket, which also ends Serve
func (s *Server) Close() error {
	return s.conn.Close()
}

// Serve answers requests until ctx is done or the socket is closed. It
// returns once in-flight responses are written.
func (s *Server) Serve(ctx context.Context) error {
	defer s.wg.Wait()

	buf := make([]byte, s.config.MaxRequestSize+1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		n, raddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
			case errors.Is(err, net.ErrClosed):
				return nil
			default:
				log.Debug().Err(err).Msg("read failed")
			}
			continue
		}
		s.process(buf[:n], raddr)
	}
}

// process runs the cheap checks inline and answers in a goroutine
func (s *Server) process(req []byte, raddr *net.UDPAddr) {
	if !s.allow(raddr.IP.String()) {
		log.Trace().Stringer("client", raddr).Msg("rate limited")
		return
	}
	if !s.valid(req) || !s.config.ClientOK(raddr.IP) {
		return
	}

	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Debug().Stringer("client", raddr).Msg("too many responses in flight, dropping")
		return
	}

	resp := make([]byte, len(req))
	copy(resp, req)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.semaphore }()
		s.respond(resp, raddr)
	}()
}

func (s *Server) valid(req []byte) bool {
	if len(req) < RequestLength || len(req) > s.config.MaxRequestSize {
		return false
	}
	return string(req[:len(RequestMagic)]) == string(RequestMagic)
}

// allow implements a fixed window per IP
func (s *Server) allow(ip string) bool {
	if err := s.limits.Add(ip, 1, s.config.RateLimitWindow); err == nil {
		return true
	}
	n, err := s.limits.IncrementInt(ip, 1)
	if err != nil {
		// expired between Add and IncrementInt
		s.limits.Set(ip, 1, s.config.RateLimitWindow)
		return true
	}
	return n <= s.config.MaxRequestsPerIP
}

func (s *Server) respond(resp []byte, raddr *net.UDPAddr) {
	resp[0] = ResponseHeader
	copy(resp[4:4+tai64.TAINLength], s.conv.Now().Pack())
	// UDP is best effort
	if _, err := s.conn.WriteToUDP(resp, raddr); err != nil {
		log.Debug().Err(err).Stringer("client", raddr).Msg("write failed")
	}
}
