package ircstate

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.sr.ht/~taiite/ircstate/irc"
	"git.sr.ht/~taiite/ircstate/state"
)

const (
	eventChanSize = 64

	reconnectDelay = 10 * time.Second
	retryDelay     = time.Minute
)

// Event is something that happened on the connection of a Client.
//
// Content is nil when Session has just been created, and when its connection
// was lost.  Session is closed in the latter case.  In debug mode, received
// lines come as irc.RawMessageEvent before the events they cause.
type Event struct {
	Session *irc.Session
	Content irc.Event
}

// Client maintains a connection to an IRC server, and keeps the state of the
// current session up to date.
type Client struct {
	cfg    Config
	logger *slog.Logger
	reg    prometheus.Registerer
	events chan Event
}

// NewClient returns a client for the given configuration.  logger and reg may
// be nil.
func NewClient(cfg Config, logger *slog.Logger, reg prometheus.Registerer) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		reg:    reg,
		events: make(chan Event, eventChanSize),
	}
}

// Events returns the channel events are sent to.  It is closed when Run
// returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) sessionParams() irc.SessionParams {
	params := irc.SessionParams{
		Nickname:   c.cfg.Nick,
		Username:   c.cfg.User,
		RealName:   c.cfg.Real,
		ListModes:  c.cfg.TrackModes,
		Logger:     c.logger,
		Registerer: c.reg,
	}
	if c.cfg.Password != nil {
		params.Password = *c.cfg.Password
	}
	if c.cfg.WhoInterval > 0 {
		params.TrackerOptions = append(params.TrackerOptions, state.WithWhoInterval(c.cfg.WhoInterval))
	}
	return params
}

// Run connects to the server and handles its messages, reconnecting when the
// connection is lost, until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	params := c.sessionParams()
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			return err
		}

		in, out := irc.ChanInOut(conn, c.logger)
		if c.cfg.Debug {
			out.OnSend = func(line string) {
				c.logger.Debug("sent", "line", line)
			}
		}
		session, err := irc.NewSession(out, params)
		if err != nil {
			out.Close()
			return err
		}
		c.events <- Event{Session: session}

		stop := context.AfterFunc(ctx, out.Close)
		c.handleSession(session, in)
		stop()
		session.Close()
		c.events <- Event{Session: session}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Info("connection lost", "addr", c.cfg.Addr)
		if !sleep(ctx, reconnectDelay) {
			return ctx.Err()
		}
	}
}

func (c *Client) handleSession(session *irc.Session, in <-chan irc.Message) {
	for msg := range in {
		if c.cfg.Debug {
			c.events <- Event{Session: session, Content: irc.RawMessageEvent{Message: msg.String()}}
		}
		ev := session.Handle(msg)
		if _, ok := ev.(irc.RegisteredEvent); ok {
			for _, channel := range c.cfg.Channels {
				session.Join(channel, "")
			}
		}
		if ev != nil {
			c.events <- Event{Session: session, Content: ev}
		}
	}
}

// connect tries to connect until it succeeds or ctx is done.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	for {
		c.logger.Info("connecting", "addr", c.cfg.Addr)
		conn, err := c.tryConnect(ctx)
		if err == nil {
			return conn, nil
		}
		c.logger.Warn("connection failed", "addr", c.cfg.Addr, "err", err)
		if !sleep(ctx, retryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (c *Client) tryConnect(ctx context.Context) (conn net.Conn, err error) {
	addr := withDefaultPort(c.cfg.Addr, c.cfg.NoTLS)

	var dialer net.Dialer
	conn, err = dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return
	}

	if !c.cfg.NoTLS {
		host, _, _ := net.SplitHostPort(addr) // should succeed since DialContext did.
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName: host,
			NextProtos: []string{"irc"},
		})
		if err = tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	return
}

// withDefaultPort appends the default IRC port to addr if it has none.
func withDefaultPort(addr string, noTLS bool) string {
	colonIdx := strings.LastIndexByte(addr, ':')
	bracketIdx := strings.LastIndexByte(addr, ']')
	if colonIdx > bracketIdx {
		return addr
	}
	// either colonIdx < 0, or the last colon is before a ']' (end of IPv6
	// address).
	if noTLS {
		return addr + ":6667"
	}
	return addr + ":6697"
}

// sleep waits for d, and reports false if ctx was done first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
