// Package client implements the client-side driver (spec §4.7): dial,
// configure the socket, launch the worker pool, wrap the connection in a
// session, and emit request_connection. Grounded on the teacher's own
// dialer/session-init split (`transport.tinit.go` sets up the shared
// collector once per process the same way a client sets up its pool once
// per Start).
package client

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

// Config is everything the client needs to dial and hand off to a Session.
type Config struct {
	SourceID      string
	ConnectionKey string

	EncryptMode  bool
	CompressMode bool
	SessionType  cmn.SessionType

	AutoEcho                bool
	AutoEchoIntervalSeconds uint16
	BridgeMode              bool
	SnippingTargets         []string

	ReceiveBufferSize int
	Workers           pool.Config
}

// Client owns a single session and the worker pool that drives its
// pipeline (spec §4.7 "Owns a single session and its worker pool").
type Client struct {
	cfg        Config
	cb         session.Callbacks
	compressor pipeline.Compressor
	encrypter  pipeline.Encrypter

	pool *pool.Pool
	pl   *pipeline.Pipeline
	conn *net.TCPConn
	sess *session.Session
}

func New(cfg Config, cb session.Callbacks, compressor pipeline.Compressor, encrypter pipeline.Encrypter) *Client {
	return &Client{cfg: cfg, cb: cb, compressor: compressor, encrypter: encrypter}
}

// Start opens a TCP socket to ip:port with TCP_NODELAY and SO_KEEPALIVE,
// sets SO_RCVBUF from cfg.ReceiveBufferSize, launches the worker pool, and
// emits request_connection (spec §4.7).
func (c *Client) Start(ip string, port int) error {
	raddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return cmn.NewErr(cmn.KindIo, err, "resolve %s:%d", ip, port)
	}
	conn, err := net.DialTCP("tcp", nil, raddr)
	if err != nil {
		return cmn.NewErr(cmn.KindIo, err, "dial %s:%d", ip, port)
	}
	if err := conn.SetNoDelay(true); err != nil {
		return cmn.NewErr(cmn.KindIo, err, "set TCP_NODELAY")
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return cmn.NewErr(cmn.KindIo, err, "set SO_KEEPALIVE")
	}
	if c.cfg.ReceiveBufferSize > 0 {
		if err := conn.SetReadBuffer(c.cfg.ReceiveBufferSize); err != nil {
			return cmn.NewErr(cmn.KindIo, err, "set SO_RCVBUF")
		}
	}

	c.conn = conn
	c.pool = pool.New(c.cfg.Workers)
	c.pl = pipeline.New(c.pool)
	c.sess = session.New(conn, c.pl, c.compressor, c.encrypter, session.Config{
		IsServer:                false,
		SourceID:                c.cfg.SourceID,
		ConnectionKey:           c.cfg.ConnectionKey,
		EncryptMode:             c.cfg.EncryptMode,
		CompressMode:            c.cfg.CompressMode,
		SessionType:             c.cfg.SessionType,
		AutoEcho:                c.cfg.AutoEcho,
		AutoEchoIntervalSeconds: c.cfg.AutoEchoIntervalSeconds,
		BridgeMode:              c.cfg.BridgeMode,
		SnippingTargets:         c.cfg.SnippingTargets,
		ReceiveBufferSize:       c.cfg.ReceiveBufferSize,
	}, c.cb)
	c.sess.Start()
	return nil
}

// Stop closes the socket, stops the session, and joins the pool. The two
// teardown paths (session, pool) are independent once the socket is
// closed, so they run concurrently via errgroup the way the teacher's own
// shutdown sequences fan out independent joins.
func (c *Client) Stop() error {
	g, _ := errgroup.WithContext(context.Background())
	if c.sess != nil {
		g.Go(func() error {
			c.sess.Stop()
			return nil
		})
	}
	if c.pool != nil {
		g.Go(func() error {
			c.pool.Stop()
			return nil
		})
	}
	return g.Wait()
}

func (c *Client) Session() *session.Session { return c.sess }

func (c *Client) SendPacket(v *value.Container) error { return c.sess.SendPacket(v) }

func (c *Client) SendBinary(m pipeline.BinaryMsg) error { return c.sess.SendBinary(m) }

func (c *Client) SendFile(meta pipeline.FileUpload) error { return c.sess.SendFile(meta) }
