// Package server implements the accept loop, session registry, and
// fan-out broadcast logic (spec §4.6). Grounded on the teacher's own
// long-lived listener pattern (cmd/aisnode style accept loop wired to a
// registry of live per-connection objects), generalized here from HTTP
// handlers to raw TCP session objects.
package server

import (
	"net"
	"strconv"
	"time"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/session"
	"github.com/meshline/msgline/value"
)

// Config is the server-level configuration (spec §4.6, §6).
type Config struct {
	Port                  int
	SourceID              string
	ConnectionKey         string
	EncryptMode           bool
	CompressMode          bool
	SessionLimitCount     int
	SessionLimitEnabled   bool
	PossibleSessionTypes  []cmn.SessionType
	IgnoreSnippingTargets []string
	HandshakeTimeout      time.Duration
	IdleTeardown          time.Duration
	ReceiveBufferSize     int
	Workers               pool.Config
}

func (c Config) allowsType(t cmn.SessionType) bool {
	if len(c.PossibleSessionTypes) == 0 {
		return true
	}
	for _, pt := range c.PossibleSessionTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// Callbacks mirror session.Callbacks but fire once per session at the
// server level, after the server has wired its own bookkeeping.
type Callbacks struct {
	OnConnect    func(s *session.Session, confirmed bool)
	OnMessage    func(s *session.Session, c *value.Container)
	OnBinary     func(s *session.Session, m pipeline.BinaryMsg)
	OnFileNotify func(s *session.Session, n pipeline.FileNotify)
	OnDisconnect func(s *session.Session)
}

// Server accepts connections, wraps each in a session, and keeps a
// registry for fan-out sends (spec §4.6).
type Server struct {
	cfg  Config
	cb   Callbacks
	pl   *pipeline.Pipeline
	pool *pool.Pool

	compressor pipeline.Compressor
	encrypter  pipeline.Encrypter

	ln  net.Listener
	reg *registry

	stopping chan struct{}
}

// New builds a Server; it does not yet listen (call ListenAndServe).
func New(cfg Config, cb Callbacks, compressor pipeline.Compressor, encrypter pipeline.Encrypter) *Server {
	p := pool.New(cfg.Workers)
	srv := &Server{
		cfg:        cfg,
		cb:         cb,
		pl:         pipeline.New(p),
		pool:       p,
		compressor: compressor,
		encrypter:  encrypter,
		reg:        newRegistry(),
		stopping:   make(chan struct{}),
	}
	if cfg.IdleTeardown > 0 {
		go srv.idleSweep()
	}
	return srv
}

// idleSweep closes confirmed sessions that have carried no frame for
// longer than cfg.IdleTeardown (SPEC_FULL §3 supplemental field, mirroring
// the teacher's stream idle-teardown timer).
func (srv *Server) idleSweep() {
	t := time.NewTicker(srv.cfg.IdleTeardown / 4)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			for _, s := range srv.reg.list() {
				if s.State() == session.StateConfirmed && s.IdleSince() > srv.cfg.IdleTeardown {
					go s.Stop()
				}
			}
		case <-srv.stopping:
			return
		}
	}
}

// ListenAndServe binds cfg.Port and runs the accept loop until Stop.
func (srv *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", portAddr(srv.cfg.Port))
	if err != nil {
		return cmn.NewErr(cmn.KindIo, err, "listen on port %d", srv.cfg.Port)
	}
	srv.ln = ln
	return srv.acceptLoop()
}

// Serve runs the accept loop over an already-bound listener (used by tests
// that want a fixed/ephemeral port via net.Listen themselves).
func (srv *Server) Serve(ln net.Listener) error {
	srv.ln = ln
	return srv.acceptLoop()
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func (srv *Server) acceptLoop() error {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			select {
			case <-srv.stopping:
				return nil
			default:
				return cmn.NewErr(cmn.KindIo, err, "accept")
			}
		}
		srv.onAccept(conn)
	}
}

// onAccept implements spec §4.6's 4-step accept sequence.
func (srv *Server) onAccept(conn net.Conn) {
	killOnHandshake := srv.cfg.SessionLimitEnabled && srv.cfg.SessionLimitCount > 0 &&
		srv.reg.count() >= srv.cfg.SessionLimitCount

	var s *session.Session
	s = session.New(conn, srv.pl, srv.compressor, srv.encrypter, session.Config{
		IsServer:          true,
		SourceID:          srv.cfg.SourceID,
		ConnectionKey:     srv.cfg.ConnectionKey,
		EncryptMode:       srv.cfg.EncryptMode,
		CompressMode:      srv.cfg.CompressMode,
		AllowedType:       srv.cfg.allowsType,
		KillOnHandshake:   killOnHandshake,
		HandshakeTimeout:  srv.cfg.HandshakeTimeout,
		IdleTeardown:      srv.cfg.IdleTeardown,
		ReceiveBufferSize: srv.cfg.ReceiveBufferSize,
		SnippingTargets:   srv.cfg.IgnoreSnippingTargets,
	}, session.Callbacks{
		OnConnect: func(ok bool) {
			if ok {
				srv.reg.reindex(s)
			}
			if srv.cb.OnConnect != nil {
				srv.cb.OnConnect(s, ok)
			}
		},
		OnMessage: func(c *value.Container) {
			if srv.cb.OnMessage != nil {
				srv.cb.OnMessage(s, c)
			}
		},
		OnFileNotify: func(n pipeline.FileNotify) {
			if srv.cb.OnFileNotify != nil {
				srv.cb.OnFileNotify(s, n)
			}
		},
		OnBinary: func(m pipeline.BinaryMsg) {
			if srv.cb.OnBinary != nil {
				srv.cb.OnBinary(s, m)
			}
		},
		OnDisconnect: func() {
			srv.reg.remove(s.ID())
			if srv.cb.OnDisconnect != nil {
				srv.cb.OnDisconnect(s)
			}
		},
	})

	srv.reg.add(s)
	s.Start()
}

// Stop closes the listener and every live session, then joins the pool.
func (srv *Server) Stop() {
	close(srv.stopping)
	if srv.ln != nil {
		srv.ln.Close()
	}
	for _, s := range srv.reg.list() {
		s.Stop()
	}
	srv.reg.close()
	srv.pool.Stop()
}

// Sessions returns a stable snapshot of live sessions (SPEC_FULL
// supplemental introspection surface).
func (srv *Server) Sessions() []*session.Session { return srv.reg.list() }

func (srv *Server) SessionByID(id string) (*session.Session, bool) { return srv.reg.byID(id) }

func (srv *Server) SessionsBySubID(subID string) []*session.Session { return srv.reg.bySubID(subID) }
