// Package session implements the per-connection state machine (spec §4.5):
// handshake, auto-echo, and message-type dispatch over one TCP connection.
// Grounded on the teacher's transport stream (tinit.go/collect.go): a
// long-lived object wrapping one socket, driven by a background read loop,
// exposing start/stop and a small set of callback slots rather than a
// request/response API.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/cmn/cos"
	"github.com/meshline/msgline/cmn/nlog"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/value"
	"github.com/meshline/msgline/wire"
)

// State is one of {connecting, awaiting_confirm, confirmed, terminating,
// expired} (spec §4.5). terminating and expired are both terminal.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingConfirm
	StateConfirmed
	StateTerminating
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingConfirm:
		return "awaiting_confirm"
	case StateConfirmed:
		return "confirmed"
	case StateTerminating:
		return "terminating"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Callbacks are the observer relations a session reports through; they are
// capability handles looked up at delivery time, not ownership (spec §9
// design note). None may call Stop synchronously from within themselves.
type Callbacks struct {
	OnConnect    func(confirmed bool)
	OnMessage    func(c *value.Container)
	OnBinary     func(m pipeline.BinaryMsg)
	OnFileNotify func(n pipeline.FileNotify)
	OnDisconnect func()
}

// Config is everything a Session needs that isn't per-socket state.
type Config struct {
	IsServer      bool
	SourceID      string
	ConnectionKey string // expected on the server side, sent on the client side

	EncryptMode  bool
	CompressMode bool
	SessionType  cmn.SessionType

	AutoEcho                bool
	AutoEchoIntervalSeconds uint16
	BridgeMode               bool
	SnippingTargets          []string

	HandshakeTimeout  time.Duration
	ReceiveBufferSize int

	// AllowedType, when non-nil, gates the session_type the peer requests
	// (server side only); a nil func allows anything.
	AllowedType func(cmn.SessionType) bool
	// KillOnHandshake forces a handshake rejection regardless of the
	// connection key (server side only; set when the session-limit is met).
	KillOnHandshake bool
	// IdleTeardown records the server's idle-teardown setting (SPEC_FULL
	// supplemental field). The session does not act on it; the server's
	// idle sweep closes confirmed sessions idle past it.
	IdleTeardown time.Duration
}

type handlerFunc func(*Session, *value.Container) error

// Session is the mutable per-connection record (spec §3 "Session").
type Session struct {
	id   string
	conn net.Conn
	rd   *wire.FrameReader
	pl   *pipeline.Pipeline

	compressor pipeline.Compressor
	encrypter  pipeline.Encrypter

	cfg Config
	cb  Callbacks

	mu          sync.Mutex
	state       State
	key, iv     []byte
	sourceSubID string
	targetID    string
	targetSubID string
	createdAt   time.Time
	lastActive  time.Time

	snip *snipSet

	handlers map[string]handlerFunc

	stop cos.StopCh
	wg   sync.WaitGroup
}

// New builds a session around an already-accepted/dialed conn. The caller
// must call Start to begin the read loop and (client side) the handshake.
func New(conn net.Conn, pl *pipeline.Pipeline, compressor pipeline.Compressor, encrypter pipeline.Encrypter, cfg Config, cb Callbacks) *Session {
	s := &Session{
		id:         cos.GenID(),
		conn:       conn,
		rd:         wire.NewFrameReader(conn, cfg.ReceiveBufferSize),
		pl:         pl,
		compressor: compressor,
		encrypter:  encrypter,
		cfg:        cfg,
		cb:         cb,
		state:      StateConnecting,
		snip:       newSnipSet(cfg.SnippingTargets),
		createdAt:  time.Now(),
	}
	s.lastActive = s.createdAt
	s.sourceSubID = hostPort(conn.LocalAddr())
	s.targetSubID = hostPort(conn.RemoteAddr())
	s.handlers = map[string]handlerFunc{
		"confirm_connection": (*Session).handleConfirmConnection,
		"echo":               (*Session).handleEcho,
	}
	if cfg.IsServer {
		s.handlers["request_connection"] = (*Session).handleRequestConnection
	}
	s.stop.Init()
	return s
}

func hostPort(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// IdleSince reports how long it has been since the last frame on this
// session, used by the server's idle-teardown sweep.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive)
}

func (s *Session) TargetID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetID
}

func (s *Session) TargetSubID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetSubID
}

// Start launches the read loop. On the server side it also schedules the
// handshake watchdog; on the client side it sends request_connection and
// starts no watchdog (only the server enforces the handshake timeout).
func (s *Session) Start() {
	s.setState(StateAwaitingConfirm)
	s.wg.Add(1)
	go s.readLoop()

	if s.cfg.IsServer {
		s.scheduleWatchdog()
	} else {
		if err := s.sendRequestConnection(); err != nil {
			nlog.Errorf("session %s: send request_connection: %v", s.id, err)
		}
	}
	if s.cfg.AutoEcho {
		s.startAutoEcho()
	}
}

// Stop closes the socket (unblocking the read loop) and waits for it to
// exit. Idempotent.
func (s *Session) Stop() {
	s.stop.Close()
	s.conn.Close()
	s.wg.Wait()
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	defer s.finish()
	for {
		f, err := s.rd.Next()
		if err != nil {
			if !s.stop.Stopped() {
				nlog.Warningf("session %s: frame read: %v", s.id, err)
			}
			return
		}
		s.touch()
		if err := s.handleFrame(f); err != nil {
			nlog.Errorf("session %s: %v", s.id, err)
			if cmn.IsFatal(err) {
				return
			}
		}
	}
}

func (s *Session) finish() {
	prev := s.State()
	if prev != StateTerminating && prev != StateExpired {
		s.setState(StateTerminating)
	}
	if s.cb.OnDisconnect != nil {
		go s.cb.OnDisconnect()
	}
}

func (s *Session) handleFrame(f wire.Frame) error {
	encrypter, key, iv := s.activeEncrypter()
	switch f.Mode {
	case cmn.ModePacket:
		return s.pl.RecvPacket(f.Payload, s.compressor, encrypter, key, iv, s.dispatch)
	case cmn.ModeBinary:
		return s.pl.RecvBinary(f.Payload, s.compressor, encrypter, key, iv, s.deliverBinary)
	case cmn.ModeFile:
		// data_mode=file carries a file upload when this side is the
		// recipient (server) and a file notify reply when this side is the
		// original uploader (client) — spec §6's two "file" payload shapes
		// are disambiguated by role, not by a separate wire tag.
		if s.cfg.IsServer {
			return s.pl.RecvFileUpload(f.Payload, s.compressor, encrypter, key, iv, s.resolveUploadTarget, s.handleFileUploadNotify)
		}
		return s.pl.RecvFileNotify(f.Payload, s.compressor, encrypter, key, iv, s.deliverFileNotify)
	default:
		return cmn.NewErr(cmn.KindWireFormat, nil, "unknown frame mode %d", f.Mode)
	}
}

func (s *Session) currentKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Session) currentIV() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iv
}

// activeEncrypter picks the cipher for the frame about to be sent/decoded.
// Handshake frames (request_connection, confirm_connection, and any
// rejection/expiry reply) are always plaintext: there is no negotiated
// key yet, and the server mints it only as part of the very reply being
// sent. Only once a session reaches confirmed does it switch to the real
// encrypter with the negotiated (key, iv) (spec §4.5/§7).
func (s *Session) activeEncrypter() (pipeline.Encrypter, []byte, []byte) {
	if s.State() != StateConfirmed {
		return pipeline.NopEncrypter{}, nil, nil
	}
	return s.encrypter, s.currentKey(), s.currentIV()
}

// dispatch routes a parsed container to its message_type handler, dropping
// anything but handshake types until the session is confirmed (spec §4.5
// "if the session is not confirmed and the type is not a handshake type,
// the message is dropped").
func (s *Session) dispatch(c *value.Container) error {
	if s.snip.blocks(c) {
		return nil
	}
	if h, ok := s.handlers[c.MessageType]; ok {
		return h(s, c)
	}
	if s.State() != StateConfirmed {
		return nil
	}
	if s.cb.OnMessage != nil {
		s.cb.OnMessage(c)
	}
	return nil
}

func (s *Session) deliverBinary(m pipeline.BinaryMsg) error {
	if s.State() != StateConfirmed {
		return nil
	}
	if s.cb.OnBinary != nil {
		s.cb.OnBinary(m)
	}
	return nil
}

func (s *Session) deliverFileNotify(n pipeline.FileNotify) error {
	if s.State() != StateConfirmed {
		return nil
	}
	if s.cb.OnFileNotify != nil {
		s.cb.OnFileNotify(n)
	}
	return nil
}

// handleFileUploadNotify is the receiving (server) side's reaction to a
// completed file upload: it reports the outcome locally and transmits the
// same file-notify back to the uploading peer (spec §4.6, end-to-end
// scenario 6 "Server saves ... then emits file-notify back to client").
func (s *Session) handleFileUploadNotify(n pipeline.FileNotify) error {
	if err := s.deliverFileNotify(n); err != nil {
		return err
	}
	return s.sendFileNotify(n)
}

// sendFileNotify transmits a file-notify frame honoring the same
// confirmed/session-type gate as the other send entry points.
func (s *Session) sendFileNotify(n pipeline.FileNotify) error {
	if !s.canSend(cmn.ModeFile) {
		return nil
	}
	return s.pl.SendFileNotify(n, s.compressor, s.encrypter, s.currentKey(), s.currentIV(), s.send)
}

// resolveUploadTarget is the hook used by server/client to turn an incoming
// FileUpload into a destination path; returning "" signals save failure
// before any bytes are written.
func (s *Session) resolveUploadTarget(up pipeline.FileUpload) string {
	return up.TargetPath
}

// ---- outbound ----

// SendPacket serializes and sends c as a packet frame, honoring the session
// type restriction and the confirmed-before-send invariant (spec §3, §7
// IllegalOperation: "silently dropped at the send entry point").
func (s *Session) SendPacket(c *value.Container) error {
	if !s.canSend(cmn.ModePacket) {
		return nil
	}
	return s.pl.SendPacket(c, s.compressor, s.encrypter, s.currentKey(), s.currentIV(), s.send)
}

func (s *Session) SendBinary(m pipeline.BinaryMsg) error {
	if !s.canSend(cmn.ModeBinary) {
		return nil
	}
	return s.pl.SendBinary(m, s.compressor, s.encrypter, s.currentKey(), s.currentIV(), s.send)
}

func (s *Session) SendFile(meta pipeline.FileUpload) error {
	if !s.canSend(cmn.ModeFile) {
		return nil
	}
	return s.pl.SendFile(meta, s.compressor, s.encrypter, s.currentKey(), s.currentIV(), s.send)
}

func (s *Session) canSend(mode cmn.DataMode) bool {
	if s.State() != StateConfirmed {
		return false
	}
	s.mu.Lock()
	t := s.cfg.SessionType
	s.mu.Unlock()
	return t.Allows(mode)
}

func (s *Session) send(mode cmn.DataMode, payload []byte) error {
	_, err := s.conn.Write(wire.Encode(wire.Frame{Mode: mode, Payload: payload}))
	if err != nil {
		return cmn.NewErr(cmn.KindIo, err, "write frame")
	}
	s.touch()
	return nil
}
