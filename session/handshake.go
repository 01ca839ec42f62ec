package session

import (
	"time"

	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/cmn/nlog"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/value"
)

// Reserved value names (spec §6).
const (
	valConnectionKey   = "connection_key"
	valAutoEcho        = "auto_echo"
	valAutoEchoSeconds = "auto_echo_interval_seconds"
	valSessionType     = "session_type"
	valBridgeMode      = "bridge_mode"
	valSnippingTargets = "snipping_targets"
	valConfirm         = "confirm"
	valKey             = "key"
	valIV              = "iv"
	valEncryptMode     = "encrypt_mode"
	valResponse        = "response"
)

// sendHandshakePacket bypasses the confirmed-before-send gate: handshake
// frames are the only packets legally sent while awaiting_confirm. It also
// goes through activeEncrypter rather than the raw encrypter, since a
// handshake frame sent before confirmed has no negotiated key to encrypt
// with (spec §4.5/§7); echo/auto-echo calls that reuse this helper after
// confirmed correctly pick up the real cipher instead.
func (s *Session) sendHandshakePacket(c *value.Container) error {
	encrypter, key, iv := s.activeEncrypter()
	return s.pl.SendPacket(c, s.compressor, encrypter, key, iv, s.send)
}

func snippingContainer(name string, targets []string) *value.Value {
	children := make([]*value.Value, len(targets))
	for i, t := range targets {
		children[i] = value.NewString("target", t)
	}
	return value.NewContainerValue(name, children)
}

func stringsFromContainer(v *value.Value) []string {
	if v == nil {
		return nil
	}
	children := v.Children()
	out := make([]string, len(children))
	for i, c := range children {
		out[i] = c.Str()
	}
	return out
}

// sendRequestConnection is step 1 of the handshake (client side).
func (s *Session) sendRequestConnection() error {
	c := value.NewContainer(s.cfg.SourceID, s.sourceSubID, "", s.targetSubID, "request_connection", nil)
	c.Add(value.NewString(valConnectionKey, s.cfg.ConnectionKey))
	c.Add(value.NewBool(valAutoEcho, s.cfg.AutoEcho))
	c.Add(value.NewUInt(valAutoEchoSeconds, s.cfg.AutoEchoIntervalSeconds))
	c.Add(value.NewInt(valSessionType, int16(s.cfg.SessionType)))
	c.Add(value.NewBool(valBridgeMode, s.cfg.BridgeMode))
	c.Add(snippingContainer(valSnippingTargets, s.cfg.SnippingTargets))
	return s.sendHandshakePacket(c)
}

// handleRequestConnection is step 2-3 of the handshake (server side).
func (s *Session) handleRequestConnection(c *value.Container) error {
	s.mu.Lock()
	s.targetID = c.SourceID
	s.targetSubID = c.SourceSubID
	s.mu.Unlock()

	key := c.GetValue(valConnectionKey, 0)
	sessType := c.GetValue(valSessionType, 0)

	ok := key != nil && key.Str() == s.cfg.ConnectionKey && !s.cfg.KillOnHandshake
	if ok && sessType != nil && s.cfg.AllowedType != nil {
		ok = s.cfg.AllowedType(cmn.SessionType(sessType.Int()))
	}
	if !ok {
		reply := value.NewContainer(s.cfg.SourceID, s.sourceSubID, c.SourceID, c.SourceSubID, "confirm_connection", nil)
		reply.Add(value.NewBool(valConfirm, false))
		if err := s.sendHandshakePacket(reply); err != nil {
			nlog.Warningf("session %s: send rejection: %v", s.id, err)
		}
		s.setState(StateTerminating)
		if s.cb.OnConnect != nil {
			s.cb.OnConnect(false)
		}
		go s.Stop()
		return cmn.NewErr(cmn.KindHandshakeRejected, nil, "rejected request_connection from %s", c.SourceID)
	}

	if sessType != nil {
		s.mu.Lock()
		s.cfg.SessionType = cmn.SessionType(sessType.Int())
		s.mu.Unlock()
	}

	key2, iv2, err := pipeline.GenerateKeyIV()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.cfg.EncryptMode {
		s.key, s.iv = key2, iv2
	}
	s.mu.Unlock()

	reply := value.NewContainer(s.cfg.SourceID, s.sourceSubID, c.SourceID, c.SourceSubID, "confirm_connection", nil)
	reply.Add(value.NewBool(valConfirm, true))
	reply.Add(value.NewString(valKey, hexEncode(key2)))
	reply.Add(value.NewString(valIV, hexEncode(iv2)))
	reply.Add(value.NewBool(valEncryptMode, s.cfg.EncryptMode))
	reply.Add(snippingContainer(valSnippingTargets, s.cfg.SnippingTargets))
	if err := s.sendHandshakePacket(reply); err != nil {
		return err
	}

	s.setState(StateConfirmed)
	if s.cb.OnConnect != nil {
		s.cb.OnConnect(true)
	}
	return nil
}

// handleConfirmConnection is step 3-4 of the handshake (client side).
func (s *Session) handleConfirmConnection(c *value.Container) error {
	confirm := c.GetValue(valConfirm, 0)
	if confirm == nil || !confirm.Bool() {
		s.setState(StateTerminating)
		if s.cb.OnConnect != nil {
			s.cb.OnConnect(false)
		}
		go s.Stop()
		return nil
	}

	if keyv := c.GetValue(valKey, 0); keyv != nil {
		k, err := hexDecode(keyv.Str())
		if err != nil {
			return cmn.NewErr(cmn.KindCrypto, err, "decode key")
		}
		s.mu.Lock()
		s.key = k
		s.mu.Unlock()
	}
	if ivv := c.GetValue(valIV, 0); ivv != nil {
		iv, err := hexDecode(ivv.Str())
		if err != nil {
			return cmn.NewErr(cmn.KindCrypto, err, "decode iv")
		}
		s.mu.Lock()
		s.iv = iv
		s.mu.Unlock()
	}

	s.setState(StateConfirmed)
	if s.cb.OnConnect != nil {
		s.cb.OnConnect(true)
	}
	return nil
}

// scheduleWatchdog starts a goroutine that waits one handshake timeout
// after accept and then expires the session if it is still
// awaiting_confirm. The check runs on that goroutine, not as a job on the
// worker pool.
func (s *Session) scheduleWatchdog() {
	timeout := s.cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-time.After(timeout):
		case <-s.stop.Listen():
			return
		}
		if s.State() != StateAwaitingConfirm {
			return
		}
		s.expire()
	}()
}

func (s *Session) expire() {
	reply := value.NewContainer(s.cfg.SourceID, s.sourceSubID, s.targetID, s.targetSubID, "confirm_connection", nil)
	reply.Add(value.NewBool(valConfirm, false))
	// best-effort: the socket may already be unwriteable. Still awaiting
	// confirm, so this goes out in plaintext via activeEncrypter.
	encrypter, key, iv := s.activeEncrypter()
	_ = s.pl.SendPacket(reply, s.compressor, encrypter, key, iv, s.send)
	s.setState(StateExpired)
	go s.Stop()
}

func (s *Session) handleEcho(c *value.Container) error {
	respv := c.GetValue(valResponse, 0)
	if respv != nil && respv.Bool() {
		nlog.Infof("session %s: echo round trip complete", s.id)
		return nil
	}
	reply := c.Copy(true)
	reply.SwapHeader()
	reply.Add(value.NewBool(valResponse, true))
	return s.sendHandshakePacket(reply)
}

func (s *Session) startAutoEcho() {
	interval := time.Duration(s.cfg.AutoEchoIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if s.State() != StateConfirmed {
					continue
				}
				c := value.NewContainer(s.cfg.SourceID, s.sourceSubID, s.targetID, s.targetSubID, "echo", nil)
				if err := s.sendHandshakePacket(c); err != nil {
					nlog.Warningf("session %s: auto-echo: %v", s.id, err)
				}
			case <-s.stop.Listen():
				return
			}
		}
	}()
}

