package server

import (
	"github.com/meshline/msgline/cmn/nlog"
	"github.com/meshline/msgline/pipeline"
	"github.com/meshline/msgline/value"
)

// Send fans c out to every confirmed session (spec §4.6 "send(message)");
// each session independently drops it if its session_type forbids packet
// mode or it isn't confirmed yet (spec §3 invariants).
func (srv *Server) Send(c *value.Container) {
	for _, s := range srv.reg.list() {
		cp := c.Copy(true)
		if err := s.SendPacket(cp); err != nil {
			nlog.Warningf("server: broadcast send to %s: %v", s.ID(), err)
		}
	}
}

// SendFiles fans a file-mode message out the same way Send does for packets
// (spec §4.6 "send_files(message)").
func (srv *Server) SendFiles(meta pipeline.FileUpload) {
	for _, s := range srv.reg.list() {
		if err := s.SendFile(meta); err != nil {
			nlog.Warningf("server: broadcast send_files to %s: %v", s.ID(), err)
		}
	}
}

// SendBinary fans a binary-mode payload out to every session whose peer
// target_id equals m.TargetID; the filter is applied here, per session, in
// this loop (session.SendBinary itself does not filter on target). An empty
// m.TargetID reaches every session.
func (srv *Server) SendBinary(m pipeline.BinaryMsg) {
	for _, s := range srv.reg.list() {
		if m.TargetID != "" && m.TargetID != s.TargetID() {
			continue
		}
		if err := s.SendBinary(m); err != nil {
			nlog.Warningf("server: broadcast send_binary to %s: %v", s.ID(), err)
		}
	}
}

// Echo fans out an echo message to every confirmed session (spec §4.6
// "echo() fan-outs an echo").
func (srv *Server) Echo() {
	for _, s := range srv.reg.list() {
		c := value.NewContainer(srv.cfg.SourceID, "", s.TargetID(), s.TargetSubID(), "echo", nil)
		if err := s.SendPacket(c); err != nil {
			nlog.Warningf("server: broadcast echo to %s: %v", s.ID(), err)
		}
	}
}
