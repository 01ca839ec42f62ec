// Package wire implements the length-delimited frame codec (spec §3 "Frame",
// §4.2) that splits/joins a byte stream into frames carrying a data-mode
// tag. Grounded on the teacher's transport.pdu state machine (pdu.go):
// same idea of a small reader that accumulates a fixed-size prefix, then a
// declared-length payload, then a fixed-size suffix, generalized here from
// an HTTP body stream to a raw TCP byte stream.
package wire

import (
	"encoding/binary"

	"github.com/meshline/msgline/cmn"
)

// DataMode re-exports cmn.DataMode so callers of this package don't need to
// import cmn just to name a mode.
type DataMode = cmn.DataMode

const (
	ModeBinary = cmn.ModeBinary
	ModePacket = cmn.ModePacket
	ModeFile   = cmn.ModeFile
)

// StartCode and EndCode are the fixed 4-byte constants framing every frame
// (spec §4.2); any deviation aborts the session. Values are arbitrary but
// fixed at build time, per spec §6.
var (
	StartCode = [4]byte{0xA5, 0x5A, 0xC3, 0x3C}
	EndCode   = [4]byte{0x3C, 0xC3, 0x5A, 0xA5}
)

const (
	modeSize   = 1
	lengthSize = 4
	codeSize   = 4
	headerSize = codeSize + modeSize + lengthSize
)

// Frame is a single decoded length-delimited unit.
type Frame struct {
	Mode    DataMode
	Payload []byte
}

func validMode(m DataMode) bool {
	return m == ModeBinary || m == ModePacket || m == ModeFile
}

// Encode renders f as bytes ready to write to the wire: start code, mode,
// little-endian payload length, payload, end code. A send is atomic from
// the caller's point of view: Encode never returns a partial frame.
func Encode(f Frame) []byte {
	out := make([]byte, 0, headerSize+len(f.Payload)+codeSize)
	out = append(out, StartCode[:]...)
	out = append(out, byte(f.Mode))
	var lenbuf [lengthSize]byte
	binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(f.Payload)))
	out = append(out, lenbuf[:]...)
	out = append(out, f.Payload...)
	out = append(out, EndCode[:]...)
	return out
}
