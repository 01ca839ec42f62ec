package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/meshline/msgline/cmn"
)

// defaultMaxPayload bounds a single frame's declared payload length so a
// corrupt or adversarial length field can't force an unbounded allocation;
// it is not part of the wire format, only a local guard on this reader.
const defaultMaxPayload = 256 << 20 // 256 MiB

// FrameReader is a long-lived reader over an inbound byte stream,
// implementing the awaiting_start -> awaiting_mode -> awaiting_length ->
// awaiting_payload -> awaiting_end state machine from spec §4.2.
type FrameReader struct {
	r          *bufio.Reader
	maxPayload uint32
}

// NewFrameReader wraps r with bufSize worth of read-ahead buffering
// (receive_buffer_size, spec §4.2; a hint, not a hard cap on frame size).
func NewFrameReader(r io.Reader, bufSize int) *FrameReader {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &FrameReader{r: bufio.NewReaderSize(r, bufSize), maxPayload: defaultMaxPayload}
}

// SetMaxPayload overrides the default payload-size guard; 0 disables it.
func (fr *FrameReader) SetMaxPayload(n uint32) { fr.maxPayload = n }

// Next blocks until one full frame has been read, or returns an error: a
// WireFormat error on a structural mismatch (bad mode, bad length, code
// mismatch), or an Io error if the underlying read failed. The session
// layer treats both as fatal per spec §7.
func (fr *FrameReader) Next() (Frame, error) {
	if err := fr.syncStart(); err != nil {
		return Frame{}, err
	}

	modeByte, err := fr.r.ReadByte()
	if err != nil {
		return Frame{}, ioErr(err)
	}
	mode := DataMode(modeByte)
	if !validMode(mode) {
		return Frame{}, cmn.NewErr(cmn.KindWireFormat, nil, "invalid data_mode %d", modeByte)
	}

	var lenBuf [lengthSize]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return Frame{}, ioErr(err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if fr.maxPayload > 0 && n > fr.maxPayload {
		return Frame{}, cmn.NewErr(cmn.KindWireFormat, nil, "payload length %d exceeds max %d", n, fr.maxPayload)
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return Frame{}, ioErr(err)
		}
	}

	var endBuf [codeSize]byte
	if _, err := io.ReadFull(fr.r, endBuf[:]); err != nil {
		return Frame{}, ioErr(err)
	}
	if !bytes.Equal(endBuf[:], EndCode[:]) {
		return Frame{}, cmn.NewErr(cmn.KindWireFormat, nil, "end code mismatch")
	}

	return Frame{Mode: mode, Payload: payload}, nil
}

// syncStart implements awaiting_start: it reads a 4-byte sliding window,
// dropping one byte and re-filling on every mismatch, until the window
// equals StartCode.
func (fr *FrameReader) syncStart() error {
	var window [codeSize]byte
	if _, err := io.ReadFull(fr.r, window[:]); err != nil {
		return ioErr(err)
	}
	for !bytes.Equal(window[:], StartCode[:]) {
		copy(window[:codeSize-1], window[1:])
		b, err := fr.r.ReadByte()
		if err != nil {
			return ioErr(err)
		}
		window[codeSize-1] = b
	}
	return nil
}

func ioErr(err error) error {
	return cmn.NewErr(cmn.KindIo, err, "frame read")
}
