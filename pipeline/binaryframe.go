package pipeline

import (
	"encoding/binary"

	"github.com/meshline/msgline/cmn"
)

// The three binary-payload layouts (spec §6) are each a sequence of
// u32-length-prefixed fields, little-endian, with no separators: the same
// composition style as the frame header itself (wire/frame.go), just
// applied one level down to the payload body.

func writeField(buf *[]byte, f []byte) {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(f)))
	*buf = append(*buf, lb[:]...)
	*buf = append(*buf, f...)
}

func readFields(data []byte, n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		if off+4 > len(data) {
			return nil, cmn.NewErr(cmn.KindWireFormat, nil, "binary payload: truncated length for field %d", i)
		}
		l := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		if off+int(l) > len(data) {
			return nil, cmn.NewErr(cmn.KindWireFormat, nil, "binary payload: truncated body for field %d", i)
		}
		out = append(out, data[off:off+int(l)])
		off += int(l)
	}
	if off != len(data) {
		return nil, cmn.NewErr(cmn.KindWireFormat, nil, "binary payload: %d trailing bytes", len(data)-off)
	}
	return out, nil
}

// BinaryMsg is the decoded "binary mode" payload (spec §6).
type BinaryMsg struct {
	SourceID, SourceSubID string
	TargetID, TargetSubID string
	Data                  []byte
}

func EncodeBinaryMsg(m BinaryMsg) []byte {
	var buf []byte
	writeField(&buf, []byte(m.SourceID))
	writeField(&buf, []byte(m.SourceSubID))
	writeField(&buf, []byte(m.TargetID))
	writeField(&buf, []byte(m.TargetSubID))
	writeField(&buf, m.Data)
	return buf
}

func DecodeBinaryMsg(data []byte) (BinaryMsg, error) {
	fs, err := readFields(data, 5)
	if err != nil {
		return BinaryMsg{}, err
	}
	return BinaryMsg{
		SourceID: string(fs[0]), SourceSubID: string(fs[1]),
		TargetID: string(fs[2]), TargetSubID: string(fs[3]),
		Data: fs[4],
	}, nil
}

// FileUpload is the decoded "file upload" payload (spec §6).
type FileUpload struct {
	IndicationID                     string
	SourceID, SourceSubID            string
	TargetID, TargetSubID            string
	SourcePath, TargetPath           string
	FileBytes                        []byte
}

func EncodeFileUpload(m FileUpload) []byte {
	var buf []byte
	writeField(&buf, []byte(m.IndicationID))
	writeField(&buf, []byte(m.SourceID))
	writeField(&buf, []byte(m.SourceSubID))
	writeField(&buf, []byte(m.TargetID))
	writeField(&buf, []byte(m.TargetSubID))
	writeField(&buf, []byte(m.SourcePath))
	writeField(&buf, []byte(m.TargetPath))
	writeField(&buf, m.FileBytes)
	return buf
}

func DecodeFileUpload(data []byte) (FileUpload, error) {
	fs, err := readFields(data, 8)
	if err != nil {
		return FileUpload{}, err
	}
	return FileUpload{
		IndicationID: string(fs[0]),
		SourceID:     string(fs[1]), SourceSubID: string(fs[2]),
		TargetID: string(fs[3]), TargetSubID: string(fs[4]),
		SourcePath: string(fs[5]), TargetPath: string(fs[6]),
		FileBytes: fs[7],
	}, nil
}

// FileNotify is the decoded "file notify" payload (spec §6); an empty
// FinalTargetPath signals that the save failed.
type FileNotify struct {
	IndicationID     string
	TargetID         string
	TargetSubID      string
	FinalTargetPath  string
}

func EncodeFileNotify(m FileNotify) []byte {
	var buf []byte
	writeField(&buf, []byte(m.IndicationID))
	writeField(&buf, []byte(m.TargetID))
	writeField(&buf, []byte(m.TargetSubID))
	writeField(&buf, []byte(m.FinalTargetPath))
	return buf
}

func DecodeFileNotify(data []byte) (FileNotify, error) {
	fs, err := readFields(data, 4)
	if err != nil {
		return FileNotify{}, err
	}
	return FileNotify{
		IndicationID:    string(fs[0]),
		TargetID:        string(fs[1]),
		TargetSubID:     string(fs[2]),
		FinalTargetPath: string(fs[3]),
	}, nil
}
