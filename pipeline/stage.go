// Package pipeline implements the staged send/receive transform chain
// (spec §4): serialize/compose → compress → encrypt → frame send on the
// way out, and the mirror image on the way in. Each scheduled stage is a
// pool.Job; a stage's JobFunc is the continuation that submits the next
// stage, so the chain runs across whichever priority worker is free rather
// than pinning one goroutine to one message end-to-end. Grounded on the
// teacher's transport send/recv object pipeline (send.go, recv.go), which
// threads an in-flight object through a handful of named steps the same
// way.
package pipeline

import (
	"github.com/meshline/msgline/cmn"
	"github.com/meshline/msgline/pool"
	"github.com/meshline/msgline/value"
)

// Sender is the final stage of every outbound chain: hand the fully
// transformed, mode-tagged payload to the wire for framing and write.
type Sender func(mode cmn.DataMode, payload []byte) error

// Deliverer is a mode-tagged inbound hand-off signature. The Recv* chains
// below do not use it: each takes a callback typed for its decoded payload.
type Deliverer func(mode cmn.DataMode, payload []byte) error

// Pipeline holds the worker pool every chain's stages are scheduled on; the
// compressor, encrypter and (key, iv) are passed per call. One Pipeline is
// shared by every session on a Server/Client.
type Pipeline struct {
	pool *pool.Pool
}

func New(p *pool.Pool) *Pipeline {
	return &Pipeline{pool: p}
}

// abortOnEmpty enforces spec §4.3's "an empty byte buffer at any stage
// aborts the pipeline for that item".
func abortOnEmpty(kind cmn.ErrorKind, stage string, b []byte) error {
	if len(b) == 0 {
		return cmn.NewErr(kind, nil, "%s: empty buffer, aborting pipeline for this item", stage)
	}
	return nil
}

// ---- outbound ----

// SendPacket runs the packet chain: serialize (inline) →
// compress@high → encrypt@normal → send@top (spec §6 "packet" data_mode).
func (p *Pipeline) SendPacket(c *value.Container, compressor Compressor, encrypter Encrypter, key, iv []byte, send Sender) error {
	body := value.Serialize(c)
	if err := abortOnEmpty(cmn.KindContainerParse, "serialize", body); err != nil {
		return err
	}
	return p.pool.Submit(pool.Job{
		Priority: pool.High,
		Payload:  body,
		Fn: func(payload []byte) error {
			out, err := compressor.Compress(payload)
			if err != nil {
				return err
			}
			if err := abortOnEmpty(cmn.KindCompression, "compress", out); err != nil {
				return err
			}
			return p.pool.Submit(pool.Job{
				Priority: pool.Normal,
				Payload:  out,
				Fn: func(payload []byte) error {
					out, err := encrypter.Seal(key, iv, payload)
					if err != nil {
						return err
					}
					if err := abortOnEmpty(cmn.KindCrypto, "encrypt", out); err != nil {
						return err
					}
					return p.pool.Submit(pool.Job{
						Priority: pool.Top,
						Payload:  out,
						Fn: func(payload []byte) error {
							return send(cmn.ModePacket, payload)
						},
					})
				},
			})
		},
	})
}

// SendBinary runs the binary chain: compose (inline) → compress@normal →
// encrypt@normal → send@top (spec §6 "binary" data_mode).
func (p *Pipeline) SendBinary(m BinaryMsg, compressor Compressor, encrypter Encrypter, key, iv []byte, send Sender) error {
	body := EncodeBinaryMsg(m)
	if err := abortOnEmpty(cmn.KindWireFormat, "compose-binary-frame", body); err != nil {
		return err
	}
	return p.scheduleCompressEncryptSend(cmn.ModeBinary, body, compressor, encrypter, key, iv, send)
}

// SendFile runs the file chain: load-file@low → compress@normal →
// encrypt@normal → send@top (spec §6 "file" data_mode). meta is the
// upload's metadata with FileBytes left unset; SendFile reads SourcePath
// itself on the low-priority worker.
func (p *Pipeline) SendFile(meta FileUpload, compressor Compressor, encrypter Encrypter, key, iv []byte, send Sender) error {
	return p.pool.Submit(pool.Job{
		Priority: pool.Low,
		Fn: func([]byte) error {
			data, err := LoadFile(meta.SourcePath)
			if err != nil {
				return err
			}
			meta.FileBytes = data
			body := EncodeFileUpload(meta)
			if err := abortOnEmpty(cmn.KindWireFormat, "compose-binary-frame", body); err != nil {
				return err
			}
			return p.scheduleCompressEncryptSend(cmn.ModeFile, body, compressor, encrypter, key, iv, send)
		},
	})
}

// SendFileNotify runs the file-notify reply chain: compose (inline) →
// compress@normal → encrypt@normal → send@top, reusing data_mode=file —
// spec §6 lists file upload and file notify as the two payload shapes a
// "file" frame can carry; which one a side decodes is determined by its
// role (the uploader's peer always replies with a notify, never another
// upload), not by a separate mode byte.
func (p *Pipeline) SendFileNotify(n FileNotify, compressor Compressor, encrypter Encrypter, key, iv []byte, send Sender) error {
	body := EncodeFileNotify(n)
	if err := abortOnEmpty(cmn.KindWireFormat, "compose-file-notify", body); err != nil {
		return err
	}
	return p.scheduleCompressEncryptSend(cmn.ModeFile, body, compressor, encrypter, key, iv, send)
}

func (p *Pipeline) scheduleCompressEncryptSend(mode cmn.DataMode, body []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, send Sender) error {
	return p.pool.Submit(pool.Job{
		Priority: pool.Normal,
		Payload:  body,
		Fn: func(payload []byte) error {
			out, err := compressor.Compress(payload)
			if err != nil {
				return err
			}
			if err := abortOnEmpty(cmn.KindCompression, "compress", out); err != nil {
				return err
			}
			return p.pool.Submit(pool.Job{
				Priority: pool.Normal,
				Payload:  out,
				Fn: func(payload []byte) error {
					out, err := encrypter.Seal(key, iv, payload)
					if err != nil {
						return err
					}
					if err := abortOnEmpty(cmn.KindCrypto, "encrypt", out); err != nil {
						return err
					}
					return p.pool.Submit(pool.Job{
						Priority: pool.Top,
						Payload:  out,
						Fn: func(payload []byte) error {
							return send(mode, payload)
						},
					})
				},
			})
		},
	})
}

// ---- inbound ----

// RecvPacket runs the inbound packet chain: decrypt@normal →
// decompress@high → parse+deliver@high (spec §6).
func (p *Pipeline) RecvPacket(raw []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, deliver func(*value.Container) error) error {
	return p.pool.Submit(pool.Job{
		Priority: pool.Normal,
		Payload:  raw,
		Fn: func(payload []byte) error {
			out, err := encrypter.Open(key, iv, payload)
			if err != nil {
				return err
			}
			if err := abortOnEmpty(cmn.KindCrypto, "decrypt", out); err != nil {
				return err
			}
			return p.pool.Submit(pool.Job{
				Priority: pool.High,
				Payload:  out,
				Fn: func(payload []byte) error {
					out, err := compressor.Decompress(payload)
					if err != nil {
						return err
					}
					if err := abortOnEmpty(cmn.KindCompression, "decompress", out); err != nil {
						return err
					}
					return p.pool.Submit(pool.Job{
						Priority: pool.High,
						Payload:  out,
						Fn: func(payload []byte) error {
							c, err := value.Deserialize(payload)
							if err != nil {
								return err
							}
							return deliver(c)
						},
					})
				},
			})
		},
	})
}

// RecvBinary runs the inbound binary chain: decrypt@normal →
// decompress@normal → deliver@high (spec §6).
func (p *Pipeline) RecvBinary(raw []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, deliver func(BinaryMsg) error) error {
	return p.decryptThenDecompress(raw, compressor, encrypter, key, iv, pool.High, func(payload []byte) error {
		m, err := DecodeBinaryMsg(payload)
		if err != nil {
			return err
		}
		return deliver(m)
	})
}

// RecvFileUpload runs the inbound file chain: decrypt@normal →
// decompress@normal → write-file@low (spec §6; file writes run at low
// priority, unlike the generic high-priority delivery stage).
func (p *Pipeline) RecvFileUpload(raw []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, resolveTarget func(FileUpload) string, notify func(FileNotify) error) error {
	return p.decryptThenDecompress(raw, compressor, encrypter, key, iv, pool.Low, func(payload []byte) error {
		up, err := DecodeFileUpload(payload)
		if err != nil {
			return err
		}
		target := resolveTarget(up)
		n := FileNotify{IndicationID: up.IndicationID, TargetID: up.TargetID, TargetSubID: up.TargetSubID}
		if target == "" {
			return notify(n)
		}
		if err := SaveFile(target, up.FileBytes); err != nil {
			return notify(n)
		}
		n.FinalTargetPath = target
		return notify(n)
	})
}

// RecvFileNotify runs the inbound file-notify chain: decrypt@normal →
// decompress@normal → deliver@high. Used by the uploading side to receive
// the notify its peer sends back over the same data_mode=file frame type
// (spec §6).
func (p *Pipeline) RecvFileNotify(raw []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, deliver func(FileNotify) error) error {
	return p.decryptThenDecompress(raw, compressor, encrypter, key, iv, pool.High, func(payload []byte) error {
		n, err := DecodeFileNotify(payload)
		if err != nil {
			return err
		}
		return deliver(n)
	})
}

func (p *Pipeline) decryptThenDecompress(raw []byte, compressor Compressor, encrypter Encrypter, key, iv []byte, finalPriority pool.Priority, final pool.JobFunc) error {
	return p.pool.Submit(pool.Job{
		Priority: pool.Normal,
		Payload:  raw,
		Fn: func(payload []byte) error {
			out, err := encrypter.Open(key, iv, payload)
			if err != nil {
				return err
			}
			if err := abortOnEmpty(cmn.KindCrypto, "decrypt", out); err != nil {
				return err
			}
			return p.pool.Submit(pool.Job{
				Priority: pool.Normal,
				Payload:  out,
				Fn: func(payload []byte) error {
					out, err := compressor.Decompress(payload)
					if err != nil {
						return err
					}
					if err := abortOnEmpty(cmn.KindCompression, "decompress", out); err != nil {
						return err
					}
					return p.pool.Submit(pool.Job{
						Priority: finalPriority,
						Payload:  out,
						Fn:       final,
					})
				},
			})
		},
	})
}
