// Package cmn holds the types and policy shared by every msgline package:
// configuration, the error-kind taxonomy from the error handling design,
// and small cross-cutting helpers.
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind is the fixed taxonomy of failures a session or pipeline stage
// can report. It exists so that session/server code can decide
// fatal-vs-recoverable from one switch instead of string-matching errors.
type ErrorKind int

const (
	KindWireFormat ErrorKind = iota
	KindContainerParse
	KindHandshakeRejected
	KindHandshakeExpired
	KindIo
	KindCrypto
	KindCompression
	KindFileIo
	KindIllegalOperation
)

func (k ErrorKind) String() string {
	switch k {
	case KindWireFormat:
		return "wire-format"
	case KindContainerParse:
		return "container-parse"
	case KindHandshakeRejected:
		return "handshake-rejected"
	case KindHandshakeExpired:
		return "handshake-expired"
	case KindIo:
		return "io"
	case KindCrypto:
		return "crypto"
	case KindCompression:
		return "compression"
	case KindFileIo:
		return "file-io"
	case KindIllegalOperation:
		return "illegal-operation"
	default:
		return "unknown"
	}
}

// Error is the concrete error type every msgline package returns; Kind
// drives propagation policy (see IsFatal), Err carries the wrapped
// underlying error when there is one.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewErr builds an *Error, wrapping cause (if non-nil) with pkg/errors so a
// stack trace survives into the log line when one is printed with %+v.
func NewErr(kind ErrorKind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = errors.Wrap(cause, msg)
	}
	return &Error{Kind: kind, Msg: msg, Err: wrapped}
}

// KindOf extracts the ErrorKind from err, defaulting to KindIo for errors
// this package didn't originate (e.g. raw *net.OpError).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIo
}

// IsFatal encodes the §7 propagation-policy table in one place: whether an
// error of this kind, observed on an established session, must trigger
// disconnect rather than being absorbed and reported to the caller.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindWireFormat, KindCrypto, KindCompression, KindContainerParse, KindIo:
		return true
	case KindHandshakeRejected, KindHandshakeExpired:
		return true
	case KindFileIo, KindIllegalOperation:
		return false
	default:
		return false
	}
}
