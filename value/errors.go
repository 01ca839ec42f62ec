package value

import "errors"

var (
	errMalformedEscape  = errors.New("container: malformed escape sequence")
	errUnknownType      = errors.New("container: unknown type code")
	errTruncated        = errors.New("container: truncated value")
	errMissingMarker    = errors.New("container: missing header/data marker")
	errUnbalancedBraces = errors.New("container: unbalanced brackets")
	errBadWidth         = errors.New("container: declared data width mismatch for fixed-width type")
)
