package session

import "encoding/hex"

// hexEncode/hexDecode give the handshake's binary key/iv an ASCII-safe
// representation for the textual container's string value (spec §6
// "key (string), iv (string)"); a trivial wire-adjacent encoding with no
// protocol meaning of its own, so stdlib encoding/hex is the right tool
// rather than reaching for a library.

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexDecode(s string) ([]byte, error) { return hex.DecodeString(s) }
