package uuidv7

import "errors"

// ErrInvalidFormat is returned by Parse when the input is not a
// well-formed 36-character hyphenated UUID string.
var ErrInvalidFormat = errors.New("uuidv7: invalid format")

// Parse is a strict parser for the standard 36-character hyphenated
// form (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx). Dashes are accepted
// only at positions 8, 13, 18, and 23; anything else is rejected.
// It does not require the parsed value to be a v7 UUID — callers that
// care should check IsV7 themselves.
func Parse(s string) (UUID, error) {
	if len(s) != 36 {
		return Nil, ErrInvalidFormat
	}
	if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return Nil, ErrInvalidFormat
	}

	var u UUID
	src := 0
	for i := 0; i < 16; i++ {
		if src == 8 || src == 13 || src == 18 || src == 23 {
			src++
		}
		hi, ok1 := fromHexChar(s[src])
		lo, ok2 := fromHexChar(s[src+1])
		if !ok1 || !ok2 {
			return Nil, ErrInvalidFormat
		}
		u[i] = hi<<4 | lo
		src += 2
	}
	return u, nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
