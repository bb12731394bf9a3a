package keystore

import (
	"encoding/json"
	"errors"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/awnumar/memguard"
)

const redacted = "[REDACTED]"

// SecretString holds secret text (a password, phrase or seed) so it can be
// wiped once it is no longer needed. Formatting it never reveals the value.
type SecretString struct {
	b []byte
}

// NewSecretString copies s into a new SecretString.
func NewSecretString(s string) *SecretString {
	return &SecretString{b: []byte(s)}
}

// NewSecretBytes copies b into a new SecretString; the caller keeps
// ownership of b and should wipe it.
func NewSecretBytes(b []byte) *SecretString {
	return &SecretString{b: append([]byte(nil), b...)}
}

// Expose returns the underlying bytes without copying. They are zeroed by Wipe.
func (s *SecretString) Expose() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Reveal returns the value as a string. The returned string cannot be wiped.
func (s *SecretString) Reveal() string {
	if s == nil {
		return ""
	}
	return string(s.b)
}

// Empty reports whether s is nil or holds no bytes.
func (s *SecretString) Empty() bool {
	return s == nil || len(s.b) == 0
}

// Wipe zeroes the secret in place.
func (s *SecretString) Wipe() {
	if s == nil {
		return
	}
	memguard.WipeBytes(s.b)
	s.b = nil
}

func (s *SecretString) String() string   { return redacted }
func (s *SecretString) GoString() string { return redacted }

func (s *SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s.b))
}

// UnmarshalJSON decodes a JSON string straight into the secret's buffer so no
// immutable copy of the value is left behind.
func (s *SecretString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	b, err := unquoteJSON(data)
	if err != nil {
		return err
	}
	s.b = b
	return nil
}

var errNotJSONString = errors.New("secret must be a JSON string")

func unquoteJSON(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return nil, errNotJSONString
	}
	in := data[1 : len(data)-1]
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case c == '"' || c < 0x20:
			memguard.WipeBytes(out)
			return nil, errNotJSONString
		case c != '\\':
			out = append(out, c)
			continue
		}
		i++
		if i >= len(in) {
			memguard.WipeBytes(out)
			return nil, errNotJSONString
		}
		switch in[i] {
		case '"', '\\', '/':
			out = append(out, in[i])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, n := decodeUnicodeEscape(in[i-1:])
			if n == 0 {
				memguard.WipeBytes(out)
				return nil, errNotJSONString
			}
			out = utf8.AppendRune(out, r)
			i += n - 2
		default:
			memguard.WipeBytes(out)
			return nil, errNotJSONString
		}
	}
	return out, nil
}

// decodeUnicodeEscape reads a \uXXXX escape, joining a following low
// surrogate when present. It returns the rune and the bytes consumed, or 0
// bytes when the escape is malformed.
func decodeUnicodeEscape(in []byte) (rune, int) {
	r, ok := hex4(in)
	if !ok {
		return 0, 0
	}
	if !utf16.IsSurrogate(r) {
		return r, 6
	}
	if r2, ok := hex4(in[6:]); ok {
		if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
			return dec, 12
		}
	}
	return utf8.RuneError, 6
}

func hex4(in []byte) (rune, bool) {
	if len(in) < 6 || in[0] != '\\' || in[1] != 'u' {
		return 0, false
	}
	var r rune
	for _, c := range in[2:6] {
		switch {
		case '0' <= c && c <= '9':
			c -= '0'
		case 'a' <= c && c <= 'f':
			c = c - 'a' + 10
		case 'A' <= c && c <= 'F':
			c = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | rune(c)
	}
	return r, true
}
