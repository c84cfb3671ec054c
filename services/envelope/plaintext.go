package envelope

import (
	"encoding/json"
	"errors"
)

var ErrNotStructured = errors.New("plaintext is not structured data")

// Plaintext is a decrypted payload. Whether it is structured JSON or raw text
// is decided once, at decode time.
type Plaintext struct {
	raw        []byte
	structured bool
}

func newPlaintext(raw []byte) Plaintext {
	return Plaintext{raw: raw, structured: json.Valid(raw) && isContainer(raw)}
}

// isContainer reports whether raw JSON is an object or array. Bare JSON
// scalars such as "42" are treated as text.
func isContainer(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

func (p Plaintext) IsStructured() bool { return p.structured }

func (p Plaintext) Text() string { return string(p.raw) }

func (p Plaintext) Bytes() []byte { return p.raw }

// Decode unmarshals a structured payload into v.
func (p Plaintext) Decode(v any) error {
	if !p.structured {
		return ErrNotStructured
	}
	return json.Unmarshal(p.raw, v)
}
