package qglib

import (
	"golang.org/x/text/encoding/unicode"
)

// UTF16String holds UTF-16LE encoded text. Values store it as a regular
// string, it is converted when it enters or leaves a Value.
type UTF16String []byte

var utf16Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func NewUTF16String(s string) (UTF16String, error) {
	encoded, err := utf16Encoding.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, err
	}
	return UTF16String(encoded), nil
}

func (s UTF16String) Decode() (string, error) {
	decoded, err := utf16Encoding.NewDecoder().Bytes(s)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (s UTF16String) String() string {
	decoded, err := s.Decode()
	if err != nil {
		return ""
	}
	return decoded
}
