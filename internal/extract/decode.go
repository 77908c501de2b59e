// Package extract turns uploaded bytes into text for the anonymizer.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrUndecodableInput is returned when bytes cannot be read as text under any
// supported encoding.
var ErrUndecodableInput = errors.New("input cannot be decoded as text")

// Encoding names the encoding a document was decoded from.
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Bytes Windows-1252 leaves unassigned.
var cp1252Undefined = []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

// Decode converts data to a string. UTF-8 is tried first, then UTF-16 when a
// byte order mark says so, then Windows-1252 and finally ISO-8859-1.
func Decode(data []byte) (string, Encoding, error) {
	if len(data) == 0 {
		return "", EncodingUTF8, nil
	}

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, EncodingUTF16LE)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, EncodingUTF16BE)
	}

	if bytes.IndexByte(data, 0) >= 0 {
		return "", "", fmt.Errorf("%w: binary content", ErrUndecodableInput)
	}

	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	if !hasUndefined1252(data) {
		return decodeWith(charmap.Windows1252, data, EncodingWindows1252)
	}
	return decodeWith(charmap.ISO8859_1, data, EncodingISO88591)
}

func hasUndefined1252(data []byte) bool {
	for _, b := range cp1252Undefined {
		if bytes.IndexByte(data, b) >= 0 {
			return true
		}
	}
	return false
}

func decodeWith(enc encoding.Encoding, data []byte, name Encoding) (string, Encoding, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrUndecodableInput, name, err)
	}
	return string(out), name, nil
}

// AcceptedExtension reports whether a file name has a text format the
// extractor handles.
func AcceptedExtension(name string) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "txt", "csv", "log", "":
		return true
	}
	return false
}
