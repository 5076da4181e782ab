package vfs

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SniffLen is the number of leading bytes inspected by IsBinary.
const SniffLen = 1024

// Encoding represents a character encoding.
type Encoding string

const (
	// EncodingUTF8 is UTF-8 encoding (default).
	EncodingUTF8 Encoding = "utf-8"

	// EncodingUTF8BOM is UTF-8 encoding with BOM.
	EncodingUTF8BOM Encoding = "utf-8-bom"

	// EncodingUTF16LE is UTF-16 Little Endian.
	EncodingUTF16LE Encoding = "utf-16le"

	// EncodingUTF16BE is UTF-16 Big Endian.
	EncodingUTF16BE Encoding = "utf-16be"

	// EncodingInvalid is content that is not valid UTF-8 and has no BOM.
	EncodingInvalid Encoding = "invalid"

	// EncodingASCII is ASCII encoding.
	EncodingASCII Encoding = "ascii"
)

// BOM (Byte Order Mark) constants
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding classifies content by its BOM, then by UTF-8 validity.
func DetectEncoding(content []byte) Encoding {
	switch {
	case len(content) == 0:
		return EncodingUTF8
	case bytes.HasPrefix(content, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(content, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(content, bomUTF16BE):
		return EncodingUTF16BE
	case !utf8.Valid(content):
		return EncodingInvalid
	case isASCII(content):
		return EncodingASCII
	default:
		return EncodingUTF8
	}
}

// IsBinary reports whether content looks binary: a NUL byte within the
// first SniffLen bytes is sufficient evidence.
func IsBinary(content []byte) bool {
	sample := content
	if len(sample) > SniffLen {
		sample = sample[:SniffLen]
	}
	return bytes.IndexByte(sample, 0) >= 0
}

// DecodeText converts file content to a UTF-8 string.
//
// A leading BOM selects UTF-8, UTF-16LE or UTF-16BE and is dropped. Without
// a BOM the content is read as UTF-8 and every invalid byte sequence is
// replaced with U+FFFD, so only a broken transform yields an error.
func DecodeText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", nil
	}
	if DetectEncoding(content) == EncodingASCII {
		return string(content), nil
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, content)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

// isASCII returns true if all bytes are ASCII (< 128).
func isASCII(content []byte) bool {
	for _, b := range content {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
