package csvparser

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Encoding names reported in ParseResult.EncodingUsed.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeInput converts raw file bytes to text. Valid UTF-8 (with or without
// BOM) is taken as is; anything else is read as Windows-1252, the encoding
// German accounting software exports by default. If that decode fails the
// bytes are read as UTF-8 with invalid sequences replaced.
func decodeInput(data []byte) (string, string) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if utf8.Valid(data) {
		return string(data), EncodingUTF8
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err == nil {
		return string(decoded), EncodingWindows1252
	}

	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), EncodingUTF8
}

// detectDelimiter picks ';' when the header line contains one, ',' otherwise.
func detectDelimiter(text string) rune {
	header := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		header = text[:i]
	}
	if strings.ContainsRune(header, ';') {
		return ';'
	}
	return ','
}
