package extract

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText returns content as a UTF-8 string. Input that is not valid UTF-8
// is re-decoded as ISO 8859-1, which cannot fail (every byte maps to a rune),
// so decoding never rejects a file outright.
func decodeText(content []byte) (text string, warning string) {
	if utf8.Valid(content) {
		return string(content), ""
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		// Latin-1 decoding is total; this path is unreachable in practice.
		return string(content), "encoding: undecodable bytes kept verbatim"
	}
	return string(decoded), "encoding: input was not valid UTF-8, decoded as ISO 8859-1"
}
