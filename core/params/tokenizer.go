package params

import "strings"

const (
	listSeparator = ','
	escapeChar    = '\\'
)

// SplitValues splits a raw string parameter into its ordered atomic values.
// The comma is the list separator; a backslash-escaped comma is a literal
// comma inside one value, and the escape character is stripped from the
// output. A string without unescaped commas yields a one-element sequence.
// No trimming or case folding happens here; value interpretation belongs to
// the consuming compiler.
func SplitValues(raw string) []string {
	var (
		values []string
		sb     strings.Builder
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == escapeChar && i+1 < len(raw) && raw[i+1] == listSeparator:
			sb.WriteByte(listSeparator)
			i++
		case c == listSeparator:
			values = append(values, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	return append(values, sb.String())
}
