package synthesis

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// typographicReplacer maps smart punctuation the model tends to emit onto
// plain ASCII equivalents.
var typographicReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"‚", "'", // low single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"„", `"`, // low double quote
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
	"−", "-", // minus sign
	"…", "...", // ellipsis
	" ", " ", // no-break space
)

// Sanitize normalizes model-produced text to plain, renderer-safe ASCII-ish
// prose: NFKC normalization, smart punctuation mapped to ASCII, zero-width
// and control runes dropped, whitespace collapsed, and `$`/backtick escaped.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	s = norm.NFKC.String(s)
	s = typographicReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isInvisible(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	s = strings.Join(strings.Fields(s), " ")
	return escapeMeta(s)
}

// isInvisible reports zero-width and control runes. Whitespace is kept here
// and collapsed later.
func isInvisible(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return unicode.IsControl(r) && !unicode.IsSpace(r)
}

// escapeMeta backslash-escapes `$` and backtick so the text is inert in shell
// and markdown contexts. Already-escaped occurrences are left alone, which
// keeps the whole pass idempotent.
func escapeMeta(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	escaped := false
	for _, r := range s {
		if (r == '$' || r == '`') && !escaped {
			b.WriteByte('\\')
		}
		escaped = r == '\\' && !escaped
		b.WriteRune(r)
	}
	return b.String()
}
