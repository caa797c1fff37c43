package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Akzente und diakritische Zeichen werden vor dem Ersetzen entfernt,
// damit "Müller" zu "muller" wird und nicht zu "m_ller".
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Make normalisiert einen Anzeigenamen zu einem URL- und Topic-sicheren
// Bezeichner: Kleinbuchstaben, alles außer [a-z0-9] wird zu '_',
// Wiederholungen werden zusammengefasst.
func Make(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastUnderscore := true // führende Unterstriche unterdrücken
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.TrimRight(b.String(), "_")
}
