package services

import "strings"

// cyrillicToLatin maps the Cyrillic letters that appear on licence plates to
// their visually identical Latin counterparts. Plates mix alphabets when typed
// on a Cyrillic keyboard; storage is canonical Latin.
var cyrillicToLatin = map[rune]rune{
	'А': 'A',
	'В': 'B',
	'Е': 'E',
	'К': 'K',
	'М': 'M',
	'Н': 'H',
	'О': 'O',
	'Р': 'P',
	'С': 'C',
	'Т': 'T',
	'У': 'Y',
	'Х': 'X',
}

// InvalidPlateCharError reports the first character that is neither a digit, a
// Latin letter, nor a mapped Cyrillic look-alike.
type InvalidPlateCharError struct {
	Char rune
}

func (e *InvalidPlateCharError) Error() string {
	return "invalid character in registration number: " + string(e.Char)
}

// NormalizeRegistration canonicalizes a registration number: uppercase, with
// confusable Cyrillic letters folded to Latin. The result contains only A-Z
// and 0-9, and the function is idempotent over its own output.
func NormalizeRegistration(raw string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))

	var out strings.Builder
	out.Grow(len(upper))
	for _, r := range upper {
		if latin, ok := cyrillicToLatin[r]; ok {
			out.WriteRune(latin)
			continue
		}
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			out.WriteRune(r)
			continue
		}
		return "", &InvalidPlateCharError{Char: r}
	}
	return out.String(), nil
}
