package normalize

import "strings"

// Key converts a raw address into the deterministic slug used as the cache
// key fragment. Leading and trailing whitespace is dropped, letters are
// lowercased, and every run of non-alphanumeric characters collapses to a
// single hyphen, so "  123 Main St " and "123 main st" produce the same key.
// Addresses differing only in internal punctuation may collide; the same raw
// string is expected to recur verbatim from the same client.
func Key(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}
