package worksession

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 60

// Slugify converts a session title into a filesystem-safe directory slug.
// Unicode is NFKC-normalized first so full-width characters fold to their
// ASCII equivalents, then everything outside [a-z0-9] becomes a hyphen.
func Slugify(title string) string {
	normalized := norm.NFKC.String(title)
	normalized = strings.ToLower(normalized)

	var b strings.Builder
	prevHyphen := false
	for _, r := range normalized {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/' || r == '.':
			if !prevHyphen && b.Len() > 0 {
				b.WriteRune('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return "ws"
	}
	return slug
}
