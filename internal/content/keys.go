package content

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// allItemsKey caches the unfiltered map-data response.
const allItemsKey = "content:all"

// CacheKey builds the cache key for a region's item list. Region names are
// free text (often non-ASCII), so the key carries a sanitized prefix for
// debuggability and an xxhash of the exact name for identity.
func CacheKey(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		return allItemsKey
	}

	safe := sanitizeForKey(region)
	const maxRegionTextLen = 80
	if len(safe) > maxRegionTextLen {
		safe = safe[:maxRegionTextLen]
	}

	sum := xxhash.Sum64String(region)
	return fmt.Sprintf("content:region=%s:h=%016x", safe, sum)
}

func sanitizeForKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
