package tree

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/surrealdb/pagetree/pkg/models"
)

// fallbackSegment names a page whose title has no usable characters.
const fallbackSegment = "page"

// Slugify turns a title into a lowercase path segment made of letters,
// digits and single dashes. Accents are folded, so "Café Menü" becomes
// "cafe-menu".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return sb.String()
}

// segmentFor returns the path segment for a new page.
func segmentFor(title string) string {
	if seg := Slugify(title); seg != "" {
		return seg
	}
	return fallbackSegment
}

// rebaseSlug replaces the oldBase prefix of slug with newBase. It reports
// false and leaves slug alone unless slug sits under oldBase segment-wise.
func rebaseSlug(slug, oldBase, newBase string) (string, bool) {
	if oldBase == "" || newBase == "" {
		return slug, false
	}
	prefix := models.ChildPrefix(oldBase)
	if !strings.HasPrefix(slug, prefix) || len(slug) == len(prefix) {
		return slug, false
	}
	return models.JoinPath(newBase, slug[len(prefix):]), true
}

// suffixed appends "-n" to candidate for n >= 2.
func suffixed(candidate string, n int) string {
	if n < 2 {
		return candidate
	}
	return candidate + "-" + strconv.Itoa(n)
}

// uniquePath returns candidate, or candidate with the first free numeric
// suffix when another page already has that path.
func (t *Tree) uniquePath(ctx context.Context, candidate string) (string, error) {
	for n := 1; ; n++ {
		path := suffixed(candidate, n)
		existing, err := t.byPath(ctx, path)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return path, nil
		}
	}
}

// uniqueSlug is uniquePath for slugs.
func (t *Tree) uniqueSlug(ctx context.Context, candidate string) (string, error) {
	for n := 1; ; n++ {
		slug := suffixed(candidate, n)
		existing, err := t.bySlug(ctx, slug)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return slug, nil
		}
	}
}
