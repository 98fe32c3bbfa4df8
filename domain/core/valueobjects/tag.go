package valueobjects

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeTag trims and lower-cases a tag. Tags are compared in this form
// everywhere they are used as keys.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags returns the distinct, sorted, normalized tag set.
func NormalizeTags(tags []string, maxTags, maxLength int) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, raw := range tags {
		tag := NormalizeTag(raw)
		if tag == "" {
			continue
		}
		if maxLength > 0 && utf8.RuneCountInString(tag) > maxLength {
			return nil, fmt.Errorf("tag %q exceeds %d characters", tag, maxLength)
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if maxTags > 0 && len(out) > maxTags {
		return nil, fmt.Errorf("too many tags: %d (max %d)", len(out), maxTags)
	}

	sort.Strings(out)
	return out, nil
}

// FirstLetter returns the partition value of a tag in the by-letter index.
func FirstLetter(tag string) string {
	tag = NormalizeTag(tag)
	r, _ := utf8.DecodeRuneInString(tag)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToLower(r))
}
