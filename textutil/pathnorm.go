package textutil

import (
	"errors"
	"strings"
)

const longPathPrefix = `\\?\`

// ErrInvalidTrailing is returned by NormalizePath for a segment ending in dots
// or spaces, which Windows silently strips
var ErrInvalidTrailing = errors.New("path segment ends with a dot or space")

// illegal reports characters no file or directory name may contain
func illegal(r rune) bool {
	return r < 32 || strings.ContainsRune(`<>:"/\|?*`, r)
}

// NormalizeFilename replaces every character that is illegal in a file name
// (separators included) with sub, and a trailing run of dots and spaces with a
// single sub. sub is expected to be legal itself.
func NormalizeFilename(text string, sub rune) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if illegal(r) {
			b.WriteRune(sub)
			continue
		}
		b.WriteRune(r)
	}
	name := b.String()
	trimmed := strings.TrimRight(name, ". ")
	if trimmed != name {
		return trimmed + string(sub)
	}
	return name
}

// NormalizePath replaces illegal characters in every segment of a path with sub
// while keeping separators and a drive (C:), UNC (\\server\share) or long path
// (\\?\) prefix. A segment ending in dots or spaces is rejected with
// ErrInvalidTrailing, except under the long path prefix where names are taken
// verbatim.
func NormalizePath(text string, sub rune) (string, error) {
	prefix, rest := splitPathPrefix(text)
	long := strings.HasPrefix(prefix, longPathPrefix)

	segments := strings.FieldsFunc(rest, isSeparator)
	separators := separatorsOf(rest)

	var b strings.Builder
	b.Grow(len(text))
	b.WriteString(prefix)

	// leading separators (a rooted path) are kept as they are
	i := 0
	for i < len(rest) && isSeparator(rune(rest[i])) {
		b.WriteByte(rest[i])
		i++
	}

	for n, segment := range segments {
		if !long && segment != "." && segment != ".." && strings.TrimRight(segment, ". ") != segment {
			return "", ErrInvalidTrailing
		}
		for _, r := range segment {
			if illegal(r) {
				b.WriteRune(sub)
				continue
			}
			b.WriteRune(r)
		}
		if n < len(separators) {
			b.WriteString(separators[n])
		}
	}
	return b.String(), nil
}

// IsValidPath reports whether NormalizePath would accept text unchanged
func IsValidPath(text string) bool {
	normalized, err := NormalizePath(text, '_')
	return err == nil && normalized == text
}

func isSeparator(r rune) bool {
	return r == '\\' || r == '/'
}

// splitPathPrefix separates the root prefix that NormalizePath must not touch
func splitPathPrefix(text string) (string, string) {
	switch {
	case strings.HasPrefix(text, longPathPrefix):
		prefix := longPathPrefix
		rest := text[len(longPathPrefix):]
		if hasDrive(rest) {
			prefix += rest[:2]
			rest = rest[2:]
		}
		return prefix, rest
	case strings.HasPrefix(text, `\\`) || strings.HasPrefix(text, "//"):
		// \\server\share: both names are part of the root
		rest := text[2:]
		end := 0
		for parts := 0; end < len(rest) && parts < 2; end++ {
			if isSeparator(rune(rest[end])) {
				parts++
				if parts == 2 {
					break
				}
			}
		}
		return text[:2+end], rest[end:]
	case hasDrive(text):
		return text[:2], text[2:]
	}
	return "", text
}

func hasDrive(text string) bool {
	if len(text) < 2 || text[1] != ':' {
		return false
	}
	c := text[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// separatorsOf returns the separator runs that follow each segment of rest
func separatorsOf(rest string) []string {
	var runs []string
	i := 0
	for i < len(rest) && isSeparator(rune(rest[i])) {
		i++
	}
	for i < len(rest) {
		for i < len(rest) && !isSeparator(rune(rest[i])) {
			i++
		}
		start := i
		for i < len(rest) && isSeparator(rune(rest[i])) {
			i++
		}
		if start < i {
			runs = append(runs, rest[start:i])
		}
	}
	return runs
}
