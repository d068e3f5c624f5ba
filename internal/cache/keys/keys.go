// Package keys derives place group ids and cache keys.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// GroupPrefix marks ids of groups built from geoDB collections.
const GroupPrefix = "DB-"

// GroupID turns a descriptor identifier into a URL and key safe id.
func GroupID(identifier string) string {
	return GroupPrefix + sanitize(strings.TrimSpace(identifier))
}

// Fingerprint hashes the parts that make a descriptor distinct.
func Fingerprint(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Disambiguate appends a short fingerprint to id.
func Disambiguate(id string, fp uint64) string {
	return fmt.Sprintf("%s-%08x", id, uint32(fp>>32))
}

// GroupKey is the cache key for a place group.
func GroupKey(prefix, id string) string {
	if prefix == "" {
		return "group:" + id
	}
	return prefix + ":group:" + id
}

// GroupPattern matches every group key under prefix, for SCAN.
func GroupPattern(prefix string) string {
	return GroupKey(prefix, "*")
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
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
