package groupkey

import (
	"strings"
	"unicode/utf8"

	"github.com/aevon-lab/geosplit/internal/core/record"
)

// Identifier is a filesystem-safe group name. It never contains a path separator.
type Identifier string

func (id Identifier) String() string { return string(id) }

// MaxFileNameBytes is the file name limit of common filesystems (ext4, APFS, NTFS in UTF-8).
const MaxFileNameBytes = 255

// MaxBytes caps a sanitized name so that name, collision suffix and the longest
// extension (".geojson") together fit in MaxFileNameBytes.
const MaxBytes = MaxFileNameBytes - suffixBytes - len(".geojson")

// suffixBytes is the length of "-" + an 8 digit hex collision tag.
const suffixBytes = 1 + 8

const replacement = '-'

// reservedNames are device names Windows refuses as file names, with or without extension.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Normalize maps a group key to its identifier. ok is false for absent keys
// (null or empty string), which have no deterministic identifier.
func Normalize(v record.Value) (id Identifier, ok bool) {
	if v.IsAbsent() {
		return "", false
	}
	return Identifier(Sanitize(v.String())), true
}

// Sanitize replaces every character that is illegal in a file name on common
// filesystems with '-' and cuts the result to at most MaxBytes bytes.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if illegal(r) {
			r = replacement
		}
		// Truncate on a rune boundary, keeping one byte for the reserved-name dash.
		if b.Len()+utf8.RuneLen(r) > MaxBytes-1 {
			break
		}
		b.WriteRune(r)
	}
	out := b.String()

	// "." and ".." name directories.
	if strings.Trim(out, ".") == "" {
		return strings.Repeat(string(replacement), utf8.RuneCountInString(out))
	}

	stem := out
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if _, reserved := reservedNames[strings.ToUpper(stem)]; reserved {
		out += string(replacement)
	}
	return out
}

func illegal(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return r < 0x20 || r == 0x7f || r == utf8.RuneError
}
