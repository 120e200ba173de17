package config

import (
	"strings"
	"unicode"
)

// escapeSentinel stands in for an escaped delimiter while splitting. It can
// not itself appear in a key that uses escaping.
const escapeSentinel = "\r"

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// splitKey splits the argument for Get/Set/Delete/Contains into hierarchy
// segments.
//
// For a string key the first character selects the delimiter unless it is
// alphanumeric, in which case the whole string is a single key. The
// delimiter can be escaped inside a key with a backslash. A slice is used
// as an explicit segment sequence, any other value is wrapped as a single
// segment.
func splitKey(key any) ([]any, error) {
	switch k := key.(type) {
	case string:
		if k == "" {
			return []any{k}, nil
		}
		runes := []rune(k)
		if isAlnum(runes[0]) {
			return []any{k}, nil
		}
		d := string(runes[0])
		rest := string(runes[1:])
		escaped := `\` + d
		replaced := false
		if strings.Contains(rest, escaped) {
			if doubled := `\` + escaped; strings.Contains(rest, doubled) {
				return nil, &MalformedKeyError{
					Key:    k,
					Reason: "escaping an escaped delimiter (" + doubled + ") is not yet supported",
				}
			}
			if strings.Contains(rest, escapeSentinel) || d == escapeSentinel {
				return nil, &MalformedKeyError{
					Key:    k,
					Reason: "can not use character \\r in a hierarchical key or as delimiter if escaping the delimiter",
				}
			}
			rest = strings.ReplaceAll(rest, escaped, escapeSentinel)
			replaced = true
		}
		parts := strings.Split(rest, d)
		segments := make([]any, len(parts))
		for i, p := range parts {
			if replaced {
				p = strings.ReplaceAll(p, escapeSentinel, d)
			}
			segments[i] = p
		}
		return segments, nil
	case []any:
		return append([]any(nil), k...), nil
	case []string:
		segments := make([]any, len(k))
		for i, s := range k {
			segments[i] = s
		}
		return segments, nil
	default:
		// Not sure what this is so try it anyway.
		return []any{key}, nil
	}
}

// keyHierarchy resolves the key hierarchy for accessing the document. A
// name that is available verbatim as a top-level key is used directly,
// regardless of the presence of any nominal delimiter. This keeps plain
// iteration and membership checks working without delimiter inference.
func (c *Config) keyHierarchy(key any) ([]any, error) {
	if s, ok := key.(string); ok {
		if _, present := c.data[s]; present {
			return []any{s}, nil
		}
	}
	return splitKey(key)
}
