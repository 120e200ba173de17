package config

import (
	"bytes"

	yamlv2 "gopkg.in/yaml.v2"
)

// Equal reports whether c and other represent the same document. other may
// be a *Config or a plain mapping. The comparison is made on the canonical
// YAML form of both trees, which is insensitive to mapping order.
func (c *Config) Equal(other any) bool {
	u, ok := asMap(other)
	if !ok {
		return false
	}
	mine, err := yamlv2.Marshal(c.data)
	if err != nil {
		// Unreachable for trees built by this package, but possible if a
		// caller stored an unmarshalable value.
		return false
	}
	theirs, err := yamlv2.Marshal(u)
	if err != nil {
		return false
	}
	return bytes.Equal(mine, theirs)
}
