package config

import (
	"github.com/mitchellh/mapstructure"
)

// Unmarshal decodes the value at key into target, which must be a pointer
// to a struct or mapping. Fields are matched through yaml struct tags.
// String values are expanded from the environment and duration strings are
// parsed into time.Duration fields. Use Root as the key to decode the
// whole document.
func (c *Config) Unmarshal(key, target any) error {
	var source any = c.data
	if key != nil && key != Root {
		v, err := c.Get(key)
		if err != nil {
			return err
		}
		if sub, ok := v.(*Config); ok {
			source = sub.data
		} else {
			source = v
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       ValDecodeHookFunc(true, true),
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(source)
}
