package config

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Serializer converts between document trees and their textual form. The
// root argument to Decode is the directory of the file being parsed and is
// used to resolve relative include directives.
type Serializer interface {
	Encode(v any) (out []byte, err error)
	Decode(blob []byte, root string) (map[string]any, error)
}

// Driver interface.
type Driver interface {
	Name() string
	Aliases() []string // alias format names, use for resolve format name
	Serializer
}

// StdDriver struct
type StdDriver struct {
	name       string
	aliases    []string
	serializer Serializer
}

// NewDriver new std driver instance.
func NewDriver(name string, serializer Serializer) *StdDriver {
	return &StdDriver{name: name, serializer: serializer}
}

// WithAliases set aliases for driver
func (d *StdDriver) WithAliases(aliases ...string) *StdDriver {
	d.aliases = append(d.aliases, aliases...)
	return d
}

// Name of driver
func (d *StdDriver) Name() string { return d.name }

// Aliases format name of driver
func (d *StdDriver) Aliases() []string { return d.aliases }

// Decode of driver
func (d *StdDriver) Decode(blob []byte, root string) (map[string]any, error) {
	return d.serializer.Decode(blob, root)
}

// Encode of driver
func (d *StdDriver) Encode(v any) ([]byte, error) {
	return d.serializer.Encode(v)
}

// drivers that config files are dispatched to by extension.
var drivers = []Driver{YamlDriver, JSONDriver}

// driverFor resolves the driver for a file path from its extension,
// honouring driver aliases.
func driverFor(path string) (Driver, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, d := range drivers {
		if d.Name() == format {
			return d, nil
		}
		for _, alias := range d.Aliases() {
			if alias == format {
				return d, nil
			}
		}
	}
	return nil, &UnsupportedFormatError{Path: path}
}

/*************************************************************
 * Yaml driver
 *************************************************************/

// YamlDriver instance for yaml
var YamlDriver = NewDriver("yaml", &yamlSerializer{}).WithAliases("yml")

type yamlSerializer struct{}

// Decode for the driver
func (s *yamlSerializer) Decode(blob []byte, root string) (map[string]any, error) {
	return decodeYAMLDocument(blob, root)
}

// Encode for the driver
func (s *yamlSerializer) Encode(v any) (out []byte, err error) {
	return yaml.Marshal(v)
}

/*************************************************************
 * Json driver
 *************************************************************/

// JSONDriver instance for json. JSON documents carry no node tags, so the
// inline !include directive is not available; the includeConfigs key is
// still honoured because it is resolved on the decoded tree.
var JSONDriver = NewDriver("json", &jsonSerializer{})

type jsonSerializer struct{}

// Decode for the driver
func (s *jsonSerializer) Decode(blob []byte, _ string) (map[string]any, error) {
	var m map[string]any
	decoder := json.NewDecoder(strings.NewReader(string(blob)))
	if err := decoder.Decode(&m); err != nil && err != io.EOF {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Encode for the driver
func (s *jsonSerializer) Encode(v any) (out []byte, err error) {
	return json.Marshal(v)
}
