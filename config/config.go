// Package config implements the hierarchical configuration substrate used
// by the butler framework.
//
// A Config is a nested key/value document. Hierarchical values may be
// accessed with delimited notation or as an explicit segment slice. When a
// string key is given, the delimiter is picked up from its first character,
// so Get(".a.b.c"), Get("/a/b/c") and Get([]any{"a", "b", "c"}) all address
// the same value. If the first character is alphanumeric no splitting takes
// place: Get("a.b.c") addresses the single key "a.b.c". The delimiter can
// be escaped with a backslash if it is also part of a key.
//
// Adding a multi-level key implicitly creates any nesting levels that do
// not exist, but removing one does not remove now-empty nesting levels.
//
// Documents are loaded from YAML or JSON files. Two include directives are
// understood: the !include YAML tag, which replaces a node with the parsed
// content of another file, and the reserved includeConfigs key, which
// merges one or more referenced files into its position in the tree.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/provingground-moe/daf-butler/internal/unreachable"
)

var log = logrus.WithField("module", "daf.butler.config")

// DefaultDelimiter is the delimiter candidate used when rendering external
// key names, see Names.
const DefaultDelimiter = "→"

// IncludeKey marks a position in the hierarchy where other config files
// should be merged in.
const IncludeKey = "includeConfigs"

// Root is a virtual key addressing the entire document, usable with
// Unmarshal and AsArray.
const Root = ""

// Config owns one nested document tree plus the delimiter used for
// rendering names and an optional source-file identity used to resolve
// relative includes.
type Config struct {
	data       map[string]any
	delim      string
	configFile string
}

func newEmpty() *Config {
	return &Config{data: map[string]any{}, delim: DefaultDelimiter}
}

// New builds a Config from other, which can be:
//
//   - nil: an empty Config is created.
//   - *Config: the other Config's values are deep-copied into this one.
//   - map[string]any: the values are merged into this Config.
//   - string: treated as a path to a config file on disk. The file is
//     parsed according to its extension and include directives are
//     resolved once.
func New(other any) (*Config, error) {
	c := newEmpty()
	switch o := other.(type) {
	case nil:
		return c, nil
	case *Config:
		c.data = deepCopyMap(o.data)
	case *SubsetConfig:
		c.data = deepCopyMap(o.Config.data)
	case map[string]any:
		if err := c.Update(o); err != nil {
			return nil, err
		}
	case string:
		if err := c.initFromFile(o); err != nil {
			return nil, err
		}
		if err := c.resolveIncludes(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("a config could not be loaded from %v (%T)", other, other)
	}
	return c, nil
}

// Copy returns an independent deep copy.
func (c *Config) Copy() *Config {
	n := newEmpty()
	n.data = deepCopyMap(c.data)
	return n
}

// initFromFile loads a persisted config, dispatching on the file extension.
func (c *Config) initFromFile(path string) error {
	drv, err := driverFor(path)
	if err != nil {
		return err
	}
	log.Debugf("Opening config file: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := drv.Decode(data, filepath.Dir(path))
	if err != nil {
		return err
	}
	c.data = m
	c.configFile = path
	return nil
}

// ConfigFile returns the path the Config was loaded from, if any.
func (c *Config) ConfigFile() string { return c.configFile }

// Delimiter returns the delimiter candidate used when rendering Names.
func (c *Config) Delimiter() string { return c.delim }

// SetDelimiter overrides the delimiter candidate used by Names. Child
// configs extracted with Get inherit a non-default delimiter.
func (c *Config) SetDelimiter(d string) { c.delim = d }

// Len returns the number of top-level keys.
func (c *Config) Len() int { return len(c.data) }

// Keys returns the top-level keys in sorted order.
func (c *Config) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) String() string {
	return fmt.Sprintf("Config(%v)", c.data)
}

/*************************************************************
 * hierarchy traversal
 *************************************************************/

// toIndex converts a segment to a sequence index.
func toIndex(k any) (int, bool) {
	switch v := k.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
	}
	return 0, false
}

// segmentString renders a segment as a mapping key.
func segmentString(k any) string {
	switch v := k.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}

// checkNextItem looks for segment k in container d and returns the child.
// Sequences are checked before mappings would be: for a sequence the
// segment is an index, falling back to a value membership test when it is
// not numeric. With create set, a missing mapping entry is filled with an
// empty mapping; sequences are never extended.
func checkNextItem(k, d any, create bool) (any, bool) {
	switch v := d.(type) {
	case nil:
		// Gone past the end of the hierarchy.
		return nil, false
	case []any:
		if idx, ok := toIndex(k); ok {
			if idx >= 0 && idx < len(v) {
				return v[idx], true
			}
			return nil, false
		}
		for _, item := range v {
			if reflect.DeepEqual(item, k) {
				return nil, true
			}
		}
		return nil, false
	case map[string]any:
		name := segmentString(k)
		if val, ok := v[name]; ok {
			return val, true
		}
		if create {
			m := map[string]any{}
			v[name] = m
			return m, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// findInHierarchy walks keys through the document. It returns the value
// found at each level and whether the full hierarchy resolved.
func (c *Config) findInHierarchy(keys []any, create bool) ([]any, bool) {
	var hierarchy []any
	var d any = c.data
	for _, k := range keys {
		next, there := checkNextItem(k, d, create)
		if !there {
			return hierarchy, false
		}
		hierarchy = append(hierarchy, next)
		d = next
	}
	return hierarchy, true
}

/*************************************************************
 * accessors
 *************************************************************/

// Get returns the value at key. A mapping result is wrapped as a new
// Config that inherits a non-default delimiter from its parent.
func (c *Config) Get(key any) (any, error) {
	keys, err := c.keyHierarchy(key)
	if err != nil {
		return nil, err
	}
	hierarchy, complete := c.findInHierarchy(keys, false)
	if !complete {
		return nil, &KeyNotFoundError{Key: key}
	}
	data := hierarchy[len(hierarchy)-1]
	if m, ok := data.(map[string]any); ok {
		sub, err := New(m)
		if err != nil {
			return nil, unreachable.Wrap(err)
		}
		if c.delim != DefaultDelimiter {
			sub.delim = c.delim
		}
		return sub, nil
	}
	return data, nil
}

// Set assigns value at key, creating an empty mapping for any missing
// intermediate level. A Config value is deep-copied in.
func (c *Config) Set(key, value any) error {
	keys, err := c.keyHierarchy(key)
	if err != nil {
		return err
	}
	last := keys[len(keys)-1]
	keys = keys[:len(keys)-1]

	switch v := value.(type) {
	case *Config:
		value = deepCopyMap(v.data)
	case *SubsetConfig:
		value = deepCopyMap(v.Config.data)
	}

	hierarchy, _ := c.findInHierarchy(keys, true)
	var data any = c.data
	if len(hierarchy) > 0 {
		data = hierarchy[len(hierarchy)-1]
	}

	switch d := data.(type) {
	case map[string]any:
		d[segmentString(last)] = value
	case []any:
		idx, ok := toIndex(last)
		if !ok {
			return fmt.Errorf("cannot use %v as an index into a sequence", last)
		}
		if idx < 0 || idx >= len(d) {
			return fmt.Errorf("sequence index %d out of range for key %v", idx, key)
		}
		d[idx] = value
	default:
		return fmt.Errorf("cannot assign %v inside a %T value", key, data)
	}
	return nil
}

// Delete removes the leaf entry at key. The full path must exist.
// Ancestors are left untouched even if now empty.
func (c *Config) Delete(key any) error {
	keys, err := c.keyHierarchy(key)
	if err != nil {
		return err
	}
	last := keys[len(keys)-1]
	keys = keys[:len(keys)-1]

	hierarchy, complete := c.findInHierarchy(keys, false)
	if !complete {
		return &KeyNotFoundError{Key: key}
	}
	var data any = c.data
	if len(hierarchy) > 0 {
		data = hierarchy[len(hierarchy)-1]
	}

	switch d := data.(type) {
	case map[string]any:
		name := segmentString(last)
		if _, ok := d[name]; !ok {
			return &KeyNotFoundError{Key: key}
		}
		delete(d, name)
	case []any:
		return fmt.Errorf("cannot delete %v from inside a sequence", key)
	default:
		return &KeyNotFoundError{Key: key}
	}
	return nil
}

// Contains reports whether the full key path resolves.
func (c *Config) Contains(key any) bool {
	keys, err := c.keyHierarchy(key)
	if err != nil {
		return false
	}
	_, complete := c.findInHierarchy(keys, false)
	return complete
}

// AsArray returns the value at key forced into sequence form. A string or
// non-sequence scalar is wrapped as a single-element slice, a sequence
// passes through unchanged. A missing key yields a nil slice.
func (c *Config) AsArray(key any) []any {
	var val any
	if key == nil || key == Root {
		val = c.data
	} else {
		v, err := c.Get(key)
		if err != nil {
			return nil
		}
		val = v
	}
	switch v := val.(type) {
	case string:
		return []any{v}
	case []any:
		return v
	default:
		return []any{v}
	}
}

/*************************************************************
 * merging
 *************************************************************/

// asMap extracts the underlying mapping from a value accepted as a merge
// or comparison operand.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case *Config:
		return m.data, true
	case *SubsetConfig:
		return m.Config.data, true
	}
	return nil, false
}

func doUpdate(d, u map[string]any) (map[string]any, error) {
	for k, v := range u {
		if vm, ok := asMap(v); ok {
			dm := map[string]any{}
			if cur, present := d[k]; present {
				cdm, ok := cur.(map[string]any)
				if !ok {
					return nil, &MergeTypeError{Value: cur}
				}
				dm = cdm
			}
			merged, err := doUpdate(dm, vm)
			if err != nil {
				return nil, err
			}
			d[k] = merged
		} else {
			d[k] = v
		}
	}
	return d, nil
}

// Update deep-merges other into c. An incoming mapping value is merged
// recursively into the existing value at that key; any other incoming
// value fully replaces the existing one.
//
// For example, with c holding {"a": {"b": 1}}, Update({"a": {"c": 2}})
// yields {"a": {"b": 1, "c": 2}} while Update({"a": 5}) yields {"a": 5}.
func (c *Config) Update(other any) error {
	u, ok := asMap(other)
	if !ok {
		return &MergeTypeError{Value: other}
	}
	_, err := doUpdate(c.data, u)
	return err
}

// Merge adds keys and values from other that do not exist in c. Values
// already present in c are never overwritten, recursively.
func (c *Config) Merge(other any) error {
	u, ok := asMap(other)
	if !ok {
		return &MergeTypeError{Value: other}
	}
	merged := deepCopyMap(u)
	if _, err := doUpdate(merged, c.data); err != nil {
		return err
	}
	c.data = merged
	return nil
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopyValue(val)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	return deepCopyValue(m).(map[string]any)
}

/*************************************************************
 * name enumeration
 *************************************************************/

// NameTuples returns segment tuples for the name hierarchies of all keys,
// each guaranteed to be usable to access the document. With topLevelOnly
// only the top level is returned.
func (c *Config) NameTuples(topLevelOnly bool) [][]any {
	if topLevelOnly {
		keys := c.Keys()
		out := make([][]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, []any{k})
		}
		return out
	}
	var keys [][]any
	collectKeyTuples(c.data, nil, &keys)
	return keys
}

func collectKeyTuples(d any, base []any, keys *[][]any) {
	appendLevel := func(k, val any) {
		level := make([]any, 0, len(base)+1)
		level = append(append(level, base...), k)
		*keys = append(*keys, level)
		switch val.(type) {
		case map[string]any, []any:
			collectKeyTuples(val, level, keys)
		}
	}
	switch v := d.(type) {
	case map[string]any:
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			appendLevel(k, v[k])
		}
	case []any:
		for i, val := range v {
			appendLevel(i, val)
		}
	}
}

// Names renders every tuple from NameTuples as a delimited string,
// including a leading delimiter. If delimiter is empty one is chosen
// automatically, starting from the Config's delimiter candidate and
// advancing to the next non-alphanumeric character until the chosen one
// appears nowhere in the rendered segments. Segments containing the
// delimiter are escaped with a backslash.
func (c *Config) Names(topLevelOnly bool, delimiter string) ([]string, error) {
	if topLevelOnly {
		return c.Keys(), nil
	}

	tuples := c.NameTuples(false)

	if delimiter != "" {
		for _, r := range delimiter {
			if isAlnum(r) {
				return nil, fmt.Errorf("supplied delimiter (%q) must not be alphanumeric", delimiter)
			}
		}
	} else {
		// Start with something, and ensure it does not need to be escaped
		// anywhere in the rendered names.
		delimiter = c.delim

		var b strings.Builder
		for _, tuple := range tuples {
			for _, s := range tuple {
				b.WriteString(segmentString(s))
			}
		}
		combined := b.String()

		ntries := 0
		for strings.Contains(combined, delimiter) {
			log.Debugf("Delimiter %q could not be used. Trying another.", delimiter)
			ntries++
			if ntries > 100 {
				return nil, fmt.Errorf("%w %s", ErrNoUsableDelimiter, c)
			}
			r := []rune(delimiter)[0]
			for {
				r++
				if !isAlnum(r) {
					break
				}
			}
			delimiter = string(r)
		}
	}
	log.Debugf("Using delimiter %q", delimiter)

	names := make([]string, 0, len(tuples))
	for _, tuple := range tuples {
		parts := make([]string, len(tuple))
		for i, s := range tuple {
			parts[i] = strings.ReplaceAll(segmentString(s), delimiter, `\`+delimiter)
		}
		names = append(names, delimiter+strings.Join(parts, delimiter))
	}
	return names, nil
}

/*************************************************************
 * i/o
 *************************************************************/

// dumpFirstKeys are written first, in this order, when serializing. The
// remaining keys follow in canonical order.
var dumpFirstKeys = []string{"cls"}

// Dump writes the document to w as YAML with deterministic field ordering.
func (c *Config) Dump(w io.Writer) error {
	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		data[k] = v
	}
	for _, key := range dumpFirstKeys {
		v, ok := data[key]
		if !ok {
			continue
		}
		out, err := yaml.Marshal(map[string]any{key: v})
		if err != nil {
			return unreachable.Wrap(err)
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
		delete(data, key)
	}
	if len(data) == 0 {
		return nil
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return unreachable.Wrap(err)
	}
	_, err = w.Write(out)
	return err
}

// DumpToFile writes the document to a file at path.
func (c *Config) DumpToFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return c.Dump(f)
}
