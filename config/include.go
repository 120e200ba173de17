package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// includeTag points a node at another YAML file to be parsed in its place.
// The path in the directive is relative to the file containing it:
//
//	storageClasses: !include storageClasses.yaml
//
// The tag value may also be a sequence or a mapping of file names, in
// which case each element is replaced by the referenced content.
const includeTag = "!include"

// decodeYAMLValue parses data into a plain document value, resolving
// !include tags relative to root.
func decodeYAMLValue(data []byte, root string) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	return decodeNode(doc.Content[0], root)
}

// decodeYAMLDocument is decodeYAMLValue constrained to a whole document,
// which must be a mapping. An empty stream yields an empty mapping.
func decodeYAMLDocument(data []byte, root string) (map[string]any, error) {
	v, err := decodeYAMLValue(data, root)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config source must be a mapping, got %T", v)
	}
	return m, nil
}

func decodeNode(n *yaml.Node, root string) (any, error) {
	if n.Tag == includeTag {
		return resolveIncludeTag(n, root)
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			val, err := decodeNode(n.Content[i+1], root)
			if err != nil {
				return nil, err
			}
			m[key] = val
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			val, err := decodeNode(item, root)
			if err != nil {
				return nil, err
			}
			s = append(s, val)
		}
		return s, nil
	case yaml.AliasNode:
		return decodeNode(n.Alias, root)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func resolveIncludeTag(n *yaml.Node, root string) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return extractFile(n.Value, root)
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := extractFile(item.Value, root)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			var key string
			if err := n.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			v, err := extractFile(n.Content[i+1].Value, root)
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unrecognised node kind in %s statement", includeTag)
	}
}

// extractFile parses the referenced file, itself resolving any nested
// !include tags relative to its own directory.
func extractFile(name, root string) (any, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, name)
	}
	log.Debugf("Opening YAML file via %s: %s", includeTag, path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UnresolvedIncludeError{File: path}
	}
	return decodeYAMLValue(data, filepath.Dir(path))
}

// resolveIncludes scans the document for the reserved includeConfigs
// directive and merges the referenced files into its position, with the
// node's own explicit values taking precedence over included ones.
//
// The set of directive positions is computed once up front, so an include
// whose content introduces a new directive at a position that did not
// exist before resolution began is not picked up in this call. Nested
// includes are still processed because every referenced file is parsed as
// a full Config in its own right. Cyclic includes are not detected.
func (c *Config) resolveIncludes() error {
	// The files can be relative to the config file or to the current
	// working directory. Subset search paths are not used here.
	searchPaths := []string{"."}
	if c.configFile != "" {
		if abs, err := filepath.Abs(filepath.Dir(c.configFile)); err == nil {
			searchPaths = append(searchPaths, abs)
		}
	}

	for _, path := range c.NameTuples(false) {
		last, ok := path[len(path)-1].(string)
		if !ok || last != IncludeKey {
			continue
		}
		log.Debugf("Processing file include directive at %s", c.delim+joinPlain(path, c.delim))
		basePath := path[:len(path)-1]

		// Extract the includes and then delete them from the document.
		includesVal, err := c.Get(path)
		if err != nil {
			return err
		}
		if err := c.Delete(path); err != nil {
			return err
		}
		includes, err := includeFileNames(includesVal)
		if err != nil {
			return err
		}

		subConfigs := make([]*Config, 0, len(includes))
		for _, fileName := range includes {
			found := ""
			if filepath.IsAbs(fileName) {
				found = fileName
			} else {
				for _, dir := range searchPaths {
					candidate := filepath.Join(dir, fileName)
					if _, err := os.Stat(candidate); err != nil {
						continue
					}
					abs, err := filepath.Abs(candidate)
					if err != nil {
						return err
					}
					found = abs
					break
				}
			}
			if found == "" {
				return &UnresolvedIncludeError{File: fileName}
			}
			sub, err := New(found)
			if err != nil {
				return err
			}
			subConfigs = append(subConfigs, sub)
		}
		if len(subConfigs) == 0 {
			continue
		}

		// Later files override earlier ones.
		newConfig := subConfigs[0]
		for _, sc := range subConfigs[1:] {
			if err := newConfig.Update(sc); err != nil {
				return err
			}
		}

		// Explicit values take precedence over the included content.
		if len(basePath) == 0 {
			// An include at the document root replaces the whole document.
			if err := newConfig.Update(c); err != nil {
				return err
			}
			c.data = newConfig.data
		} else {
			base, err := c.Get(basePath)
			if err != nil {
				return err
			}
			if err := newConfig.Update(base); err != nil {
				return err
			}
			if err := c.Set(basePath, newConfig); err != nil {
				return err
			}
		}
	}
	return nil
}

func includeFileNames(val any) ([]string, error) {
	switch v := val.(type) {
	case string:
		return []string{v}, nil
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be file names, got %T", IncludeKey, item)
			}
			names = append(names, s)
		}
		return names, nil
	default:
		return nil, fmt.Errorf("%s value must be a file name or list of file names, got %T", IncludeKey, val)
	}
}

func joinPlain(tuple []any, delim string) string {
	parts := make([]string, len(tuple))
	for i, s := range tuple {
		parts[i] = segmentString(s)
	}
	return strings.Join(parts, delim)
}
