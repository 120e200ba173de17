package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// DiscriminatorKey is the document key naming a registered subset type
// whose descriptor contributes additional defaults.
const DiscriminatorKey = "cls"

// Subset describes a named subset of a more general configuration: which
// subtree to select, which file carries its defaults and which keys are
// mandatory once composition has finished.
type Subset struct {
	// Kind names the subset in log and error messages.
	Kind string

	// Component selects the subtree to use from a supplied config. It can
	// be a delimited path. When empty, or when the component key is not
	// present, the entire supplied config is treated as already being the
	// subset.
	Component string

	// RequiredKeys must be present in the composed configuration.
	RequiredKeys []string

	// DefaultConfigFile names the file containing defaults for this
	// subset, looked up along the search path.
	DefaultConfigFile string

	// ContainerKey names a sequence of child configurations that are
	// recomposed with the same descriptor. It is only consulted when the
	// descriptor is registered as a subset type.
	ContainerKey string
}

// subsetTypes maps discriminator values, as found under the cls key, to
// the descriptors providing their defaults. It is populated at startup;
// composition is fully synchronous so no locking is needed.
var subsetTypes = map[string]Subset{}

// RegisterSubsetType associates a discriminator value with a descriptor.
// Registration replaces any previous descriptor for the same name.
func RegisterSubsetType(name string, desc Subset) {
	subsetTypes[name] = desc
}

// LookupSubsetType returns the descriptor registered for a discriminator
// value.
func LookupSubsetType(name string) (Subset, bool) {
	desc, ok := subsetTypes[name]
	return desc, ok
}

// SubsetOptions control subset composition. A nil options value enables
// both validation and defaults merging.
type SubsetOptions struct {
	// Validate checks RequiredKeys after composition.
	Validate bool
	// MergeDefaults layers default files underneath the supplied values.
	MergeDefaults bool
	// SearchPaths are explicit additional directories to search for
	// defaults, in priority order. They rank above directories read from
	// the environment.
	SearchPaths []string
}

// SubsetConfig is a Config composed for a subset descriptor.
type SubsetConfig struct {
	*Config

	// Descriptor the config was composed for.
	Descriptor Subset

	// FilesRead lists the default files merged during composition.
	FilesRead []string
}

// NewSubset composes the configuration for desc from the external input
// other (anything accepted by New).
//
// The named component subtree is selected from the input, defaults are
// merged underneath it from every copy of the descriptor's default file
// found along the search path, a registered subset type named by the cls
// key contributes its own defaults, the external values are overlaid so
// that explicit settings always win, any container children are
// recursively recomposed, and finally the required keys are validated.
func NewSubset(desc Subset, other any, opts *SubsetOptions) (*SubsetConfig, error) {
	if opts == nil {
		opts = &SubsetOptions{Validate: true, MergeDefaults: true}
	}
	ctx := NewSearchContext(opts.SearchPaths...)
	return newSubset(desc, other, opts, ctx)
}

func newSubset(desc Subset, other any, opts *SubsetOptions, ctx SearchContext) (*SubsetConfig, error) {
	s := &SubsetConfig{Config: newEmpty(), Descriptor: desc}

	externalConfig, err := New(other)
	if err != nil {
		return nil, err
	}

	// Select the part we need from the input. To tolerate an include that
	// re-introduces the component name one level deeper, the doubled form
	// is checked first.
	if desc.Component != "" {
		doubled := []any{desc.Component, desc.Component}
		selected := any(nil)
		if externalConfig.Contains(doubled) {
			selected, err = externalConfig.Get(doubled)
		} else if externalConfig.Contains(desc.Component) {
			selected, err = externalConfig.Get(desc.Component)
		}
		if err != nil {
			return nil, err
		}
		if selected != nil {
			sub, ok := selected.(*Config)
			if !ok {
				return nil, fmt.Errorf("component %q of %s config does not select a mapping", desc.Component, desc.Kind)
			}
			externalConfig = sub
		}
	}

	containerKey := ""

	if opts.MergeDefaults {
		if desc.DefaultConfigFile != "" {
			if err := s.updateFromSearchPath(ctx, desc.DefaultConfigFile); err != nil {
				return nil, err
			}
		}

		// A type specification in the external config has priority over
		// one merged in from the defaults.
		typeName, err := discriminator(externalConfig, s.Config)
		if err != nil {
			return nil, err
		}
		if typeName != "" {
			typeDesc, ok := LookupSubsetType(typeName)
			if !ok {
				return nil, fmt.Errorf("no subset type registered for %q used by %s config", typeName, desc.Kind)
			}
			if typeDesc.DefaultConfigFile != "" {
				if err := s.updateFromSearchPath(ctx, typeDesc.DefaultConfigFile); err != nil {
					return nil, err
				}
			}
			containerKey = typeDesc.ContainerKey
		}
	}

	// External values always override the defaults.
	if err := s.Update(externalConfig); err != nil {
		return nil, err
	}

	// If this configuration has child configurations of the same kind,
	// their defaults need expanding as well.
	if opts.MergeDefaults && containerKey != "" && s.Contains(containerKey) {
		if children, err := s.Get(containerKey); err == nil {
			if items, ok := children.([]any); ok {
				for idx, item := range items {
					child, err := newSubset(desc, item, opts, ctx)
					if err != nil {
						return nil, err
					}
					if err := s.Set([]any{containerKey, idx}, child.Config); err != nil {
						return nil, err
					}
					s.FilesRead = append(s.FilesRead, child.FilesRead...)
				}
			}
		}
	}

	if opts.Validate {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// discriminator reads the subset type name, checking the external config
// before the defaults merged so far.
func discriminator(external, merged *Config) (string, error) {
	for _, c := range []*Config{external, merged} {
		v, err := c.Get(DiscriminatorKey)
		if err != nil {
			continue
		}
		name, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%s key must name a subset type, got %T", DiscriminatorKey, v)
		}
		return name, nil
	}
	return "", nil
}

// updateFromSearchPath merges every copy of configFile found along the
// search path. The copies are applied in reverse priority order so that
// the highest-priority directory's file is merged last and wins. An
// absolute configFile bypasses the search entirely.
func (s *SubsetConfig) updateFromSearchPath(ctx SearchContext, configFile string) error {
	if filepath.IsAbs(configFile) {
		if _, err := os.Stat(configFile); err == nil {
			return s.updateFromFile(configFile)
		}
		return nil
	}
	dirs := ctx.Dirs()
	for i := len(dirs) - 1; i >= 0; i-- {
		file := filepath.Join(dirs[i], configFile)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := s.updateFromFile(file); err != nil {
			return err
		}
	}
	return nil
}

// updateFromFile reads file as a config of the same subset, so that
// component selection applies to the defaults as well, and merges it such
// that its values override the current ones. The file content is not
// validated.
func (s *SubsetConfig) updateFromFile(file string) error {
	log.Debugf("Merging %s config with defaults from %s", s.Descriptor.Kind, file)
	external, err := newSubset(s.Descriptor, file, &SubsetOptions{}, SearchContext{})
	if err != nil {
		return err
	}
	s.FilesRead = append(s.FilesRead, file)
	return s.Update(external.Config)
}

// Validate checks that the descriptor's required keys are all present,
// collecting every absent path rather than stopping at the first.
func (s *SubsetConfig) Validate() error {
	var missing []string
	var errs error
	for _, k := range s.Descriptor.RequiredKeys {
		if !s.Contains(k) {
			missing = append(missing, k)
			errs = multierr.Append(errs, fmt.Errorf("required key %q absent", k))
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Kind: s.Descriptor.Kind, Keys: missing, err: errs}
	}
	return nil
}

// UpdateParameters is a helper for updating specific parameters of the
// subset portion of cfg in bulk. toUpdate assigns new values directly,
// toCopy copies reference values from full, a complete config with all
// defaults expanded. With overwrite false, keys already set in cfg are
// left alone. The modified subset is reattached to cfg under the component
// key.
func UpdateParameters(desc Subset, cfg, full *Config, toUpdate map[string]any, toCopy []any, overwrite bool) error {
	if toUpdate == nil && toCopy == nil {
		return fmt.Errorf("one of toUpdate or toCopy must be set")
	}

	// If this is a parent configuration, add a stub entry so that subset
	// composition selects the right place. full is guaranteed complete so
	// it is the one checked.
	if desc.Component != "" && full.Contains(desc.Component) && !cfg.Contains(desc.Component) {
		if err := cfg.Set(desc.Component, map[string]any{}); err != nil {
			return err
		}
	}

	// Extract the part of the config being updated. Defaults are not
	// inserted and the content is not validated, since mandatory keys are
	// allowed to be missing until populated later by merging.
	localConfig, err := NewSubset(desc, cfg, &SubsetOptions{})
	if err != nil {
		return err
	}

	for key, value := range toUpdate {
		if localConfig.Contains(key) && !overwrite {
			log.Debugf("Not overriding key %q with value %v in %s config", key, value, desc.Kind)
			continue
		}
		if err := localConfig.Set(key, value); err != nil {
			return err
		}
	}

	if len(toCopy) > 0 {
		localFull, err := NewSubset(desc, full, &SubsetOptions{})
		if err != nil {
			return err
		}
		for _, key := range toCopy {
			if localConfig.Contains(key) && !overwrite {
				log.Debugf("Not overriding key %v from defaults in %s config", key, desc.Kind)
				continue
			}
			value, err := localFull.Get(key)
			if err != nil {
				return err
			}
			if err := localConfig.Set(key, value); err != nil {
				return err
			}
		}
	}

	// Reattach to the parent if this is a child config.
	if desc.Component != "" && cfg.Contains(desc.Component) {
		return cfg.Set(desc.Component, localConfig.Config)
	}
	return cfg.Update(localConfig.Config)
}
