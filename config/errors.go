package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoUsableDelimiter is returned when automatic delimiter selection for
// Names exhausts its retry budget.
var ErrNoUsableDelimiter = errors.New("unable to determine a delimiter for config")

// KeyNotFoundError is returned by Get and Delete when a key path does not
// fully resolve within the document.
type KeyNotFoundError struct {
	Key any
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("%v not found in config", e.Key)
}

// MalformedKeyError is returned when a key expression cannot be split,
// such as escaping an already escaped delimiter.
type MalformedKeyError struct {
	Key    string
	Reason string
}

func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed key expression %q: %s", e.Key, e.Reason)
}

// UnresolvedIncludeError is returned when a referenced include or default
// file cannot be found in any search location.
type UnresolvedIncludeError struct {
	File string
}

func (e *UnresolvedIncludeError) Error() string {
	return fmt.Sprintf("unable to find referenced include file: %s", e.File)
}

// MergeTypeError is returned when Update or Merge recurses into a value
// that is not a mapping on either side.
type MergeTypeError struct {
	Value any
}

func (e *MergeTypeError) Error() string {
	return fmt.Sprintf("only call update with a mapping, not %T", e.Value)
}

// MissingKeysError is returned by validation. It carries the complete list
// of absent required key paths, not just the first.
type MissingKeysError struct {
	Kind string
	Keys []string

	err error
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("mandatory keys (%s) missing from supplied configuration for %s",
		strings.Join(e.Keys, ", "), e.Kind)
}

func (e *MissingKeysError) Unwrap() error { return e.err }

// UnsupportedFormatError is returned when a source path does not carry a
// recognized document format extension.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unhandled config file type: %s", e.Path)
}
