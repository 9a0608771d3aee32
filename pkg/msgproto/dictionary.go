package msgproto

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrUnknownEnum is returned when a symbolic value has not been
	// declared in the enumeration its parameter resolves against.
	ErrUnknownEnum = errors.New("msgproto: unknown enumeration value")

	// ErrEnumConflict is returned when a symbolic name is redeclared with a
	// different value.
	ErrEnumConflict = errors.New("msgproto: conflicting enumeration value")
)

// Dictionary holds the symbolic names the firmware understands, grouped by
// enumeration. Parameters named "pin" or ending in "_pin" resolve against
// the "pin" enumeration.
type Dictionary struct {
	enums map[string]map[string]int
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{enums: make(map[string]map[string]int)}
}

// AddEnumerations merges values into the named enumeration. Redeclaring a
// name with the same value is allowed; a different value is an error and
// leaves the dictionary unchanged.
func (d *Dictionary) AddEnumerations(enum string, values map[string]int) error {
	existing := d.enums[enum]
	for name, v := range values {
		if old, ok := existing[name]; ok && old != v {
			return fmt.Errorf("%w: %s %q is %d, redeclared as %d", ErrEnumConflict, enum, name, old, v)
		}
	}
	if existing == nil {
		existing = make(map[string]int, len(values))
		d.enums[enum] = existing
	}
	for name, v := range values {
		existing[name] = v
	}
	return nil
}

// Enumeration returns a copy of the named enumeration.
func (d *Dictionary) Enumeration(enum string) map[string]int {
	out := make(map[string]int, len(d.enums[enum]))
	for name, v := range d.enums[enum] {
		out[name] = v
	}
	return out
}

// Names returns the sorted symbolic names of an enumeration.
func (d *Dictionary) Names(enum string) []string {
	names := make([]string, 0, len(d.enums[enum]))
	for name := range d.enums[enum] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a symbolic name within an enumeration.
func (d *Dictionary) Lookup(enum, name string) (int, error) {
	v, ok := d.enums[enum][name]
	if !ok {
		return 0, fmt.Errorf("%w: %s %q", ErrUnknownEnum, enum, name)
	}
	return v, nil
}

// EnumFor returns the enumeration a parameter key resolves against, or ""
// when the key carries plain integers.
func EnumFor(key string) string {
	if key == "pin" || strings.HasSuffix(key, "_pin") {
		return "pin"
	}
	return ""
}

// Resolve returns a copy of l with every enumerated argument replaced by
// its integer value.
func (d *Dictionary) Resolve(l *Line) (*Line, error) {
	out := l.Clone()
	for i, a := range out.Args {
		enum := EnumFor(a.Key)
		if enum == "" {
			continue
		}
		v, err := d.Lookup(enum, a.Value)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", l.Name, a.Key, err)
		}
		out.Args[i].Value = strconv.Itoa(v)
	}
	return out, nil
}
