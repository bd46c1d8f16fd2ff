package annotation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// ClassEntry binds a label to its dataset class id.
type ClassEntry struct {
	Name string
	ID   int
}

// ClassMapping is an immutable, ordered label to class-id table.
type ClassMapping struct {
	entries []ClassEntry
	byName  map[string]int
}

// NewClassMapping validates entries and keeps them in the given order. Names
// and ids must be unique and ids non-negative.
func NewClassMapping(entries []ClassEntry) (*ClassMapping, error) {
	if len(entries) == 0 {
		return nil, errors.New("class mapping is empty")
	}
	m := &ClassMapping{
		entries: make([]ClassEntry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	ids := make(map[int]string, len(entries))
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, errors.New("class mapping contains an empty name")
		}
		if entry.ID < 0 {
			return nil, fmt.Errorf("class %q has negative id %d", name, entry.ID)
		}
		if _, dup := m.byName[name]; dup {
			return nil, fmt.Errorf("class %q is mapped twice", name)
		}
		if other, dup := ids[entry.ID]; dup {
			return nil, fmt.Errorf("class id %d is shared by %q and %q", entry.ID, other, name)
		}
		ids[entry.ID] = name
		m.byName[name] = entry.ID
		m.entries = append(m.entries, ClassEntry{Name: name, ID: entry.ID})
	}
	return m, nil
}

// ParseClassMapping reads a JSON object such as {"person": 0, "car": 1},
// preserving key order.
func ParseClassMapping(data []byte) (*ClassMapping, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse class mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("parse class mapping: expected a JSON object")
	}
	var entries []ClassEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse class mapping: %w", err)
		}
		name, _ := keyTok.(string)
		var id json.Number
		if err := dec.Decode(&id); err != nil {
			return nil, fmt.Errorf("parse class mapping: value for %q: %w", name, err)
		}
		n, err := id.Int64()
		if err != nil {
			return nil, fmt.Errorf("parse class mapping: id for %q must be an integer", name)
		}
		entries = append(entries, ClassEntry{Name: name, ID: int(n)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse class mapping: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("parse class mapping: trailing data after object")
	}
	return NewClassMapping(entries)
}

// Lookup returns the class id for name.
func (m *ClassMapping) Lookup(name string) (int, bool) {
	id, ok := m.byName[name]
	return id, ok
}

// Len reports the number of classes.
func (m *ClassMapping) Len() int {
	return len(m.entries)
}

// Entries returns the classes in mapping order.
func (m *ClassMapping) Entries() []ClassEntry {
	return slices.Clone(m.entries)
}

// ByID returns the classes sorted by ascending id.
func (m *ClassMapping) ByID() []ClassEntry {
	sorted := slices.Clone(m.entries)
	slices.SortFunc(sorted, func(a, b ClassEntry) int { return a.ID - b.ID })
	return sorted
}

// Names returns class names ordered by ascending id.
func (m *ClassMapping) Names() []string {
	byID := m.ByID()
	names := make([]string, len(byID))
	for i, entry := range byID {
		names[i] = entry.Name
	}
	return names
}
