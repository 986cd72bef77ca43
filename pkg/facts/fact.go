package facts

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidAttribute is matched by AttributeError via errors.Is.
var ErrInvalidAttribute = errors.New("invalid fact attribute")

// AttributeError reports an attribute that cannot be represented in a Fact.
type AttributeError struct {
	Name  string
	Cause error
}

// Error returns the error message.
func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %v", e.Name, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *AttributeError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInvalidAttribute.
func (e *AttributeError) Is(target error) bool {
	return target == ErrInvalidAttribute
}

// Fact is an immutable set of named attribute values describing one case.
type Fact struct {
	id    string
	attrs map[string]Value
}

// New builds a Fact from plain Go values. A nil value marks an optional
// attribute as absent and is dropped.
func New(id string, attrs map[string]any) (*Fact, error) {
	f := &Fact{id: id, attrs: make(map[string]Value, len(attrs))}
	for name, raw := range attrs {
		if name == "" {
			return nil, &AttributeError{Name: name, Cause: errors.New("empty attribute name")}
		}
		if raw == nil {
			continue
		}
		v, err := ValueOf(raw)
		if err != nil {
			return nil, &AttributeError{Name: name, Cause: err}
		}
		f.attrs[name] = v
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for fixtures.
func MustNew(id string, attrs map[string]any) *Fact {
	f, err := New(id, attrs)
	if err != nil {
		panic(err)
	}
	return f
}

// ID returns the case identifier, which may be empty.
func (f *Fact) ID() string { return f.id }

// Len returns the number of present attributes.
func (f *Fact) Len() int { return len(f.attrs) }

// Get returns the named attribute and whether it is present.
func (f *Fact) Get(name string) (Value, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

// Has reports whether the named attribute is present.
func (f *Fact) Has(name string) bool {
	_, ok := f.attrs[name]
	return ok
}

// Number returns a numeric attribute. ok is false if absent or not a number.
func (f *Fact) Number(name string) (float64, bool) {
	v, present := f.attrs[name]
	if !present {
		return 0, false
	}
	return v.Num()
}

// Bool returns a boolean attribute. ok is false if absent or not a bool.
func (f *Fact) Bool(name string) (bool, bool) {
	v, present := f.attrs[name]
	if !present {
		return false, false
	}
	return v.Boolean()
}

// String returns a string attribute. ok is false if absent or not a string.
func (f *Fact) String(name string) (string, bool) {
	v, present := f.attrs[name]
	if !present {
		return "", false
	}
	return v.Str()
}

// Names returns the attribute names in sorted order.
func (f *Fact) Names() []string {
	names := make([]string, 0, len(f.attrs))
	for name := range f.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the attributes as plain Go values.
func (f *Fact) Map() map[string]any {
	m := make(map[string]any, len(f.attrs))
	for name, v := range f.attrs {
		m[name] = v.Interface()
	}
	return m
}
