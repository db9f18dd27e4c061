package location

import (
	"fmt"

	"ovfx/common"
	"ovfx/registry"
)

// Fragment is a single named value slot. When value is bound it always fully
// matches definition pattern.
type Fragment struct {
	def   *registry.Definition
	value string
	bound bool
}

func newFragment(def *registry.Definition) *Fragment {
	return &Fragment{def: def}
}

func (f *Fragment) ID() string { return f.def.ID }

func (f *Fragment) Label() string { return f.def.Label }

func (f *Fragment) Pattern() string { return f.def.Pattern }

// Value returns bound value, second result is false when fragment is unbound.
func (f *Fragment) Value() (string, bool) {
	return f.value, f.bound
}

// SetValue validates and binds value. On error previous value is kept.
func (f *Fragment) SetValue(v string) error {
	if !f.Validate(v) {
		return &common.InvalidFormatError{ID: f.def.ID, Value: v, Pattern: f.def.Pattern}
	}
	f.bind(v)
	return nil
}

// Clear unbinds fragment.
func (f *Fragment) Clear() {
	f.value, f.bound = "", false
}

// Validate reports whether v could be bound to the fragment.
func (f *Fragment) Validate(v string) bool {
	return f.def.Match(v)
}

// Is compares fragment with plain identifier.
func (f *Fragment) Is(id string) bool {
	return f.def.ID == id
}

// Clone returns independent copy, definition is shared since it is immutable.
func (f *Fragment) Clone() *Fragment {
	c := *f
	return &c
}

func (f *Fragment) String() string {
	if !f.bound {
		return fmt.Sprintf("%s=<unbound>", f.def.ID)
	}
	return fmt.Sprintf("%s=%s", f.def.ID, f.value)
}

// bind skips validation, used by extraction where value has been captured
// by the fragment's own pattern.
func (f *Fragment) bind(v string) {
	f.value, f.bound = v, true
}
