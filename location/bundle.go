package location

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"ovfx/common"
	"ovfx/registry"
)

// Bundle is ordered set of fragments, one per registry definition, which
// represents single context. Bundle is not safe for concurrent use, and
// sharing it between locations means sharing values.
type Bundle struct {
	reg   *registry.Registry
	frags []*Fragment
	index map[string]int
}

// NewBundle creates bundle with all fragments unbound.
func NewBundle(reg *registry.Registry) *Bundle {
	b := &Bundle{reg: reg}
	b.Reset()
	return b
}

// Registry returns registry bundle was created from.
func (b *Bundle) Registry() *registry.Registry {
	return b.reg
}

// Reset drops all fragments (including previously removed ones) and creates
// new unbound fragment for every registry definition.
func (b *Bundle) Reset() {
	defs := b.reg.Definitions()
	b.frags = make([]*Fragment, 0, len(defs))
	for _, d := range defs {
		b.frags = append(b.frags, newFragment(d))
	}
	b.reindex()
}

func (b *Bundle) reindex() {
	b.index = make(map[string]int, len(b.frags))
	for i, f := range b.frags {
		b.index[f.ID()] = i
	}
}

func (b *Bundle) lookup(id string) (*Fragment, bool) {
	i, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return b.frags[i], true
}

// Get returns fragment by id.
func (b *Bundle) Get(id string) (*Fragment, error) {
	if f, ok := b.lookup(id); ok {
		return f, nil
	}
	return nil, fmt.Errorf("fragment %q: %w", id, common.ErrNotFound)
}

// All returns fragments in registry order.
func (b *Bundle) All() []*Fragment {
	return slices.Clone(b.frags)
}

// SetMany binds several values at once. Either all values are bound or,
// when any id is unknown or any value is invalid, none of them is and all
// problems are reported together.
func (b *Bundle) SetMany(values map[string]string) error {
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var err error
	frags := make([]*Fragment, 0, len(ids))
	for _, id := range ids {
		f, er := b.Get(id)
		if er != nil {
			err = multierr.Append(err, er)
			continue
		}
		if !f.Validate(values[id]) {
			err = multierr.Append(err, &common.InvalidFormatError{ID: id, Value: values[id], Pattern: f.Pattern()})
			continue
		}
		frags = append(frags, f)
	}
	if err != nil {
		return err
	}
	for _, f := range frags {
		f.bind(values[f.ID()])
	}
	return nil
}

// Remove deletes fragment from bundle, unknown id is ignored.
func (b *Bundle) Remove(id string) {
	i, ok := b.index[id]
	if !ok {
		return
	}
	b.frags = slices.Delete(b.frags, i, i+1)
	b.reindex()
}

// Clone returns deep copy of the bundle.
func (b *Bundle) Clone() *Bundle {
	c := &Bundle{reg: b.reg, frags: make([]*Fragment, 0, len(b.frags))}
	for _, f := range b.frags {
		c.frags = append(c.frags, f.Clone())
	}
	c.reindex()
	return c
}

// Translate replaces tags in text with values of corresponding fragments.
// Every tag known to the bundle must be bound, tags bundle knows nothing
// about are left untouched.
func (b *Bundle) Translate(text string) (string, error) {
	occ := scanTags(text)
	for _, name := range distinctNames(occ) {
		if f, ok := b.lookup(name); ok && !f.bound {
			return "", fmt.Errorf("unable to translate %q, fragment %q: %w", text, name, common.ErrUnboundValue)
		}
	}
	return substitute(text, occ, func(name string) (string, bool) {
		if f, ok := b.lookup(name); ok {
			return f.value, true
		}
		return "", false
	}), nil
}

// Values returns bound values keyed by fragment id.
func (b *Bundle) Values() map[string]string {
	out := make(map[string]string, len(b.frags))
	for _, f := range b.frags {
		if f.bound {
			out[f.ID()] = f.value
		}
	}
	return out
}

// Info formats fragment labels and values as aligned report lines.
func (b *Bundle) Info(includeEmpty bool) string {
	width := 0
	for _, f := range b.frags {
		width = max(width, len(f.Label()))
	}
	var sb strings.Builder
	for _, f := range b.frags {
		v, ok := f.Value()
		if !ok {
			if !includeEmpty {
				continue
			}
			v = "-"
		}
		fmt.Fprintf(&sb, "\n%*s: %s", width, f.Label(), v)
	}
	return sb.String()
}
