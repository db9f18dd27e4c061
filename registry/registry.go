// Package registry keeps fragment definitions and location templates loaded
// from configuration. Registry is built once and is read only afterwards, it is
// safe to share single instance between any number of bundles and locations.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/maruel/natural"
	"go.uber.org/multierr"

	"ovfx/common"
)

// Definition describes single fragment type: its id, display label and
// pattern every bound value must fully match.
type Definition struct {
	ID      string
	Label   string
	Pattern string

	full *regexp2.Regexp
}

// Match reports whether v matches definition pattern from start to end.
// Matching which exceeds configured timeout is treated as no match.
func (d *Definition) Match(v string) bool {
	if d.full == nil {
		return false
	}
	ok, err := d.full.MatchString(v)
	return err == nil && ok
}

// TemplatePath is a single leaf of location template tree.
type TemplatePath struct {
	Keys     []string
	Template string
}

// Name returns dot separated key path.
func (p TemplatePath) Name() string {
	return strings.Join(p.Keys, KeySeparator)
}

// KeySeparator is used when key path is written as a single string.
const KeySeparator = "."

// Registry is ordered set of fragment definitions plus tree of named
// location templates.
type Registry struct {
	defs      []*Definition
	index     map[string]int
	templates map[string]any
	timeout   time.Duration
}

type Option func(*Registry)

// WithTemplates sets location template tree. Inner nodes must be
// map[string]any, leaves must be strings.
func WithTemplates(tree map[string]any) Option {
	return func(r *Registry) {
		r.templates = copyTree(tree)
	}
}

// WithMatchTimeout limits time spent in any single pattern match.
func WithMatchTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// New validates and compiles definitions. Definition order is preserved and
// becomes fragment order of every bundle built from this registry. All problems
// are reported at once.
func New(defs []Definition, options ...Option) (*Registry, error) {
	r := &Registry{
		defs:      make([]*Definition, 0, len(defs)),
		index:     make(map[string]int, len(defs)),
		templates: map[string]any{},
	}
	for _, setOpt := range options {
		setOpt(r)
	}

	var err error
	for _, d := range defs {
		if len(d.ID) == 0 {
			err = multierr.Append(err, errors.New("fragment definition without id"))
			continue
		}
		if _, exists := r.index[d.ID]; exists {
			err = multierr.Append(err, fmt.Errorf("duplicate fragment definition %q", d.ID))
			continue
		}
		re, er := r.Compile(`\A(?:` + d.Pattern + `)\z`)
		if er != nil {
			err = multierr.Append(err, fmt.Errorf("fragment definition %q has bad pattern %q: %w", d.ID, d.Pattern, er))
			continue
		}
		def := &Definition{ID: d.ID, Label: d.Label, Pattern: d.Pattern, full: re}
		if len(def.Label) == 0 {
			def.Label = def.ID
		}
		r.index[d.ID] = len(r.defs)
		r.defs = append(r.defs, def)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Compile compiles expression with settings shared by all registry patterns.
func (r *Registry) Compile(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, err
	}
	if r.timeout > 0 {
		re.MatchTimeout = r.timeout
	}
	return re, nil
}

// Definition returns fragment definition by id.
func (r *Registry) Definition(id string) (*Definition, error) {
	if i, ok := r.index[id]; ok {
		return r.defs[i], nil
	}
	return nil, fmt.Errorf("fragment definition %q: %w", id, common.ErrNotFound)
}

// Definitions returns all definitions in registry order.
func (r *Registry) Definitions() []*Definition {
	return slices.Clone(r.defs)
}

// Len returns number of definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Template walks template tree one key at a time and returns template string
// found at the end of the path.
func (r *Registry) Template(keys ...string) (string, error) {
	var node any = r.templates
	for i, key := range keys {
		group, ok := node.(map[string]any)
		if !ok {
			return "", fmt.Errorf("location %q is not a group: %w", strings.Join(keys[:i], KeySeparator), common.ErrNotFound)
		}
		if node, ok = group[key]; !ok {
			return "", fmt.Errorf("location %q: %w", strings.Join(keys[:i+1], KeySeparator), common.ErrNotFound)
		}
	}
	tmpl, ok := node.(string)
	if !ok {
		return "", fmt.Errorf("location %q does not resolve to a template: %w", strings.Join(keys, KeySeparator), common.ErrNotFound)
	}
	return tmpl, nil
}

// TemplatePaths lists all templates in natural order of their key paths.
func (r *Registry) TemplatePaths() []TemplatePath {
	var paths []TemplatePath
	walkTree(r.templates, nil, func(keys []string, tmpl string) {
		paths = append(paths, TemplatePath{Keys: keys, Template: tmpl})
	})
	slices.SortFunc(paths, func(a, b TemplatePath) int {
		an, bn := a.Name(), b.Name()
		switch {
		case an == bn:
			return 0
		case natural.Less(an, bn):
			return -1
		default:
			return 1
		}
	})
	return paths
}

func walkTree(node map[string]any, prefix []string, fn func([]string, string)) {
	for key, v := range node {
		keys := append(slices.Clone(prefix), key)
		switch val := v.(type) {
		case string:
			fn(keys, val)
		case map[string]any:
			walkTree(val, keys, fn)
		}
	}
}

func copyTree(tree map[string]any) map[string]any {
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		if sub, ok := v.(map[string]any); ok {
			out[k] = copyTree(sub)
			continue
		}
		out[k] = v
	}
	return out
}
