// Package location implements path templates: strings with <tag> placeholders
// bound to a bundle of fragments. Location extracts fragment values from
// concrete paths, renders paths back from values and translates values from
// one template into another.
package location

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"ovfx/common"
	"ovfx/registry"
)

// Undefined replaces unbound tags when rendering.
const Undefined = "UNDEFINED"

// Location is a template plus bundle which supplies or receives tag values.
type Location struct {
	reg      *registry.Registry
	template string
	bundle   *Bundle
	log      *zap.Logger
	expand   func(string) string

	// compiled extraction patterns keyed by template and occurrence index
	matchers *gocache.Cache
}

type Option func(*Location)

// WithBundle makes location use provided bundle instead of its own. Bundle is
// shared, not copied.
func WithBundle(b *Bundle) Option {
	return func(l *Location) {
		l.bundle = b
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Location) {
		if log != nil {
			l.log = log
		}
	}
}

// WithExpander replaces environment variable expansion used by
// ExtractExpanded.
func WithExpander(fn func(string) string) Option {
	return func(l *Location) {
		if fn != nil {
			l.expand = fn
		}
	}
}

// New creates location for literal template. Tags are not checked against
// registry until template is used.
func New(reg *registry.Registry, template string, options ...Option) *Location {
	l := &Location{
		reg:      reg,
		template: template,
		log:      zap.NewNop(),
		expand:   expandEnv,
		matchers: newMatcherCache(),
	}
	for _, setOpt := range options {
		setOpt(l)
	}
	if l.bundle == nil {
		l.bundle = NewBundle(reg)
	}
	return l
}

// FromKeys creates location for template found in registry template tree.
func FromKeys(reg *registry.Registry, keys []string, options ...Option) (*Location, error) {
	tmpl, err := reg.Template(keys...)
	if err != nil {
		return nil, err
	}
	return New(reg, tmpl, options...), nil
}

func newMatcherCache() *gocache.Cache {
	// patterns never expire, no janitor goroutine
	return gocache.New(gocache.NoExpiration, 0)
}

// envRef is "$NAME" or "${NAME}" variable reference.
var envRef = regexp.MustCompile(`\$(\w+|\{[^}]*\})`)

// expandEnv replaces references to set environment variables, references to
// unset ones are kept exactly as written.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref[1:], "{"), "}")
		if v, ok := os.LookupEnv(name); ok && len(name) > 0 {
			return v
		}
		return ref
	})
}

func (l *Location) Template() string { return l.template }

func (l *Location) SetTemplate(template string) { l.template = template }

// Bundle returns location bundle, changes made through it are visible to
// location.
func (l *Location) Bundle() *Bundle { return l.bundle }

// SetBundle replaces location bundle. Compiled matchers carry fragment
// patterns of the previous bundle and are dropped.
func (l *Location) SetBundle(b *Bundle) {
	l.bundle = b
	l.matchers = newMatcherCache()
}

// Tags returns distinct tag names of the template in order of first
// appearance.
func (l *Location) Tags() []string {
	return Tags(l.template)
}

// Fragments returns bundle fragments referenced by template, in bundle order.
func (l *Location) Fragments() []*Fragment {
	tags := make(map[string]struct{})
	for _, name := range l.Tags() {
		tags[name] = struct{}{}
	}
	var out []*Fragment
	for _, f := range l.bundle.frags {
		if _, ok := tags[f.ID()]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Valid reports whether every template tag has a bound value.
func (l *Location) Valid() bool {
	for _, name := range l.Tags() {
		f, ok := l.bundle.lookup(name)
		if !ok || !f.bound {
			return false
		}
	}
	return true
}

// Render substitutes template tags with values taken from a copy of bundle
// (location own bundle when nil) with overrides applied. Unbound tags become
// Undefined. Neither bundle is modified.
func (l *Location) Render(bundle *Bundle, overrides map[string]string) (string, error) {
	src := l.bundle
	if bundle != nil {
		src = bundle
	}
	b := src.Clone()
	if len(overrides) > 0 {
		if err := b.SetMany(overrides); err != nil {
			return "", fmt.Errorf("unable to apply overrides: %w", err)
		}
	}

	occ := scanTags(l.template)
	for _, name := range distinctNames(occ) {
		if _, err := b.Get(name); err != nil {
			return "", fmt.Errorf("unable to render %q: %w", l.template, err)
		}
	}
	return substitute(l.template, occ, func(name string) (string, bool) {
		f, _ := b.lookup(name)
		if v, ok := f.Value(); ok {
			return v, true
		}
		return Undefined, true
	}), nil
}

// Translate applies location context to another template text.
func (l *Location) Translate(text string) (string, error) {
	return l.bundle.Translate(text)
}

// Parent returns copy of location with template truncated right after
// index-th occurrence of tag id. Negative index counts from the last
// occurrence.
func (l *Location) Parent(id string, index int) (*Location, error) {
	var ends []int
	for _, o := range scanTags(l.template) {
		if o.name == id {
			ends = append(ends, o.end)
		}
	}
	if len(ends) == 0 {
		return nil, fmt.Errorf("tag %q in %q: %w", id, l.template, common.ErrNotFound)
	}
	i := index
	if i < 0 {
		i += len(ends)
	}
	if i < 0 || i >= len(ends) {
		return nil, fmt.Errorf("index %d for tag %q with %d occurrences: %w", index, id, len(ends), common.ErrOutOfRange)
	}
	c := l.Clone()
	c.template = l.template[:ends[i]]
	return c, nil
}

// Clone returns deep copy of location, including its bundle.
func (l *Location) Clone() *Location {
	return &Location{
		reg:      l.reg,
		template: l.template,
		bundle:   l.bundle.Clone(),
		log:      l.log,
		expand:   l.expand,
		matchers: newMatcherCache(),
	}
}

// Info returns human readable context report.
func (l *Location) Info(includeEmpty bool) string {
	var sb strings.Builder
	if l.Valid() {
		sb.WriteString("########## Context ##########")
	} else {
		sb.WriteString("###### Invalid Context ######")
	}
	sb.WriteString(l.bundle.Info(includeEmpty))
	sb.WriteString("\n#############################")
	return sb.String()
}

func (l *Location) String() string {
	return fmt.Sprintf("%s (valid=%t)", l.template, l.Valid())
}
