package location

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const captureGroup = "ovfxtag"

// Extract binds fragment values found in path.
//
// NOTE: extraction always starts with Reset of the whole bundle, so values of
// fragments this template does not reference are dropped as well. Anyone
// reusing single bundle for several extractions has to account for that.
//
// Path has to match template from its start, anything after the part matched
// by template is ignored. Every tag occurrence is matched separately with only
// that occurrence captured; when the same tag appears more than once its
// leftmost occurrence wins and later ones are not checked for consistency.
// Tags which cannot be matched stay unbound, use Valid to check the outcome.
// Error is returned only when template references fragment bundle does not
// have.
func (l *Location) Extract(path string) error {
	return l.extract(path, l.template)
}

// ExtractExpanded is Extract with environment variables in template expanded
// first.
func (l *Location) ExtractExpanded(path string) error {
	return l.extract(path, l.expand(l.template))
}

func (l *Location) extract(path, tmpl string) error {
	l.bundle.Reset()

	occ := scanTags(tmpl)
	frags := make([]*Fragment, len(occ))
	for i, o := range occ {
		f, err := l.bundle.Get(o.name)
		if err != nil {
			return fmt.Errorf("unable to extract from %q with template %q: %w", path, tmpl, err)
		}
		frags[i] = f
	}

	for i, o := range occ {
		f := frags[i]
		if f.bound {
			// leftmost occurrence already defined the value
			continue
		}
		re, err := l.matcher(tmpl, occ, frags, i)
		if err != nil {
			return fmt.Errorf("unable to prepare pattern for tag %q: %w", o.name, err)
		}
		m, err := re.FindStringMatch(path)
		if err != nil {
			l.log.Warn("Pattern match failed", zap.String("tag", o.name), zap.String("path", path), zap.Error(err))
			f.Clear()
			continue
		}
		if m == nil {
			l.log.Debug("Tag not found", zap.String("tag", o.name), zap.Int("occurrence", i), zap.String("path", path))
			f.Clear()
			continue
		}
		f.bind(m.GroupByName(captureGroup).String())
		l.log.Debug("Tag extracted", zap.String("tag", o.name), zap.Int("occurrence", i), zap.String("value", f.value))
	}
	return nil
}

// matcher returns pattern for occurrence i: template literals escaped, every
// tag replaced with its fragment pattern, only occurrence i captured.
func (l *Location) matcher(tmpl string, occ []occurrence, frags []*Fragment, i int) (*regexp2.Regexp, error) {
	key := strconv.Itoa(i) + "\x00" + tmpl
	if v, ok := l.matchers.Get(key); ok {
		return v.(*regexp2.Regexp), nil
	}

	var sb strings.Builder
	sb.WriteString(`\A`)
	last := 0
	for j, o := range occ {
		sb.WriteString(regexp2.Escape(tmpl[last:o.start]))
		if j == i {
			sb.WriteString("(?<" + captureGroup + ">" + frags[j].Pattern() + ")")
		} else {
			sb.WriteString("(?:" + frags[j].Pattern() + ")")
		}
		last = o.end
	}
	sb.WriteString(regexp2.Escape(tmpl[last:]))

	re, err := l.reg.Compile(sb.String())
	if err != nil {
		return nil, err
	}
	l.matchers.Set(key, re, gocache.NoExpiration)
	return re, nil
}
