package location

import (
	"testing"

	"ovfx/registry"
)

func newTestRegistry(t testing.TB, extra ...registry.Definition) *registry.Registry {
	t.Helper()
	defs := append([]registry.Definition{
		{ID: "project", Label: "Project", Pattern: "[A-Za-z0-9]+"},
		{ID: "seq", Label: "Sequence", Pattern: "[0-9]+"},
		{ID: "shot", Label: "Shot", Pattern: "[0-9]+"},
	}, extra...)
	reg, err := registry.New(defs, registry.WithTemplates(map[string]any{
		"project":         "/mnt/prod/projects/<project>",
		"project_archive": "/mnt/archive/<project>",
		"shot":            map[string]any{"dir": "<project>/<seq>/<shot>"},
	}))
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return reg
}

func mustValue(t testing.TB, b *Bundle, id string) string {
	t.Helper()
	f, err := b.Get(id)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	v, ok := f.Value()
	if !ok {
		t.Fatalf("fragment %q is unbound", id)
	}
	return v
}

func isBound(t testing.TB, b *Bundle, id string) bool {
	t.Helper()
	f, err := b.Get(id)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	_, ok := f.Value()
	return ok
}
