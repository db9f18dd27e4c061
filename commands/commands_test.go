package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	yaml "gopkg.in/yaml.v3"

	"ovfx/common"
	"ovfx/config"
	"ovfx/location"
	"ovfx/registry"
)

func defaultRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	return reg
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", args: nil, want: map[string]string{}},
		{name: "values", args: []string{"project=MyProject", "seq=010"}, want: map[string]string{"project": "MyProject", "seq": "010"}},
		{name: "value with equal sign", args: []string{"ext=a=b"}, want: map[string]string{"ext": "a=b"}},
		{name: "empty value", args: []string{"ext="}, want: map[string]string{"ext": ""}},
		{name: "no equal sign", args: []string{"project"}, wantErr: true},
		{name: "no id", args: []string{"=value"}, wantErr: true},
		{name: "repeated id", args: []string{"seq=010", "seq=020"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssignments(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAssignments() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseAssignments() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseAssignments()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseAssignments_ReportsAllErrors(t *testing.T) {
	_, err := ParseAssignments([]string{"bad", "=x", "ok=1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `"bad"`) || !strings.Contains(err.Error(), `"=x"`) {
		t.Errorf("error %q does not mention every malformed entry", err)
	}
}

func TestParseMappings(t *testing.T) {
	got, err := ParseMappings([]string{"software.render.image.shot=publish.render.image.shot", "project=project_archive"})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ParseMappings() returned %d mappings", len(got))
	}
	if len(got[0].Source) != 4 || got[0].Target[0] != "publish" {
		t.Errorf("unexpected mapping %#v", got[0])
	}
	if got[1].String() != "project=project_archive" {
		t.Errorf("String() = %q", got[1].String())
	}

	for _, bad := range []string{"project", "project=", "=project"} {
		if _, err := ParseMappings([]string{bad}); err == nil {
			t.Errorf("ParseMappings(%q) expected error", bad)
		}
	}
}

func TestNewLocation(t *testing.T) {
	reg := defaultRegistry(t)
	log := zaptest.NewLogger(t)

	loc, err := NewLocation(reg, "software.render.image.shot", "", log)
	if err != nil {
		t.Fatalf("NewLocation() error = %v", err)
	}
	if !strings.HasSuffix(loc.Template(), ".<frame>.<ext>") {
		t.Errorf("unexpected template %q", loc.Template())
	}

	loc, err = NewLocation(reg, "", "/jobs/<project>", log)
	if err != nil || loc.Template() != "/jobs/<project>" {
		t.Errorf("NewLocation() = %v, %v", loc, err)
	}

	if _, err := NewLocation(reg, "software.nope", "", log); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("NewLocation() error = %v, want ErrNotFound", err)
	}
	if _, err := NewLocation(reg, "project", "/jobs/<project>", log); err == nil {
		t.Error("expected error when both location and template are given")
	}
	if _, err := NewLocation(reg, "", "", log); err == nil {
		t.Error("expected error when neither location nor template is given")
	}
}

func TestExtractContext(t *testing.T) {
	reg := defaultRegistry(t)
	log := zaptest.NewLogger(t)

	loc, err := NewLocation(reg, "software.render.image.shot", "", log)
	if err != nil {
		t.Fatalf("NewLocation() error = %v", err)
	}
	path := "/mnt/prod/projects/MyProject/E400/Seq_010/0010/3D/houdini/render/fx_fire/v043/MyProject_E400_Seq_010_0010_fx_fire_v043.1001.tif"
	if err := ExtractContext(loc, path, false); err != nil {
		t.Fatalf("ExtractContext() error = %v", err)
	}

	want := map[string]string{
		"project": "MyProject", "epis": "E400", "seq": "Seq_010", "shot": "0010", "soft": "houdini",
		"task": "fx", "variant": "fire", "version": "043", "frame": "1001", "ext": "tif",
	}
	got := loc.Bundle().Values()
	for k, v := range want {
		if got[k] != v {
			t.Errorf("value of %q = %q, want %q", k, got[k], v)
		}
	}

	err = ExtractContext(loc, "/mnt/prod/projects/MyProject/_assets/props/table", false)
	if !errors.Is(err, common.ErrUnboundValue) {
		t.Fatalf("ExtractContext() error = %v, want ErrUnboundValue", err)
	}
	if !strings.Contains(err.Error(), "epis") {
		t.Errorf("error %q does not list unresolved tags", err)
	}

	unknown := location.New(reg, "/jobs/<nope>", location.WithLogger(log))
	if err := ExtractContext(unknown, "/jobs/x", false); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("ExtractContext() error = %v, want ErrNotFound", err)
	}
}

func TestExtractContext_Normalized(t *testing.T) {
	reg := defaultRegistry(t)

	loc := location.New(reg, "/mnt/pr\u00e9prod/<project>")
	if err := ExtractContext(loc, "/mnt/pre\u0301prod/MyProject", false); err != nil {
		t.Fatalf("ExtractContext() error = %v", err)
	}
	if v := loc.Bundle().Values()["project"]; v != "MyProject" {
		t.Errorf("project = %q", v)
	}
}

func TestExtractContext_Expanded(t *testing.T) {
	reg := defaultRegistry(t)
	t.Setenv("OVFX_TEST_ROOT", "/mnt/prod")

	loc := location.New(reg, "$OVFX_TEST_ROOT/projects/<project>")
	if err := ExtractContext(loc, "/mnt/prod/projects/MyProject", true); err != nil {
		t.Fatalf("ExtractContext() error = %v", err)
	}
	if v := loc.Bundle().Values()["project"]; v != "MyProject" {
		t.Errorf("project = %q", v)
	}
	if err := ExtractContext(loc, "/mnt/prod/projects/MyProject", false); !errors.Is(err, common.ErrUnboundValue) {
		t.Errorf("ExtractContext() without expansion error = %v", err)
	}
}

func TestTranslatePath(t *testing.T) {
	reg := defaultRegistry(t)
	log := zaptest.NewLogger(t)

	publisher, err := ParseMappings([]string{
		"software.render.image.shot=publish.render.image.shot",
		"software.render.image.asset=publish.render.image.asset",
		"software.render.geo.shot=publish.render.geo.shot",
		"software.render.geo.asset=publish.render.geo.asset",
	})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}
	archiver, err := ParseMappings([]string{"project=project_archive"})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}

	tests := []struct {
		name     string
		mappings []Mapping
		path     string
		want     string
	}{
		{
			name:     "archiver",
			mappings: archiver,
			path:     "/mnt/prod/projects/MyProject/seq_X/shot_Y/etc",
			want:     "/mnt/archive/MyProject",
		},
		{
			name:     "shot render",
			mappings: publisher,
			path:     "/mnt/prod/projects/MyProject/E400/Seq_010/0010/3D/houdini/render/fx_fire/v043/MyProject_E400_Seq_010_0010_fx_fire_v043.1001.tif",
			want:     "/mnt/prod/publish/MyProject/Seq_010/0010/fx_fire/v043/Seq_010_0010_fx_fire_v043.1001.tif",
		},
		{
			name:     "asset render",
			mappings: publisher,
			path:     "/mnt/prod/projects/MyProject/_assets/vehicules/car/3D/houdini/render/fx_fire/v043/MyProject_vehicules_car_fx_fire_v043.1234.bgeo.sc",
			want:     "/mnt/prod/publish/MyProject/assets/vehicules/car/fx_fire/v043/car_fx_fire_v043.1234.bgeo.sc",
		},
		{
			name:     "asset geometry",
			mappings: publisher,
			path:     "/mnt/prod/projects/MyProject/_assets/props/marble_table/3D/houdini/cache/geo/main/v007/MyProject_props_marble_table_mdl_main_v007.bgeo.sc",
			want:     "/mnt/prod/publish/MyProject/assets/props/marble_table/geo/main/v007/marble_table_mdl_main_v007.bgeo.sc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, got, err := TranslatePath(reg, tt.mappings, tt.path, false, log)
			if err != nil {
				t.Fatalf("TranslatePath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("TranslatePath() = %q, want %q", got, tt.want)
			}
			if !src.Valid() {
				t.Error("source context is not valid")
			}
		})
	}
}

func TestTranslatePath_NoMatch(t *testing.T) {
	reg := defaultRegistry(t)
	log := zaptest.NewLogger(t)

	mappings, err := ParseMappings([]string{"software.render.image.shot=publish.render.image.shot"})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}
	src, _, err := TranslatePath(reg, mappings, "/somewhere/else", false, log)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("TranslatePath() error = %v, want ErrNotFound", err)
	}
	if src != nil {
		t.Error("no source location expected without match")
	}

	bad, err := ParseMappings([]string{"nope=project"})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}
	if _, _, err := TranslatePath(reg, bad, "/mnt/prod/projects/X", false, log); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("TranslatePath() error = %v, want ErrNotFound", err)
	}
}

func TestTranslatePath_TargetNeedsMore(t *testing.T) {
	reg := defaultRegistry(t)
	log := zaptest.NewLogger(t)

	mappings, err := ParseMappings([]string{"project=software.render.image.shot"})
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}
	src, _, err := TranslatePath(reg, mappings, "/mnt/prod/projects/MyProject", false, log)
	if !errors.Is(err, common.ErrUnboundValue) {
		t.Errorf("TranslatePath() error = %v, want ErrUnboundValue", err)
	}
	if src == nil || !src.Valid() {
		t.Error("matched source location has to be returned")
	}
}

func TestRenderPath(t *testing.T) {
	reg := defaultRegistry(t)

	values := map[string]string{"project": "MyProject", "epis": "E300", "seq": "010", "hdricat": "*"}
	loc, err := NewLocation(reg, "hdri", "", nil)
	if err != nil {
		t.Fatalf("NewLocation() error = %v", err)
	}
	got, err := RenderPath(loc, values, true)
	if err != nil {
		t.Fatalf("RenderPath() error = %v", err)
	}
	if want := "/mnt/prod/projects/MyProject/E300/010/lib/hdri/*/*.exr"; got != want {
		t.Errorf("RenderPath() = %q, want %q", got, want)
	}

	delete(values, "hdricat")
	loc, err = NewLocation(reg, "hdri", "", nil)
	if err != nil {
		t.Fatalf("NewLocation() error = %v", err)
	}
	got, err = RenderPath(loc, values, false)
	if err != nil {
		t.Fatalf("RenderPath() error = %v", err)
	}
	if want := "/mnt/prod/projects/MyProject/E300/010/lib/hdri/" + location.Undefined + "/*.exr"; got != want {
		t.Errorf("RenderPath() = %q, want %q", got, want)
	}
	if len(loc.Bundle().Values()) != 0 {
		t.Error("non strict render changed location context")
	}

	if _, err := RenderPath(loc, values, true); !errors.Is(err, common.ErrUnboundValue) {
		t.Errorf("RenderPath() error = %v, want ErrUnboundValue", err)
	}

	var ife *common.InvalidFormatError
	if _, err := RenderPath(loc, map[string]string{"hdricat": "Car"}, true); !errors.As(err, &ife) {
		t.Errorf("RenderPath() error = %v, want InvalidFormatError", err)
	}
}

func TestRenderPath_UnknownTag(t *testing.T) {
	reg := defaultRegistry(t)
	values := map[string]string{"project": "MyProject"}

	for _, strict := range []bool{false, true} {
		loc := location.New(reg, "/mnt/prod/projects/<project>/<nope>")
		if _, err := RenderPath(loc, values, strict); !errors.Is(err, common.ErrNotFound) {
			t.Errorf("RenderPath(strict=%t) error = %v, want ErrNotFound", strict, err)
		}
		if len(loc.Bundle().Values()) != 0 {
			t.Errorf("RenderPath(strict=%t) changed context on failure", strict)
		}
	}
}

func TestFormatLocations(t *testing.T) {
	reg := defaultRegistry(t)

	flat := FormatLocations(reg, false)
	lines := strings.Split(strings.TrimSuffix(flat, "\n"), "\n")
	if len(lines) != len(reg.TemplatePaths()) {
		t.Fatalf("got %d lines for %d templates", len(lines), len(reg.TemplatePaths()))
	}
	if !strings.HasPrefix(lines[0], "hdri ") {
		t.Errorf("first line = %q, want hdri first", lines[0])
	}
	if !strings.Contains(flat, "software.render.image.asset  /mnt/prod/projects/<project>/_assets/") {
		t.Error("flat listing misses nested template")
	}

	tree := FormatLocations(reg, true)
	if !strings.Contains(tree, "software\n  render\n") {
		t.Errorf("tree listing is not nested:\n%s", tree)
	}
	if !strings.Contains(tree, `      shot: "/mnt/prod/projects/<project>/<epis>/`) {
		t.Errorf("tree listing misses leaf:\n%s", tree)
	}
}

func TestDumpContext(t *testing.T) {
	reg := defaultRegistry(t)

	t.Run("resolved", func(t *testing.T) {
		loc := location.New(reg, "/mnt/prod/projects/<project>/<epis>")
		if err := loc.Extract("/mnt/prod/projects/MyProject/E400/seq"); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		got := dumpContext(t, loc)
		if !got.Valid {
			t.Error("context reported invalid")
		}
		if got.Values["project"] != "MyProject" || got.Values["epis"] != "E400" {
			t.Errorf("values = %v", got.Values)
		}
		if len(got.Unbound) != 0 {
			t.Errorf("unbound = %v", got.Unbound)
		}
		if got.Template != loc.Template() || len(got.Tags) != 2 {
			t.Errorf("unexpected dump %#v", got)
		}
	})

	t.Run("unresolved", func(t *testing.T) {
		// one tag not matching leaves every tag of the template unbound
		loc := location.New(reg, "/mnt/prod/projects/<project>/<epis>")
		if err := loc.Extract("/mnt/prod/projects/MyProject/seq"); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
		got := dumpContext(t, loc)
		if got.Valid {
			t.Error("context reported valid")
		}
		if len(got.Values) != 0 {
			t.Errorf("values = %v", got.Values)
		}
		if len(got.Unbound) != 2 || got.Unbound[0] != "project" || got.Unbound[1] != "epis" {
			t.Errorf("unbound = %v", got.Unbound)
		}
	})
}

func dumpContext(t *testing.T, loc *location.Location) contextDump {
	t.Helper()
	data, err := DumpContext(loc)
	if err != nil {
		t.Fatalf("DumpContext() error = %v", err)
	}
	var got contextDump
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("context dump is not YAML: %v", err)
	}
	return got
}

func TestDescribeSequence(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plate.1001.exr", "plate.1002.exr", "plate.1010.exr"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("failed to write test file: %v", err)
		}
	}
	path := filepath.Join(dir, "plate.####.exr")

	var buf bytes.Buffer
	if err := DescribeSequence(&buf, path, "%04d", 0, false, true); err != nil {
		t.Fatalf("DescribeSequence() error = %v", err)
	}
	want := filepath.Join(dir, "plate.%04d.exr") + " (1001-1010)\n" +
		"  " + filepath.Join(dir, "plate.1001.exr") + "\n" +
		"  " + filepath.Join(dir, "plate.1002.exr") + "\n" +
		"  " + filepath.Join(dir, "plate.1010.exr") + "\n"
	if buf.String() != want {
		t.Errorf("DescribeSequence() =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := DescribeSequence(&buf, path, "%04d", 12, true, false); err != nil {
		t.Fatalf("DescribeSequence() error = %v", err)
	}
	if want := filepath.Join(dir, "plate.0012.exr") + "\n"; buf.String() != want {
		t.Errorf("DescribeSequence() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := DescribeSequence(&buf, "/tmp/plate.exr", "%04d", 0, false, false); err != nil {
		t.Fatalf("DescribeSequence() error = %v", err)
	}
	if buf.String() != "/tmp/plate.exr (not a sequence)\n" {
		t.Errorf("DescribeSequence() = %q", buf.String())
	}

	if err := DescribeSequence(&buf, path, "%s", 1, true, false); !errors.Is(err, common.ErrInvalidFormat) {
		t.Errorf("DescribeSequence() error = %v, want ErrInvalidFormat", err)
	}
}
