package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rupor-github/gencfg"
	yaml "gopkg.in/yaml.v3"

	"ovfx/registry"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	FragmentConfig struct {
		ID      string `yaml:"id" validate:"required"`
		Label   string `yaml:"label,omitempty"`
		Pattern string `yaml:"pattern" validate:"required"`
	}

	EngineConfig struct {
		MatchTimeout time.Duration `yaml:"match_timeout" validate:"gte=0"`
	}

	Config struct {
		Version   int              `yaml:"version" validate:"eq=1"`
		Fragments []FragmentConfig `yaml:"fragments" validate:"dive"`
		Locations map[string]any   `yaml:"locations"`
		Engine    EngineConfig     `yaml:"engine"`
		Logging   LoggingConfig    `yaml:"logging"`
		Reporting ReporterConfig   `yaml:"reporting"`
	}
)

// Fragment ids have to be usable as template tags.
var fragmentID = regexp.MustCompile(`^[a-z_]+$`)

// NOTE: must match yaml field names above. Regular expressions and templates
// are not text/template input.
var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField("pattern"),
	gencfg.WithDoNotExpandField("locations"),
)

// checkConfig is struct level validation for things tags cannot express.
func checkConfig(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	seen := make(map[string]struct{}, len(cfg.Fragments))
	for i, f := range cfg.Fragments {
		name := fmt.Sprintf("Fragments[%d].ID", i)
		if !fragmentID.MatchString(f.ID) {
			sl.ReportError(f.ID, name, "ID", "fragment_id", "")
		}
		if _, exists := seen[f.ID]; exists {
			sl.ReportError(f.ID, name, "ID", "unique", "")
		}
		seen[f.ID] = struct{}{}
	}
	if err := checkTree(cfg.Locations, nil); err != nil {
		sl.ReportError(cfg.Locations, "Locations", "Locations", "template_tree", err.Error())
	}
}

func checkTree(node map[string]any, path []string) error {
	for key, v := range node {
		if len(key) == 0 || strings.Contains(key, registry.KeySeparator) {
			return fmt.Errorf("bad key %q under %q", key, strings.Join(path, registry.KeySeparator))
		}
		switch val := v.(type) {
		case string:
		case map[string]any:
			if err := checkTree(val, append(path, key)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%q must be template or group, got %T", strings.Join(append(path, key), registry.KeySeparator), v)
		}
	}
	return nil
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// locations are replaced as a whole, merging template trees from
	// different sources makes no sense
	var top map[string]any
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if _, ok := top["locations"]; ok {
		cfg.Locations = nil
	}

	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(checkConfig)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration tamplate to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Registry builds immutable fragment registry to be shared by all bundles and
// locations.
func (cfg *Config) Registry() (*registry.Registry, error) {
	defs := make([]registry.Definition, 0, len(cfg.Fragments))
	for _, f := range cfg.Fragments {
		defs = append(defs, registry.Definition{ID: f.ID, Label: f.Label, Pattern: f.Pattern})
	}
	reg, err := registry.New(defs,
		registry.WithTemplates(cfg.Locations),
		registry.WithMatchTimeout(cfg.Engine.MatchTimeout))
	if err != nil {
		return nil, fmt.Errorf("unable to build fragment registry: %w", err)
	}
	return reg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
