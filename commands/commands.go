// Package commands implements program subcommands. Every subcommand is a thin
// cli action around a function which does not depend on command line and could
// be tested on its own.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"ovfx/location"
	"ovfx/registry"
	"ovfx/state"
)

// prologue is shared start of every action working with locations.
func prologue(ctx context.Context, name string) (*state.LocalEnv, *registry.Registry, *zap.Logger, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	env := state.EnvFromContext(ctx)
	reg, err := env.Registry()
	if err != nil {
		return nil, nil, nil, err
	}
	return env, reg, env.Log.Named(name), nil
}

func envLogger(ctx context.Context, name string) *zap.Logger {
	return state.EnvFromContext(ctx).Log.Named(name)
}

func output(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

// SplitKeys turns dotted location key into key path.
func SplitKeys(keys string) []string {
	return strings.Split(keys, registry.KeySeparator)
}

// NewLocation creates location either from configured key path or from
// literal template, exactly one of them has to be specified.
func NewLocation(reg *registry.Registry, keys, template string, log *zap.Logger) (*location.Location, error) {
	switch {
	case len(keys) > 0 && len(template) > 0:
		return nil, errors.New("location and template are mutually exclusive")
	case len(keys) > 0:
		return location.FromKeys(reg, SplitKeys(keys), location.WithLogger(log))
	case len(template) > 0:
		return location.New(reg, template, location.WithLogger(log)), nil
	}
	return nil, errors.New("either location or template has to be specified")
}

func locationFromFlags(cmd *cli.Command, reg *registry.Registry, log *zap.Logger) (*location.Location, error) {
	return NewLocation(reg, cmd.String("location"), cmd.String("template"), log)
}

func splitPair(arg string) (string, string, error) {
	k, v, ok := strings.Cut(arg, "=")
	if !ok || len(k) == 0 {
		return "", "", fmt.Errorf("malformed argument %q, expected NAME=VALUE", arg)
	}
	return k, v, nil
}

// ParseAssignments converts list of id=value arguments into fragment values.
// All malformed and repeated entries are reported together.
func ParseAssignments(args []string) (map[string]string, error) {
	var (
		errs   error
		values = make(map[string]string, len(args))
	)
	for _, arg := range args {
		id, value, err := splitPair(arg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, exists := values[id]; exists {
			errs = multierr.Append(errs, fmt.Errorf("fragment %q assigned more than once", id))
			continue
		}
		values[id] = value
	}
	if errs != nil {
		return nil, errs
	}
	return values, nil
}

// contextDump is serialized form of resolved context stored in debug report.
type contextDump struct {
	Template string            `yaml:"template"`
	Valid    bool              `yaml:"valid"`
	Tags     []string          `yaml:"tags"`
	Values   map[string]string `yaml:"values,omitempty"`
	Unbound  []string          `yaml:"unbound,omitempty"`
}

// DumpContext serializes location template and its context to YAML.
func DumpContext(l *location.Location) ([]byte, error) {
	d := contextDump{
		Template: l.Template(),
		Valid:    l.Valid(),
		Tags:     l.Tags(),
		Values:   l.Bundle().Values(),
		Unbound:  unboundTags(l),
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("unable to serialize context: %w", err)
	}
	return data, nil
}

// storeContext puts context into debug report if one was requested.
func storeContext(env *state.LocalEnv, log *zap.Logger, l *location.Location) {
	if env.Rpt == nil {
		return
	}
	data, err := DumpContext(l)
	if err != nil {
		log.Warn("Unable to store context in report", zap.Error(err))
		return
	}
	env.Rpt.StoreData("context.yaml", data)
}

// unboundTags lists template tags without values in template order.
func unboundTags(l *location.Location) []string {
	values := l.Bundle().Values()
	return slices.DeleteFunc(l.Tags(), func(tag string) bool {
		_, ok := values[tag]
		return ok
	})
}
