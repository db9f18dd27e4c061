package commands

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ovfx/common"
	"ovfx/location"
	"ovfx/registry"
)

// Mapping connects source location, which is used to extract context, with
// target location, which is rendered from it.
type Mapping struct {
	Source []string
	Target []string
}

func (m Mapping) String() string {
	return registry.TemplatePath{Keys: m.Source}.Name() + "=" + registry.TemplatePath{Keys: m.Target}.Name()
}

// ParseMappings converts list of SRC=DST arguments with dotted location keys.
func ParseMappings(args []string) ([]Mapping, error) {
	var (
		errs     error
		mappings = make([]Mapping, 0, len(args))
	)
	for _, arg := range args {
		src, dst, err := splitPair(arg)
		if err == nil && len(dst) == 0 {
			err = fmt.Errorf("malformed mapping %q, target is empty", arg)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		mappings = append(mappings, Mapping{Source: SplitKeys(src), Target: SplitKeys(dst)})
	}
	if errs != nil {
		return nil, errs
	}
	return mappings, nil
}

// TranslatePath tries mappings in order, first source location producing valid
// context for path is used to render its target. Source location is returned
// along with result so context could be reported.
func TranslatePath(reg *registry.Registry, mappings []Mapping, path string, expand bool, log *zap.Logger) (*location.Location, string, error) {
	for _, m := range mappings {
		src, err := location.FromKeys(reg, m.Source, location.WithLogger(log))
		if err != nil {
			return nil, "", fmt.Errorf("bad mapping %s: %w", m, err)
		}
		// target shares bundle with source
		dst, err := location.FromKeys(reg, m.Target, location.WithLogger(log), location.WithBundle(src.Bundle()))
		if err != nil {
			return nil, "", fmt.Errorf("bad mapping %s: %w", m, err)
		}

		if err := ExtractContext(src, path, expand); err != nil {
			if !errors.Is(err, common.ErrUnboundValue) {
				return nil, "", err
			}
			log.Debug("Mapping does not match", zap.Stringer("mapping", m), zap.Error(err))
			continue
		}

		log.Debug("Mapping matched", zap.Stringer("mapping", m))
		out, err := dst.Translate(dst.Template())
		if err != nil {
			return src, "", fmt.Errorf("unable to translate with mapping %s: %w", m, err)
		}
		return src, out, nil
	}
	return nil, "", fmt.Errorf("invalid context for path %q, no mapping matches: %w", path, common.ErrNotFound)
}

// Translate is "translate" subcommand action.
func Translate(ctx context.Context, cmd *cli.Command) error {
	env, reg, log, err := prologue(ctx, "translate")
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	if len(path) == 0 {
		return errors.New("no path has been specified")
	}
	mappings, err := ParseMappings(cmd.StringSlice("map"))
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		return errors.New("at least one mapping has to be specified")
	}

	src, out, err := TranslatePath(reg, mappings, path, cmd.Bool("expand"), log)
	if src != nil {
		storeContext(env, log, src)
	}
	if err != nil {
		return err
	}

	log.Debug("Path translated", zap.String("from", path), zap.String("to", out))
	_, err = fmt.Fprintln(output(cmd), out)
	return err
}
