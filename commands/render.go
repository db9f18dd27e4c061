package commands

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ovfx/location"
)

// RenderPath renders location template with values. In strict mode every tag
// must have a value, otherwise missing values are rendered as placeholder and
// location context is left untouched. Tags without fragment fail either way.
func RenderPath(l *location.Location, values map[string]string, strict bool) (string, error) {
	if !strict {
		return l.Render(nil, values)
	}
	for _, tag := range l.Tags() {
		if _, err := l.Bundle().Get(tag); err != nil {
			return "", fmt.Errorf("unable to render %q: %w", l.Template(), err)
		}
	}
	if err := l.Bundle().SetMany(values); err != nil {
		return "", err
	}
	return l.Translate(l.Template())
}

// Render is "render" subcommand action.
func Render(ctx context.Context, cmd *cli.Command) error {
	env, reg, log, err := prologue(ctx, "render")
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 0 {
		log.Warn("Malformed command line, unexpected arguments", zap.Strings("ignoring", cmd.Args().Slice()))
	}

	loc, err := locationFromFlags(cmd, reg, log)
	if err != nil {
		return err
	}
	values, err := ParseAssignments(cmd.StringSlice("set"))
	if err != nil {
		return err
	}

	out, err := RenderPath(loc, values, cmd.Bool("strict"))
	storeContext(env, log, loc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output(cmd), out)
	return err
}
