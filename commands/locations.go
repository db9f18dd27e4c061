package commands

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"ovfx/registry"
	"ovfx/utils/debug"
)

// FormatLocations lists configured location templates in natural key order,
// either one per line or as indented tree.
func FormatLocations(reg *registry.Registry, tree bool) string {
	paths := reg.TemplatePaths()
	if tree {
		tw := debug.NewTreeWriter()
		for _, p := range paths {
			tw.Path(p.Keys, p.Template)
		}
		return tw.String()
	}

	width := 0
	for _, p := range paths {
		width = max(width, len(p.Name()))
	}
	var sb strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&sb, "%-*s  %s\n", width, p.Name(), p.Template)
	}
	return sb.String()
}

// Locations is "locations" subcommand action.
func Locations(ctx context.Context, cmd *cli.Command) error {
	_, reg, _, err := prologue(ctx, "locations")
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(output(cmd), FormatLocations(reg, cmd.Bool("tree")))
	return err
}
