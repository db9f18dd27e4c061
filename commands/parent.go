package commands

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"
)

// Parent is "parent" subcommand action.
func Parent(ctx context.Context, cmd *cli.Command) error {
	_, reg, log, err := prologue(ctx, "parent")
	if err != nil {
		return err
	}

	tag := cmd.String("tag")
	if len(tag) == 0 {
		return errors.New("no tag has been specified")
	}
	loc, err := locationFromFlags(cmd, reg, log)
	if err != nil {
		return err
	}
	parent, err := loc.Parent(tag, int(cmd.Int("index")))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(output(cmd), parent.Template())
	return err
}
