package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"ovfx/common"
	"ovfx/location"
)

// ExtractContext binds location fragments from path and fails when resulting
// context is not complete. Path is brought to NFC first, file systems may
// return decomposed names.
func ExtractContext(l *location.Location, path string, expand bool) error {
	extract := l.Extract
	if expand {
		extract = l.ExtractExpanded
	}
	if err := extract(norm.NFC.String(path)); err != nil {
		return err
	}
	if unbound := unboundTags(l); len(unbound) > 0 {
		return fmt.Errorf("path %q does not match %q, unresolved tags [%s]: %w",
			path, l.Template(), strings.Join(unbound, ", "), common.ErrUnboundValue)
	}
	return nil
}

// Extract is "extract" subcommand action.
func Extract(ctx context.Context, cmd *cli.Command) error {
	env, reg, log, err := prologue(ctx, "extract")
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	if len(path) == 0 {
		return errors.New("no path has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many paths", zap.Strings("ignoring", cmd.Args().Tail()))
	}

	loc, err := locationFromFlags(cmd, reg, log)
	if err != nil {
		return err
	}
	err = ExtractContext(loc, path, cmd.Bool("expand"))
	storeContext(env, log, loc)
	if err != nil {
		return err
	}

	log.Debug("Context extracted", zap.Any("values", loc.Bundle().Values()))
	_, err = fmt.Fprintln(output(cmd), loc.Info(cmd.Bool("all")))
	return err
}
