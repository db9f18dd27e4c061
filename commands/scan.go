package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ovfx/common"
	"ovfx/location"
)

// ScanFunc is called for every file which produces valid context, location
// bundle holds extracted values for the duration of the call.
type ScanFunc func(path string, l *location.Location) error

// ScanTree walks directory tree under root and calls fn for every regular file
// whose path fully resolves location template. Walk stops on first error
// returned by fn or when context is cancelled.
func ScanTree(ctx context.Context, l *location.Location, root string, expand bool, fn ScanFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ExtractContext(l, filepath.ToSlash(path), expand); err != nil {
			if errors.Is(err, common.ErrUnboundValue) {
				return nil
			}
			return err
		}
		return fn(path, l)
	})
}

// Scan is "scan" subcommand action.
func Scan(ctx context.Context, cmd *cli.Command) error {
	env, reg, log, err := prologue(ctx, "scan")
	if err != nil {
		return err
	}

	root := cmd.Args().First()
	if len(root) == 0 {
		return errors.New("no directory has been specified")
	}
	loc, err := locationFromFlags(cmd, reg, log)
	if err != nil {
		return err
	}

	w := output(cmd)
	var found int
	err = ScanTree(ctx, loc, root, cmd.Bool("expand"), func(path string, l *location.Location) error {
		found++
		values := l.Bundle().Values()
		pairs := make([]string, 0, len(values))
		for _, tag := range l.Tags() {
			pairs = append(pairs, tag+"="+values[tag])
		}
		slices.Sort(pairs)
		_, err := fmt.Fprintf(w, "%s\t%s\n", path, strings.Join(pairs, " "))
		return err
	})
	if err != nil {
		return err
	}
	if found > 0 {
		storeContext(env, log, loc)
	}
	log.Debug("Scan complete", zap.String("root", root), zap.Int("found", found))
	return nil
}
