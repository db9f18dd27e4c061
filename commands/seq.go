package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ovfx/seq"
)

// DescribeSequence writes sequence description for path: formatted with token
// or frame number, and optionally every file on disk belonging to it.
func DescribeSequence(w io.Writer, path, token string, frame int, hasFrame, files bool) error {
	s := seq.Parse(path)
	if !s.IsSeq() {
		_, err := fmt.Fprintf(w, "%s (not a sequence)\n", s.Raw())
		return err
	}

	if hasFrame {
		out, err := s.Frame(token, frame)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	}

	desc, err := s.Describe(token)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, desc); err != nil {
		return err
	}
	if !files {
		return nil
	}
	list, err := s.Files()
	if err != nil {
		return err
	}
	for _, f := range list {
		if _, err := fmt.Fprintf(w, "  %s\n", f); err != nil {
			return err
		}
	}
	return nil
}

// Seq is "seq" subcommand action.
func Seq(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := cmd.Args().First()
	if len(path) == 0 {
		return errors.New("no path has been specified")
	}
	if cmd.Args().Len() > 1 {
		log := envLogger(ctx, "seq")
		log.Warn("Malformed command line, too many paths", zap.Strings("ignoring", cmd.Args().Tail()))
	}
	return DescribeSequence(output(cmd), path, cmd.String("format"), int(cmd.Int("frame")), cmd.IsSet("frame"), cmd.Bool("files"))
}
