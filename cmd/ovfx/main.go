package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ovfx/commands"
	"ovfx/config"
	"ovfx/location"
	"ovfx/misc"
	"ovfx/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		name := "config/default.yaml"
		if len(configFile) > 0 {
			name = fmt.Sprintf("config/%s", filepath.Base(configFile))
		}
		if data, err := config.Dump(env.Cfg); err == nil {
			env.Rpt.StoreData(name, data)
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 {
		env.Log.Debug("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if er := env.Rpt.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
	}
	return
}

// Regular errors are returned from subcommands, urfave/cli exit codes are not
// used.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("Unknown command, nothing to do", zap.String("command", name))
	}
}

func locationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "use configured location template with dot separated `KEYS`"},
		&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "use literal `TEMPLATE` with <tag> placeholders"},
	}
}

func main() {

	// allow graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "translates structured paths to fragment context and back",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Sources: cli.EnvVars("OVFX_CONFIG"),
				Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "extract",
				Usage:        "Extracts fragment context from path and prints it",
				OnUsageError: usageErrorHandler,
				Action:       commands.Extract,
				Flags: append(locationFlags(),
					&cli.BoolFlag{Name: "expand", Aliases: []string{"e"}, Usage: "expand environment variables in template before matching"},
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "include fragments without values in report"},
				),
				ArgsUsage: "PATH",
				CustomHelpTemplate: fmt.Sprintf(`%s
PATH:
    path to match, it has to start with the template, anything after the
    part matched by the template is ignored

Fails when any of the template tags cannot be resolved.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "translate",
				Usage:        "Translates path using context extracted with source location into target location",
				OnUsageError: usageErrorHandler,
				Action:       commands.Translate,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "map", Aliases: []string{"m"}, Usage: "`SRC=DST` pair of dot separated location keys, may be repeated"},
					&cli.BoolFlag{Name: "expand", Aliases: []string{"e"}, Usage: "expand environment variables in source templates before matching"},
				},
				ArgsUsage: "PATH",
				CustomHelpTemplate: fmt.Sprintf(`%s
Mappings are tried in order, first source location which produces valid
context for PATH is used to render its target location.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "render",
				Usage:        "Renders location template from fragment values",
				OnUsageError: usageErrorHandler,
				Action:       commands.Render,
				Flags: append(locationFlags(),
					&cli.StringSliceFlag{Name: "set", Aliases: []string{"s"}, Usage: "fragment value as `ID=VALUE`, may be repeated"},
					&cli.BoolFlag{Name: "strict", Usage: "fail when any tag has no value instead of rendering it as " + location.Undefined},
				),
			},
			{
				Name:         "parent",
				Usage:        "Prints location template truncated after selected tag",
				OnUsageError: usageErrorHandler,
				Action:       commands.Parent,
				Flags: append(locationFlags(),
					&cli.StringFlag{Name: "tag", Usage: "fragment `ID` to truncate template at"},
					&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "tag occurrence `N`, negative values count from the end"},
				),
			},
			{
				Name:         "scan",
				Usage:        "Lists files under directory which fully resolve location template",
				OnUsageError: usageErrorHandler,
				Action:       commands.Scan,
				Flags: append(locationFlags(),
					&cli.BoolFlag{Name: "expand", Aliases: []string{"e"}, Usage: "expand environment variables in template before matching"},
				),
				ArgsUsage: "DIRECTORY",
			},
			{
				Name:         "locations",
				Usage:        "Lists configured location templates",
				OnUsageError: usageErrorHandler,
				Action:       commands.Locations,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "tree", Usage: "output as indented tree"},
				},
			},
			{
				Name:         "seq",
				Usage:        "Describes file sequence path and its frames on disk",
				OnUsageError: usageErrorHandler,
				Action:       commands.Seq,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "%04d", Usage: "frame `TOKEN` to use in output"},
					&cli.IntFlag{Name: "frame", Usage: "output path of a single frame `N`"},
					&cli.BoolFlag{Name: "files", Usage: "list sequence files"},
				},
				ArgsUsage: "PATH",
				CustomHelpTemplate: fmt.Sprintf(`%s
PATH:
    file path with frame number or frame token before extension, for example
    "plate.1001.exr", "plate.%%04d.exr", "plate.$F4.exr" or "plate.####.exr"
`, cli.CommandHelpTemplate),
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       commands.DumpConfig,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}
