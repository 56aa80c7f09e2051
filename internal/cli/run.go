package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/recfile/internal/config"
)

// Run is the main entry point. Returns exit code.
//
// A signal received on sigCh cancels the running command's context. sigCh
// may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(in, out, errOut)

	globals := flag.NewFlagSet("recsh", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	path := globals.StringP("file", "f", "", "Record `file` to operate on")
	logLevel := globals.String("log-level", "", "Log `level` (debug, info, warn, error)")
	verify := globals.Bool("verify", false, "Validate the file before opening it")
	help := globals.BoolP("help", "h", false, "Show help")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		o.ErrPrintln("error:", err)
		printUsage(o, globals)

		return 1
	}

	rest := globals.Args()

	if *help || len(rest) == 0 {
		printUsage(o, globals)

		return 0
	}

	overrides := config.Overrides{Path: *path, LogLevel: *logLevel}
	if globals.Changed("verify") {
		overrides.Verify = verify
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		Overrides:       overrides,
		Env:             env,
	})
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	s := newSession(cfg, newLogger(errOut, cfg.Level()))

	code := s.dispatch(ctx, o, rest, true)

	closeErr := s.close()
	if closeErr != nil {
		o.ErrPrintln("error:", closeErr)

		return 1
	}

	return code
}

// newLogger returns a human-readable logger writing to w.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i any) string {
			if ll, ok := i.(string); ok {
				return strings.ToUpper(ll)
			}

			return "????"
		},
	}

	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// commands returns fresh command instances bound to s. Flag sets keep
// parsed values, so every invocation gets its own.
func (s *session) commands(withShell bool) []*Command {
	cmds := []*Command{
		newCreateCmd(s),
		newInfoCmd(s),
		newGetCmd(s),
		newAddCmd(s),
		newSetCmd(s),
		newRmCmd(s),
		newLsCmd(s),
		newCompactCmd(s),
		newValidateCmd(s),
		newDumpCmd(s),
		newMetricsCmd(s),
		newConfigCmd(s),
	}

	if withShell {
		cmds = append(cmds, newShellCmd(s))
	}

	return cmds
}

var errUnknownCommand = errors.New("unknown command")

// dispatch runs the command named by args[0] and returns its exit code.
func (s *session) dispatch(ctx context.Context, o *IO, args []string, withShell bool) int {
	name := args[0]

	if name == "help" {
		printCommands(o, s.commands(withShell))

		return 0
	}

	for _, cmd := range s.commands(withShell) {
		if cmd.Name() != name {
			continue
		}

		code := cmd.Run(ctx, o, args[1:])
		if code != 0 {
			return code
		}

		return o.Finish()
	}

	o.ErrPrintln("error:", fmt.Errorf("%w: %s", errUnknownCommand, name))

	return 1
}

func printUsage(o *IO, globals *flag.FlagSet) {
	o.Println("recsh - inspect and edit record files")
	o.Println()
	o.Println("Usage: recsh [flags] <command> [args]")
	o.Println()
	o.Println("Flags:")

	var buf strings.Builder
	globals.SetOutput(&buf)
	globals.PrintDefaults()
	o.Printf("%s", buf.String())

	o.Println()
	printCommands(o, (&session{}).commands(true))
}

func printCommands(o *IO, cmds []*Command) {
	o.Println("Commands:")

	for _, cmd := range cmds {
		o.Println(cmd.HelpLine())
	}

	o.Println()
	o.Println("Run 'recsh <command> --help' for command flags.")
}
