package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

var errUnterminatedQuote = errors.New("unterminated quote")

const shellPrompt = "recsh> "

// lineReader yields shell input lines. io.EOF ends the shell.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

func newShellCmd(s *session) *Command {
	return &Command{
		Usage: "shell",
		Short: "Interactive shell on one open record file",
		Long: `Start an interactive shell. Every line is a recsh command run against the
same open record file; "exit" or Ctrl-D leaves the shell. When stdin is not
a terminal, lines are read from it without a prompt.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			lines := s.newLineReader(o)

			defer func() {
				closeErr := lines.Close()
				if closeErr != nil {
					s.log.Warn().Err(closeErr).Msg("close shell input")
				}
			}()

			return s.repl(ctx, o, lines)
		},
	}
}

// repl runs lines until EOF, "exit", or ctx is cancelled. Failing lines
// print their error and the shell continues.
func (s *session) repl(ctx context.Context, o *IO, lines lineReader) error {
	s.inShell = true
	defer func() { s.inShell = false }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := lines.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}

			return fmt.Errorf("read line: %w", err)
		}

		args, err := splitArgs(line)
		if err != nil {
			o.ErrPrintln("error:", err)

			continue
		}

		if len(args) == 0 {
			continue
		}

		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}

		code := s.dispatch(ctx, o, args, false)
		s.log.Debug().Strs("args", args).Int("code", code).Msg("shell command")
	}
}

func (s *session) newLineReader(o *IO) lineReader {
	if f, ok := o.in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		return newLinerReader(s.cfg.History)
	}

	return &scanReader{scanner: bufio.NewScanner(o.in)}
}

// scanReader reads lines from a non-interactive reader.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}

	err := r.scanner.Err()
	if err != nil {
		return "", err
	}

	return "", io.EOF
}

func (*scanReader) Close() error {
	return nil
}

// linerReader is the interactive line editor with persistent history.
type linerReader struct {
	state   *liner.State
	history string
}

func newLinerReader(history string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(completeCommand)

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linerReader{state: state, history: history}
}

func (r *linerReader) ReadLine() (string, error) {
	line, err := r.state.Prompt(shellPrompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}

	return line, nil
}

func (r *linerReader) Close() error {
	var saveErr error

	if r.history != "" {
		f, err := os.Create(r.history)
		if err == nil {
			_, saveErr = r.state.WriteHistory(f)
			saveErr = errors.Join(saveErr, f.Close())
		} else {
			saveErr = err
		}
	}

	return errors.Join(saveErr, r.state.Close())
}

// completeCommand completes the first word of a line to a command name.
func completeCommand(line string) []string {
	if strings.Contains(line, " ") {
		return nil
	}

	var out []string

	for _, cmd := range (&session{}).commands(false) {
		if strings.HasPrefix(cmd.Name(), line) {
			out = append(out, cmd.Name())
		}
	}

	for _, word := range []string{"help", "exit"} {
		if strings.HasPrefix(word, line) {
			out = append(out, word)
		}
	}

	return out
}

// splitArgs splits a shell line into words. Double or single quotes group
// words; backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)

			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()

				inWord = false
			}
		default:
			cur.WriteRune(r)

			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}

	if inWord {
		args = append(args, cur.String())
	}

	return args, nil
}
