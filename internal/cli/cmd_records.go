package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
)

const defaultPreviewWidth = 60

// decodeValue turns a value argument into record bytes. "-" reads all of
// stdin, which is refused inside the shell since stdin carries its lines.
func (s *session) decodeValue(o *IO, arg string, isHex bool) ([]byte, error) {
	var raw []byte

	if arg == "-" {
		if s.inShell {
			return nil, errStdinInShell
		}

		if o.in == nil {
			return nil, fmt.Errorf("%w: stdin not available", errValueRequired)
		}

		data, err := io.ReadAll(o.in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		raw = data
	} else {
		raw = []byte(arg)
	}

	if !isHex {
		return raw, nil
	}

	decoded, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}

	return decoded, nil
}

func formatValue(data []byte, isHex bool) string {
	if isHex {
		return hex.EncodeToString(data)
	}

	return string(data)
}

// preview renders data as a quoted string cut at width runes.
func preview(data []byte, width int) string {
	runes := []rune(string(data))
	if width > 0 && len(runes) > width {
		return strconv.Quote(string(runes[:width])) + "..."
	}

	return strconv.Quote(string(data))
}

func newGetCmd(s *session) *Command {
	flags := newFlags("get")
	isHex := flags.Bool("hex", false, "Print the record as hex")

	return &Command{
		Flags: flags,
		Usage: "get <index> [--hex]",
		Short: "Print one record",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errIndexRequired
			}

			if len(args) > 1 {
				return errTooManyArgs
			}

			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			data, err := st.GetBytes(index)
			if err != nil {
				return err
			}

			o.Println(formatValue(data, *isHex))

			return nil
		},
	}
}

func newAddCmd(s *session) *Command {
	flags := newFlags("add")
	isHex := flags.Bool("hex", false, "Values are hex encoded")

	return &Command{
		Flags: flags,
		Usage: "add <value>... [--hex]",
		Short: "Append records, prints their indices",
		Long: `Append one record per value and print the index of each new record.
A value of "-" reads the record from stdin (not inside the shell).`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errValueRequired
			}

			values := make([][]byte, 0, len(args))

			for _, arg := range args {
				value, err := s.decodeValue(o, arg, *isHex)
				if err != nil {
					return err
				}

				values = append(values, value)
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			for _, value := range values {
				err = st.AddBytes(value)
				if err != nil {
					return err
				}

				o.Println(st.Len() - 1)
			}

			return nil
		},
	}
}

func newSetCmd(s *session) *Command {
	flags := newFlags("set")
	isHex := flags.Bool("hex", false, "Value is hex encoded")

	return &Command{
		Flags: flags,
		Usage: "set <index> <value> [--hex]",
		Short: "Overwrite a record in place",
		Long: `Overwrite a record in place. The new value may not be longer than the
record's capacity (its length when it was added); remove and re-add it
instead. A value of "-" reads the record from stdin (not inside the shell).`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errIndexRequired
			}

			if len(args) == 1 {
				return errValueRequired
			}

			if len(args) > 2 {
				return errTooManyArgs
			}

			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}

			value, err := s.decodeValue(o, args[1], *isHex)
			if err != nil {
				return err
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			return st.SetBytes(index, value)
		},
	}
}

func newRmCmd(s *session) *Command {
	return &Command{
		Usage: "rm <index>...",
		Short: "Remove records",
		Long: `Remove records by index. Indices refer to the state before the command,
so "rm 0 1" removes the first two records. Space is reclaimed by compact.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) == 0 {
				return errIndexRequired
			}

			indices := make([]int64, 0, len(args))

			for _, arg := range args {
				index, err := parseIndex(arg)
				if err != nil {
					return err
				}

				indices = append(indices, index)
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			// Highest first so earlier removals don't shift later targets.
			sortDescUnique(&indices)

			for _, index := range indices {
				err = st.RemoveAt(index)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newLsCmd(s *session) *Command {
	flags := newFlags("ls")
	limit := flags.IntP("limit", "n", 0, "Show at most `n` records (0 = all)")
	width := flags.IntP("width", "w", defaultPreviewWidth, "Cut previews after `n` characters (0 = never)")

	return &Command{
		Flags: flags,
		Usage: "ls [flags]",
		Short: "List records with length and capacity",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			for index := range st.Len() {
				if *limit > 0 && index >= int64(*limit) {
					o.Warn(fmt.Sprintf("showing %d of %d records", *limit, st.Len()), "raise --limit to see more")

					break
				}

				if ctx.Err() != nil {
					return ctx.Err()
				}

				// Capacity first: it leaves the cursor on index for the read.
				capacity, err := st.Capacity(index)
				if err != nil {
					return err
				}

				data, err := st.GetBytes(index)
				if err != nil {
					return err
				}

				o.Printf("%d\t%d/%d\t%s\n", index, len(data), capacity, preview(data, *width))
			}

			return nil
		},
	}
}

func sortDescUnique(indices *[]int64) {
	slices.Sort(*indices)
	*indices = slices.Compact(*indices)
	slices.Reverse(*indices)
}
