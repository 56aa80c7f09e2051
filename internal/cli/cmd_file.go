package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/calvinalkan/recfile/internal/config"
	"github.com/calvinalkan/recfile/pkg/recfile"
)

var (
	errStoreExists      = errors.New("record file already exists (use --force to replace it)")
	errValidationFailed = errors.New("validation failed")
)

func bytesText(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

func newCreateCmd(s *session) *Command {
	flags := newFlags("create")
	force := flags.Bool("force", false, "Replace an existing file")

	return &Command{
		Flags: flags,
		Usage: "create [--force]",
		Short: "Create an empty record file",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			exists, err := s.fsys.Exists(s.cfg.PathAbs)
			if err != nil {
				return err
			}

			if exists && !*force {
				return fmt.Errorf("%w: %s", errStoreExists, s.cfg.PathAbs)
			}

			_, err = s.create()
			if err != nil {
				return err
			}

			o.Println("created", s.cfg.PathAbs)

			return nil
		},
	}
}

func newInfoCmd(s *session) *Command {
	return &Command{
		Usage: "info",
		Short: "Show record count and space usage",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			stats := st.Stats()

			o.Printf("path:         %s\n", st.Path())
			o.Printf("records:      %d\n", stats.Records)
			o.Printf("span:         %s\n", bytesText(stats.Span))
			o.Printf("live span:    %s\n", bytesText(stats.LiveSpan))

			pct := 0.0
			if stats.Span > 0 {
				pct = float64(stats.Reclaimable) * 100 / float64(stats.Span)
			}

			o.Printf("reclaimable:  %s (%.0f%%)\n", bytesText(stats.Reclaimable), pct)

			info, err := s.fsys.Stat(st.Path())
			if err == nil {
				o.Printf("file size:    %s\n", bytesText(info.Size()))
			}

			return nil
		},
	}
}

func newCompactCmd(s *session) *Command {
	return &Command{
		Usage: "compact",
		Short: "Rewrite the file without deleted records and slack",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return errTooManyArgs
			}

			st, err := s.store()
			if err != nil {
				return err
			}

			before := st.Span()

			err = st.Compact()
			if err != nil {
				if !errors.Is(err, recfile.ErrCompact) {
					// The file was replaced but could not be reopened.
					s.st = nil
				}

				return err
			}

			o.Printf("compacted %s -> %s (reclaimed %s)\n",
				bytesText(before), bytesText(st.Span()), bytesText(before-st.Span()))

			return nil
		},
	}
}

func newValidateCmd(s *session) *Command {
	return &Command{
		Usage: "validate [path]",
		Short: "Check the structure of a record file",
		Long: `Check the structure of a record file without modifying it.
Defaults to the configured file. Exits non-zero if a problem is found.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 1 {
				return errTooManyArgs
			}

			path := s.cfg.PathAbs
			if len(args) == 1 {
				path = s.resolve(args[0])
			}

			if path == s.cfg.PathAbs {
				err := s.flush()
				if err != nil {
					return err
				}
			}

			err := recfile.ValidateFS(s.fsys, path)
			if err == nil {
				o.Colored(color.FgGreen, "ok: %s", path)

				return nil
			}

			o.Colored(color.FgRed, "%s: %s", recfile.CodeOf(err), path)
			s.log.Debug().Err(err).Str("file", path).Msg("validation failed")

			return fmt.Errorf("%w: %w", errValidationFailed, err)
		},
	}
}

func newConfigCmd(s *session) *Command {
	return &Command{
		Usage: "config",
		Short: "Print the effective configuration",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			formatted, err := config.Format(s.cfg)
			if err != nil {
				return err
			}

			o.Println(formatted)
			o.Println()
			o.Println("# Resolved file:", s.cfg.PathAbs)

			if s.cfg.Sources.Global != "" {
				o.Println("# Global config:", s.cfg.Sources.Global)
			}

			if s.cfg.Sources.Project != "" {
				o.Println("# Project config:", s.cfg.Sources.Project)
			}

			return nil
		},
	}
}
