package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/calvinalkan/recfile/internal/config"
	"github.com/calvinalkan/recfile/pkg/fs"
	"github.com/calvinalkan/recfile/pkg/recfile"
)

var (
	errIndexRequired = errors.New("index is required")
	errInvalidIndex  = errors.New("invalid index")
	errValueRequired = errors.New("value is required")
	errTooManyArgs   = errors.New("too many arguments")
	errNoStore       = errors.New("no record file (run 'recsh create' first)")
	errStdinInShell  = errors.New("reading a value from stdin (-) is not supported in the shell")
)

// session holds the record file shared by the commands of one invocation,
// or of every line in a shell.
type session struct {
	cfg  config.Config
	log  zerolog.Logger
	fsys fs.FS

	st *recfile.Store

	// inShell is set while the shell reads commands from stdin.
	inShell bool
}

func newSession(cfg config.Config, log zerolog.Logger) *session {
	return &session{cfg: cfg, log: log, fsys: fs.NewReal()}
}

func (s *session) options() recfile.Options {
	return recfile.Options{
		Path:   s.cfg.PathAbs,
		FS:     s.fsys,
		Verify: s.cfg.Verify,
		Logger: &s.log,
	}
}

// store returns the open store, opening it on first use.
func (s *session) store() (*recfile.Store, error) {
	if s.st != nil {
		return s.st, nil
	}

	exists, err := s.fsys.Exists(s.cfg.PathAbs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.cfg.PathAbs, err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", errNoStore, s.cfg.PathAbs)
	}

	st, err := recfile.Open(s.options())
	if err != nil {
		return nil, err
	}

	s.st = st

	return st, nil
}

// create replaces the session's store with a new empty file.
func (s *session) create() (*recfile.Store, error) {
	closeErr := s.close()
	if closeErr != nil {
		return nil, closeErr
	}

	st, err := recfile.Create(s.options())
	if err != nil {
		return nil, err
	}

	s.st = st

	return st, nil
}

// flush persists the header of an open store so the file can be read
// independently, for example by the validator.
func (s *session) flush() error {
	if s.st == nil {
		return nil
	}

	return s.st.Sync()
}

// close closes the store if it is open.
func (s *session) close() error {
	if s.st == nil {
		return nil
	}

	err := s.st.Close()
	s.st = nil

	return err
}

// resolve makes path absolute against the effective working directory.
func (s *session) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(s.cfg.EffectiveCwd, path)
}

// parseIndex parses a record index argument.
func parseIndex(arg string) (int64, error) {
	index, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidIndex, arg)
	}

	return index, nil
}
