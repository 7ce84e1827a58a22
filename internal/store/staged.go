package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Staged is an output file written under a temporary name in its target
// directory. Nothing at Path changes until Commit renames it into place.
type Staged struct {
	Path string
	tmp  string
}

// stage writes a new version of path through write into a temp file next
// to it. On error the temp file is removed.
func stage(path string, write func(io.Writer) error) (*Staged, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "store: create output dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, eris.Wrapf(err, "store: create temp file for %s", path)
	}
	s := &Staged{Path: path, tmp: tmp.Name()}

	if err := write(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		s.Discard()
		return nil, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		s.Discard()
		return nil, eris.Wrapf(err, "store: chmod %s", s.tmp)
	}
	if err := tmp.Close(); err != nil {
		s.Discard()
		return nil, eris.Wrapf(err, "store: close %s", s.tmp)
	}
	return s, nil
}

// Commit renames the staged file over Path.
func (s *Staged) Commit() error {
	if s.tmp == "" {
		return eris.Errorf("store: %s already committed or discarded", s.Path)
	}
	if err := os.Rename(s.tmp, s.Path); err != nil {
		return eris.Wrapf(err, "store: rename into %s", s.Path)
	}
	s.tmp = ""
	return nil
}

// Discard removes the staged file. It is a no-op after Commit and on nil.
func (s *Staged) Discard() {
	if s == nil || s.tmp == "" {
		return
	}
	os.Remove(s.tmp) //nolint:errcheck
	s.tmp = ""
}
