// Package joblog persists finished jobs' framed stdout to gzip-compressed
// files on disk, one per job, so a long scheduler run's full output can be
// inspected after the fact without keeping it all in memory.
package joblog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// Archiver writes each archived job to <dir>/<number>-<label>.log.gz. It
// satisfies execengine.JobArchiver.
type Archiver struct {
	dir string

	mu    sync.Mutex
	index map[int]string // job number -> file path
}

// New constructs an Archiver writing under dir, creating it if necessary.
func New(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("joblog: mkdir %q: %w", dir, err)
	}
	return &Archiver{dir: dir, index: make(map[int]string)}, nil
}

// Archive gzip-compresses stdout, framed by the caller, to a file named
// after jobNumber and label, and records its path for Path.
func (a *Archiver) Archive(jobNumber int, label string, stdout string, exitCode int) error {
	name := fmt.Sprintf("%d-%s.log.gz", jobNumber, sanitize(label))
	path := filepath.Join(a.dir, name)

	t, err := renameio.TempFile("", path)
	if err != nil {
		return xerrors.Errorf("joblog: tempfile %q: %w", path, err)
	}
	defer t.Cleanup()

	zw := pgzip.NewWriter(t)
	if _, err := zw.Write([]byte(stdout)); err != nil {
		return xerrors.Errorf("joblog: write %q: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return xerrors.Errorf("joblog: close gzip writer for %q: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return xerrors.Errorf("joblog: replace %q: %w", path, err)
	}

	a.mu.Lock()
	a.index[jobNumber] = path
	a.mu.Unlock()

	return nil
}

// Path returns the on-disk path archived for jobNumber, if any.
func (a *Archiver) Path(jobNumber int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.index[jobNumber]
	return p, ok
}

func sanitize(label string) string {
	var b []byte
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b = append(b, c)
		default:
			b = append(b, '_')
		}
	}
	if len(b) == 0 {
		return "job"
	}
	return string(b)
}
