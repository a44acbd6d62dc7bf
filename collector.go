package execengine

import (
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/xerrors"
)

// FileCollector is a lazily evaluated directory-glob value: every call to
// Files re-scans Root for files whose basenames match Glob, sorted
// lexicographically. It is the standard way for a PipelineTask's Output to
// advertise "the files that will exist in this directory once I finish"
// without the producer and consumer needing to coordinate on a concrete
// list built at construction time.
type FileCollector struct {
	Root string
	Glob string
}

// NewFileCollector builds a FileCollector for files under root matching
// glob (basename matching, shell-glob style, no recursion).
func NewFileCollector(root, glob string) FileCollector {
	return FileCollector{Root: root, Glob: glob}
}

// Files re-scans Root and returns the absolute paths of files whose
// basename matches Glob, sorted lexicographically ascending.
func (f FileCollector) Files() ([]string, error) {
	entries, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, xerrors.Errorf("filecollector: read %q: %w", f.Root, err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := filepath.Match(f.Glob, e.Name())
		if err != nil {
			return nil, xerrors.Errorf("filecollector: match %q against %q: %w", f.Glob, e.Name(), err)
		}
		if ok {
			matches = append(matches, filepath.Join(f.Root, e.Name()))
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// Len re-scans Root and returns the number of matching files, or 0 if the
// scan fails.
func (f FileCollector) Len() int {
	files, err := f.Files()
	if err != nil {
		return 0
	}
	return len(files)
}
