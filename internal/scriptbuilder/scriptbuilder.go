// Package scriptbuilder turns a label plus a program and its arguments into
// a standalone, executable wrapper shell script: a thin preamble that
// prints identifying framing lines, the real command, and a postamble that
// prints the exit code. Runners execute the script itself rather than the
// underlying program directly, so that stdout captured from the job always
// carries the same framing regardless of which Runner implementation ran
// it.
package scriptbuilder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

var scriptTmpl = template.Must(template.New("script").Parse(`#!/bin/sh
echo "#### COMMAND {{.Label}}"
echo "#### HOSTNAME $(hostname)"
echo "#### USER $(id -un)"
echo "#### START $(date -u +%Y-%m-%dT%H:%M:%SZ)"
{{.Argv}}
ec=$?
echo "#### END $(date -u +%Y-%m-%dT%H:%M:%SZ)"
echo "#### EXIT_CODE $ec"
exit $ec
`))

var seq uint64

// Build renders a wrapper script for label/program/args and writes it,
// executable, atomically into scriptsDir, returning its path. Concurrent
// calls with colliding normalised labels get distinct filenames via a
// process-lifetime counter, since PipelineTasks building many commands
// with the same label is the common case.
func Build(label, program string, args []string, scriptsDir string) (string, error) {
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		return "", xerrors.Errorf("scriptbuilder: mkdir %q: %w", scriptsDir, err)
	}

	argv := make([]string, 0, 1+len(args))
	argv = append(argv, shellQuote(program))
	for _, a := range args {
		argv = append(argv, shellQuote(a))
	}

	var buf bytes.Buffer
	if err := scriptTmpl.Execute(&buf, struct {
		Label string
		Argv  string
	}{
		Label: label,
		Argv:  strings.Join(argv, " "),
	}); err != nil {
		return "", xerrors.Errorf("scriptbuilder: render %q: %w", label, err)
	}

	n := atomic.AddUint64(&seq, 1)
	name := fmt.Sprintf("%s-%d-%d.sh", normaliseFilename(label), time.Now().UnixNano()%1000000, n)
	path := filepath.Join(scriptsDir, name)

	t, err := renameio.TempFile("", path)
	if err != nil {
		return "", xerrors.Errorf("scriptbuilder: tempfile for %q: %w", path, err)
	}
	defer t.Cleanup()
	if err := t.Chmod(0o755); err != nil {
		return "", xerrors.Errorf("scriptbuilder: chmod %q: %w", path, err)
	}
	if _, err := t.Write(buf.Bytes()); err != nil {
		return "", xerrors.Errorf("scriptbuilder: write %q: %w", path, err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return "", xerrors.Errorf("scriptbuilder: replace %q: %w", path, err)
	}

	return path, nil
}

// normaliseFilename collapses label into something safe as a filesystem
// name: lowercase, whitespace and punctuation folded to underscores. This
// is deliberately stricter than commandspec.go's name normalisation, which
// only needs to be unique within a program's own bookkeeping and never
// touches a filesystem.
func normaliseFilename(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "job"
	}
	return name
}

// shellQuote wraps s in single quotes, escaping any embedded single quote,
// so that the wrapper script reproduces argv tokens verbatim regardless of
// their contents.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
