// Package statusline prints a single, self-overwriting line of scheduler
// occupancy to a terminal, following the cursor-restore trick used for
// live build status in the upstream batch scheduler. It is a no-op when
// stdout is not a terminal, so piping a scheduler run to a file or another
// process never ends up littered with escape codes.
package statusline

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// Writer implements execengine.StatusWriter, printing "running=R waiting=W"
// to stdout and rewriting it in place on every Update.
type Writer struct {
	out        *os.File
	isTerminal bool

	mu      sync.Mutex
	lastLen int
}

// New constructs a Writer over the given file (os.Stdout in normal use).
// isatty decides terminal-ness once, at construction, matching the
// upstream scheduler's package-level isTerminal check.
func New(out *os.File) *Writer {
	return &Writer{
		out:        out,
		isTerminal: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
	}
}

// Update renders the current occupancy, overwriting the previous line.
func (w *Writer) Update(running, waiting int) {
	if !w.isTerminal {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf("running=%d waiting=%d", running, waiting)
	if width := terminalWidth(w.out); width > 0 && len(line) > width {
		line = line[:width]
	}
	if diff := w.lastLen - len(line); diff > 0 {
		line += strings.Repeat(" ", diff)
	}
	w.lastLen = len(line)

	fmt.Fprintln(w.out, line)
	fmt.Fprint(w.out, "\033[1A")
}

// terminalWidth returns the terminal column count for f, or 0 if it cannot
// be determined (f is not a terminal, or the ioctl fails).
func terminalWidth(f *os.File) int {
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0
	}
	return int(ws.Col)
}
