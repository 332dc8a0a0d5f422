package editor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/josephlewis42/bsh/core/shellerr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Entry is one remembered command line.
type Entry struct {
	// Number counts every line added since the history was last cleared.
	Number int
	Line   string
}

// History is a bounded list of command lines.
type History struct {
	capacity int
	count    int
	entries  []Entry
}

// NewHistory creates a history keeping at most capacity lines.
func NewHistory(capacity int) *History {
	return &History{capacity: capacity}
}

// Add appends a line, skipping blank lines and repeats of the previous line.
func (h *History) Add(line string) {
	line = strings.TrimRight(line, "\n")
	if strings.TrimSpace(line) == "" || h.capacity <= 0 {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1].Line == line {
		return
	}

	h.count++
	h.entries = append(h.entries, Entry{Number: h.count, Line: line})
	h.trim()
}

func (h *History) trim() {
	if extra := len(h.entries) - h.capacity; extra > 0 {
		h.entries = append([]Entry(nil), h.entries[extra:]...)
	}
}

// Entries returns the remembered lines, oldest first.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

// Last returns the newest n lines, oldest first.
func (h *History) Last(n int) []Entry {
	if n > len(h.entries) {
		n = len(h.entries)
	}
	return h.Entries()[len(h.entries)-n:]
}

// Clear forgets every line and restarts numbering.
func (h *History) Clear() {
	h.entries = nil
	h.count = 0
}

// Capacity returns the maximum number of remembered lines.
func (h *History) Capacity() int {
	return h.capacity
}

// SetCapacity changes the maximum number of remembered lines, dropping the
// oldest ones if needed. Sizes below 1 are ignored.
func (h *History) SetCapacity(capacity int) {
	if capacity <= 0 {
		return
	}
	h.capacity = capacity
	h.trim()
}

// Expand replaces a leading event designator with the line it refers to:
// !! is the previous line, !N line N, !-N the Nth previous line and !prefix
// the newest line starting with prefix.
func (h *History) Expand(line string) (string, error) {
	if !strings.HasPrefix(line, "!") || len(line) == 1 || strings.ContainsAny(line[1:2], " \t=(") {
		return line, nil
	}

	event, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		event, rest = line[:i], line[i:]
	}

	entry, ok := h.lookup(event[1:])
	if !ok {
		return line, shellerr.Builtinf(1, "%s: event not found", event)
	}
	return entry.Line + rest, nil
}

func (h *History) lookup(designator string) (Entry, bool) {
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	if designator == "!" {
		return h.entries[len(h.entries)-1], true
	}

	if n, err := strconv.Atoi(designator); err == nil {
		if n < 0 {
			idx := len(h.entries) + n
			if idx < 0 {
				return Entry{}, false
			}
			return h.entries[idx], true
		}
		for _, e := range h.entries {
			if e.Number == n {
				return e, true
			}
		}
		return Entry{}, false
	}

	for i := len(h.entries) - 1; i >= 0; i-- {
		if strings.HasPrefix(h.entries[i].Line, designator) {
			return h.entries[i], true
		}
	}
	return Entry{}, false
}

// Load adds the lines of a history file. A missing file is not an error.
func (h *History) Load(fs afero.Fs, path string) error {
	contents, err := afero.ReadFile(fs, path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return errors.Wrap(err, "loading history")
	}

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		h.Add(scanner.Text())
	}
	return errors.Wrap(scanner.Err(), "loading history")
}

// Save writes the remembered lines to a history file.
func (h *History) Save(fs afero.Fs, path string) error {
	buf := &bytes.Buffer{}
	for _, e := range h.entries {
		fmt.Fprintln(buf, e.Line)
	}
	return errors.Wrap(afero.WriteFile(fs, path, buf.Bytes(), 0600), "saving history")
}
