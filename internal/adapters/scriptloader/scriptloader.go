// Package scriptloader implements ports.ScriptLoader, resolving stu's
// -f/-C rule-file surface (§6) into source text for internal/lexer.
package scriptloader

import (
	"io"
	"os"

	"go.stu.dev/stu/internal/core/ports"
	"go.trai.ch/zerr"
)

// stdinPath is the "-" sentinel §6 assigns to "read from standard input".
const stdinPath = "-"

// Loader implements ports.ScriptLoader against the real filesystem and
// process standard input.
type Loader struct {
	// Stdin is read when a caller asks for path "-"; defaults to os.Stdin.
	// Exposed for tests that don't want to fight with the real process
	// stdin.
	Stdin io.Reader
}

var _ ports.ScriptLoader = (*Loader)(nil)

// New returns a Loader reading from the process's real standard input.
func New() *Loader {
	return &Loader{Stdin: os.Stdin}
}

// LoadFile implements ports.ScriptLoader.
func (l *Loader) LoadFile(path string) (ports.ScriptSource, error) {
	if path == "" {
		return ports.ScriptSource{}, zerr.New("empty rule file path")
	}

	if path == stdinPath {
		stdin := l.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return ports.ScriptSource{}, zerr.Wrap(err, "failed to read rule file from stdin")
		}
		return ports.ScriptSource{File: stdinPath, Text: string(data)}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from -f, a trusted CLI argument
	if err != nil {
		return ports.ScriptSource{}, zerr.Wrap(err, "failed to read rule file")
	}
	return ports.ScriptSource{File: path, Text: string(data)}, nil
}

// LoadText implements ports.ScriptLoader.
func (l *Loader) LoadText(text string) ports.ScriptSource {
	return ports.ScriptSource{File: "<command line>", Text: text}
}
