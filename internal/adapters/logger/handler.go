package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// prettyHandler is a slog.Handler that prefixes each line with a
// colorized level marker. Grounded on the teacher's
// cli/internal/adapters/logger.PrettyHandler, trimmed of its TUI-only
// lipgloss styling since stu's logger has no dependency on the CLI's
// style package.
type prettyHandler struct {
	out   *termenv.Output
	level slog.Leveler
}

func newHandler(w io.Writer) slog.Handler {
	return &prettyHandler{
		out:   termenv.NewOutput(w, termenv.WithProfile(colorProfile(w))),
		level: slog.LevelInfo,
	}
}

// colorProfile returns termenv.Ascii (no escape codes at all) unless w is
// an *os.File attached to a terminal and NO_COLOR is unset, mirroring the
// teacher's internal/ui/output.ColorProfile gate.
func colorProfile(w io.Writer) termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	f, ok := w.(*os.File)
	if !ok {
		return termenv.Ascii
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var marker string
	var color termenv.Color

	switch r.Level {
	case slog.LevelWarn:
		marker = "!"
		color = termenv.ANSIYellow
	case slog.LevelError:
		marker = "x"
		color = termenv.ANSIRed
	default:
		marker = ">"
		color = termenv.ANSIBrightBlack
	}

	line := h.out.String(marker).Foreground(color).String() + " " + r.Message
	_, err := h.out.WriteString(line + "\n")
	return err
}

func (h *prettyHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *prettyHandler) WithGroup(_ string) slog.Handler      { return h }
