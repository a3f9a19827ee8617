// Package clipboard copies operator texts to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available
// (for example xclip/xsel missing on a headless Linux box).
var ErrUnsupported = errors.New("clipboard: not supported on this system")

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("clipboard: nothing to copy")

// Writer puts text on a clipboard.
type Writer interface {
	WriteAll(text string) error
}

// System writes to the OS clipboard.
type System struct{}

func (System) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

// Copy trims text and writes it, refusing empty values.
func Copy(w Writer, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmpty
	}
	return w.WriteAll(text)
}

// CopyLines writes the non-blank values one per line and returns how many
// were copied.
func CopyLines(w Writer, values []string) (int, error) {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return 0, ErrEmpty
	}
	if err := w.WriteAll(strings.Join(kept, "\n")); err != nil {
		return 0, err
	}
	return len(kept), nil
}

// Memory is an in-process Writer used by tests and headless runs.
type Memory struct {
	Text   string
	Writes int
	Err    error
}

func (m *Memory) WriteAll(text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Text = text
	m.Writes++
	return nil
}
