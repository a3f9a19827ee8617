package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/kingrea/callsheet/internal/cursor"
)

// entryItem implements list.Item for outcome log entries.
type entryItem struct {
	entry cursor.Entry
}

func (i entryItem) Title() string { return i.entry.Label() }

func (i entryItem) Description() string {
	desc := i.entry.At.Format("15:04:05")
	if i.entry.Auto {
		desc += " · auto-skipped"
	}
	return desc
}

func (i entryItem) FilterValue() string { return i.entry.Label() }

type logKind int

const (
	logSuccess logKind = iota
	logFailure
)

func (k logKind) title(n int) string {
	if k == logSuccess {
		return fmt.Sprintf("Success Log (%d)", n)
	}
	return fmt.Sprintf("Failure Log (%d)", n)
}

func newLogList(kind logKind, entries []cursor.Entry, width, height int) list.Model {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{entry: e}
	}
	l := list.New(items, list.NewDefaultDelegate(), max(0, width-6), max(0, height-8))
	l.Title = kind.title(len(entries))
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	return l
}

func selectedEntry(l list.Model) (cursor.Entry, bool) {
	item, ok := l.SelectedItem().(entryItem)
	if !ok {
		return cursor.Entry{}, false
	}
	return item.entry, true
}
