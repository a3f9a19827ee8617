package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/kingrea/callsheet/internal/config"
)

// keyMap lists the console bindings. The two message copies are
// configurable through keys.copy_greeting and keys.copy_follow_up.
type keyMap struct {
	Done         key.Binding
	Invalid      key.Binding
	Back         key.Binding
	Retry        key.Binding
	Login        key.Binding
	CopyPhone    key.Binding
	CopyID       key.Binding
	CopyGreeting key.Binding
	CopyFollowUp key.Binding
	Refresh      key.Binding
	SuccessLog   key.Binding
	FailureLog   key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func newKeyMap(keys config.KeysConfig) keyMap {
	greeting := orDefault(keys.CopyGreeting, "f1")
	followUp := orDefault(keys.CopyFollowUp, "f2")
	return keyMap{
		Done:         key.NewBinding(key.WithKeys("enter", "d"), key.WithHelp("enter/d", "done & next")),
		Invalid:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "invalid & next")),
		Back:         key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "previous")),
		Retry:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry/new rows")),
		Login:        key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "login")),
		CopyPhone:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "copy phone")),
		CopyID:       key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "copy id")),
		CopyGreeting: key.NewBinding(key.WithKeys(greeting, "1"), key.WithHelp(greeting+"/1", "copy greeting")),
		CopyFollowUp: key.NewBinding(key.WithKeys(followUp, "2"), key.WithHelp(followUp+"/2", "copy follow-up")),
		Refresh:      key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "refresh greeting")),
		SuccessLog:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "success log")),
		FailureLog:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "failure log")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Done, k.Invalid, k.Back, k.CopyGreeting, k.CopyFollowUp, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Done, k.Invalid, k.Back, k.Retry, k.Login},
		{k.CopyPhone, k.CopyID, k.CopyGreeting, k.CopyFollowUp, k.Refresh},
		{k.SuccessLog, k.FailureLog, k.Help, k.Quit},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
