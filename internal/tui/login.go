package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LoginDefaults pre-fills the login form.
type LoginDefaults struct {
	Username string
	Password string
	Session  string
}

type loginField int

const (
	fieldUsername loginField = iota
	fieldPassword
	fieldSession
	fieldCount
)

// loginForm collects the three login values. All are required.
type loginForm struct {
	inputs []textinput.Model
	focus  loginField
	notice string
	err    string
	blink  bool // keep cursor-blink commands; the console turns this off in tests
}

type loginSubmitMsg struct {
	username string
	password string
	session  string
}

type loginCancelMsg struct{}

func newLoginForm(defaults LoginDefaults) *loginForm {
	f := &loginForm{inputs: make([]textinput.Model, fieldCount), blink: true}
	for i := range f.inputs {
		in := textinput.New()
		in.CharLimit = 128
		in.Width = 32
		f.inputs[i] = in
	}
	f.inputs[fieldUsername].Prompt = "Username: "
	f.inputs[fieldUsername].SetValue(defaults.Username)
	f.inputs[fieldPassword].Prompt = "Password: "
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.inputs[fieldPassword].EchoCharacter = '•'
	f.inputs[fieldPassword].SetValue(defaults.Password)
	f.inputs[fieldSession].Prompt = "Session:  "
	f.inputs[fieldSession].SetValue(defaults.Session)
	return f
}

// open focuses the first empty field, or the password field.
func (f *loginForm) open(notice string) tea.Cmd {
	f.notice = notice
	f.err = ""
	target := fieldPassword
	for i, in := range f.inputs {
		if strings.TrimSpace(in.Value()) == "" {
			target = loginField(i)
			break
		}
	}
	return f.setFocus(target)
}

func (f *loginForm) setFocus(field loginField) tea.Cmd {
	f.focus = field
	var cmd tea.Cmd
	for i := range f.inputs {
		if loginField(i) == field {
			cmd = f.cursorCmd(f.inputs[i].Focus())
		} else {
			f.inputs[i].Blur()
		}
	}
	return cmd
}

func (f *loginForm) values() (string, string, string) {
	return strings.TrimSpace(f.inputs[fieldUsername].Value()),
		f.inputs[fieldPassword].Value(),
		strings.TrimSpace(f.inputs[fieldSession].Value())
}

func (f *loginForm) Update(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return func() tea.Msg { return loginCancelMsg{} }
		case "tab", "down":
			return f.setFocus((f.focus + 1) % fieldCount)
		case "shift+tab", "up":
			return f.setFocus((f.focus + fieldCount - 1) % fieldCount)
		case "enter":
			if f.focus < fieldSession {
				return f.setFocus(f.focus + 1)
			}
			username, password, session := f.values()
			if username == "" || password == "" || session == "" {
				f.err = "All fields are required."
				return nil
			}
			f.err = ""
			return func() tea.Msg {
				return loginSubmitMsg{username: username, password: password, session: session}
			}
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f.cursorCmd(cmd)
}

func (f *loginForm) cursorCmd(cmd tea.Cmd) tea.Cmd {
	if !f.blink {
		return nil
	}
	return cmd
}

func (f *loginForm) View(width int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("API LOGIN")
	lines := []string{title, ""}
	if f.notice != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347")).Render(f.notice), "")
	}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	if f.err != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render(f.err))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("tab next field · enter submit · esc cancel"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#5B8DEF")).
		Padding(0, 1).
		Width(max(36, min(width, 60))).
		Render(strings.Join(lines, "\n"))
}
