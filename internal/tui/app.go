// internal/tui/app.go
//
// The operator console. Model, Update and View follow bubbletea's Elm-style
// loop; the model never blocks.
//
// Cursor actions block on the gateway and the record store, so each one runs
// inside a tea.Cmd. The cursor reports to a bufferSink while it works; the
// action's result message carries those events back to Update.

package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/callsheet/internal/clipboard"
	"github.com/kingrea/callsheet/internal/config"
	"github.com/kingrea/callsheet/internal/cursor"
	"github.com/kingrea/callsheet/internal/gateway"
	"github.com/kingrea/callsheet/internal/logbook"
	"github.com/kingrea/callsheet/internal/messages"
	"github.com/kingrea/callsheet/internal/worklist"
)

// screen represents which view has the keyboard
type screen int

const (
	screenMain  screen = iota // Current customer and actions
	screenLogin               // Login form
	screenLog                 // Success or failure log viewer
)

// Options wires the console to its collaborators.
type Options struct {
	Store     worklist.Store
	Guard     *gateway.Guard
	Oracle    cursor.Oracle
	Renderer  *messages.Renderer
	Clipboard clipboard.Writer
	Journal   *logbook.Logbook
	Keys      config.KeysConfig
	Login     LoginDefaults
	RunID     string
	Context   context.Context
	Now       func() time.Time
}

type opResultMsg struct {
	action string
	events []sinkEvent
	err    error
}

type loginResultMsg struct {
	username string
	session  string
	err      error
}

// App is the console model.
type App struct {
	ctx      context.Context
	cursor   *cursor.Cursor
	sink     *bufferSink
	guard    *gateway.Guard
	renderer *messages.Renderer
	clip     clipboard.Writer
	logbook  *logbook.Logbook
	now      func() time.Time
	runID    string

	screen  screen
	keys    keyMap
	help    help.Model
	spinner spinner.Model
	animate bool // spinner ticks and cursor blink; off in tests
	login   *loginForm
	logList list.Model
	logKind logKind

	busy      bool
	busyLabel string
	record    *worklist.Record
	auth      cursor.AuthStatus
	checking  bool
	rendered  messages.Rendered
	banner    string
	bannerErr bool
	statusMsg string
	logTail   []string
	logTotal  int

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates the console and the cursor it drives.
func NewApp(opts Options) *App {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	clip := opts.Clipboard
	if clip == nil {
		clip = clipboard.System{}
	}
	sink := &bufferSink{}
	cursorOpts := []cursor.Option{cursor.WithClock(now)}
	if opts.Journal != nil {
		cursorOpts = append(cursorOpts, cursor.WithJournal(opts.Journal))
	}
	c := cursor.New(opts.Store, opts.Oracle, opts.Guard, sink, cursorOpts...)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347"))

	a := &App{
		ctx:      ctx,
		cursor:   c,
		sink:     sink,
		guard:    opts.Guard,
		renderer: opts.Renderer,
		clip:     clip,
		logbook:  opts.Journal,
		now:      now,
		runID:    opts.RunID,
		screen:   screenMain,
		keys:     newKeyMap(opts.Keys),
		help:     help.New(),
		spinner:  sp,
		animate:  true,
		login:    newLoginForm(opts.Login),
	}
	if a.runID != "" {
		a.logInfo("Console opened · run %s", a.runID)
	}
	a.refreshLogTail()
	return a
}

// Init shows the first unprocessed customer before anyone logs in.
func (a *App) Init() tea.Cmd {
	return a.startOp("preview", a.cursor.Preview)
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		if a.screen == screenLog {
			a.logList.SetSize(max(0, msg.Width-6), max(0, msg.Height-8))
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case opResultMsg:
		return a, a.handleOpResult(msg)

	case loginSubmitMsg:
		return a, a.submitLogin(msg)

	case loginCancelMsg:
		a.screen = screenMain
		a.statusMsg = "Login cancelled."
		return a, nil

	case loginResultMsg:
		return a, a.handleLoginResult(msg)

	case tea.KeyMsg:
		switch a.screen {
		case screenLogin:
			return a, a.login.Update(msg)
		case screenLog:
			return a, a.updateLogScreen(msg)
		default:
			return a, a.updateMainScreen(msg)
		}
	}

	if a.screen == screenLogin {
		return a, a.login.Update(msg)
	}
	return a, nil
}

func (a *App) updateMainScreen(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		a.logInfo("Console closed")
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Login):
		return a.openLogin("")
	case key.Matches(msg, a.keys.Done):
		return a.startCheck("mark done", func(ctx context.Context) error {
			return a.cursor.Mark(ctx, worklist.StatusDone)
		})
	case key.Matches(msg, a.keys.Invalid):
		return a.startCheck("mark invalid", func(ctx context.Context) error {
			return a.cursor.Mark(ctx, worklist.StatusInvalid)
		})
	case key.Matches(msg, a.keys.Back):
		return a.startOp("back", func(context.Context) error {
			return a.cursor.GoBack()
		})
	case key.Matches(msg, a.keys.Retry):
		return a.startCheck("advance", a.cursor.Advance)
	case key.Matches(msg, a.keys.CopyPhone):
		a.copyField("phone", func(r worklist.Record) string { return r.Phone })
	case key.Matches(msg, a.keys.CopyID):
		a.copyField("id", func(r worklist.Record) string { return r.ExternalID })
	case key.Matches(msg, a.keys.CopyGreeting):
		a.copyText("greeting", a.rendered.Greeting)
	case key.Matches(msg, a.keys.CopyFollowUp):
		a.copyText("follow-up", a.rendered.FollowUp)
	case key.Matches(msg, a.keys.Refresh):
		if a.record != nil {
			a.renderMessages()
			a.statusMsg = fmt.Sprintf("Greeting refreshed (%s).", messages.GreetingWord(a.now()))
		}
	case key.Matches(msg, a.keys.SuccessLog):
		a.openLog(logSuccess)
	case key.Matches(msg, a.keys.FailureLog):
		a.openLog(logFailure)
	}
	return nil
}

func (a *App) updateLogScreen(msg tea.KeyMsg) tea.Cmd {
	if a.logList.FilterState() != list.Filtering {
		switch msg.String() {
		case "esc", "q":
			a.screen = screenMain
			return nil
		case "c":
			entry, ok := selectedEntry(a.logList)
			if !ok {
				a.statusMsg = "Please select an entry to copy."
				return nil
			}
			a.copyText("id", entry.ExternalID)
			return nil
		case "a":
			ids := a.logFor(a.logKind).ExternalIDs()
			n, err := clipboard.CopyLines(a.clip, ids)
			switch {
			case errors.Is(err, clipboard.ErrEmpty):
				a.statusMsg = "No ids to copy."
			case err != nil:
				a.statusMsg = fmt.Sprintf("Clipboard error: %v", err)
			default:
				a.statusMsg = fmt.Sprintf("%d ids copied.", n)
			}
			return nil
		}
	}
	var cmd tea.Cmd
	a.logList, cmd = a.logList.Update(msg)
	return cmd
}

// startOp runs fn in a tea.Cmd unless another action is still in flight.
func (a *App) startOp(label string, fn func(context.Context) error) tea.Cmd {
	if a.busy {
		a.statusMsg = fmt.Sprintf("Still working on %s...", a.busyLabel)
		return nil
	}
	a.busy = true
	a.busyLabel = label
	ctx := a.ctx
	sink := a.sink
	run := func() tea.Msg {
		err := fn(ctx)
		return opResultMsg{action: label, events: sink.drain(), err: err}
	}
	if a.animate {
		return tea.Batch(run, a.spinner.Tick)
	}
	return run
}

// startCheck is startOp for actions that may reach the gateway. The
// customer panel switches to the checking view until the result arrives.
func (a *App) startCheck(label string, fn func(context.Context) error) tea.Cmd {
	cmd := a.startOp(label, fn)
	if cmd != nil {
		a.checking = true
	}
	return cmd
}

func (a *App) handleOpResult(msg opResultMsg) tea.Cmd {
	a.busy = false
	a.busyLabel = ""
	a.checking = false
	defer a.refreshLogTail()
	var cmds []tea.Cmd
	blocked := false
	for _, ev := range msg.events {
		if ev.kind == eventBlocked {
			blocked = true
		}
		cmds = append(cmds, a.applyEvent(ev))
	}
	switch err := msg.err; {
	case err == nil:
	case errors.Is(err, cursor.ErrBusy):
		a.statusMsg = "Another action is still running."
	case errors.Is(err, cursor.ErrRefused):
		a.statusMsg = strings.TrimPrefix(err.Error(), cursor.ErrRefused.Error()+": ")
	case errors.Is(err, cursor.ErrNotLoggedIn) && !blocked:
		cmds = append(cmds, a.openLogin("Please log in to continue."))
	default:
		a.statusMsg = fmt.Sprintf("%s failed.", msg.action)
	}
	return tea.Batch(cmds...)
}

func (a *App) applyEvent(ev sinkEvent) tea.Cmd {
	switch ev.kind {
	case eventRecord:
		rec := ev.record
		a.record = &rec
		a.auth = ev.auth
		a.checking = false
		a.banner = ""
		a.renderMessages()
		a.statusMsg = fmt.Sprintf("Row %d", rec.Position)
	case eventChecking:
		a.record = nil
		a.checking = true
		a.banner = ""
	case eventExhausted:
		a.record = nil
		a.checking = false
		a.setBanner("All customers have been processed. Press r to check for new rows.", false)
	case eventBlocked:
		a.checking = false
		a.setBanner(ev.message, true)
		return a.openLogin(ev.message)
	case eventStoreError:
		a.checking = false
		a.setBanner(fmt.Sprintf("Sheet error: %s · press r to retry", ev.message), true)
	case eventRemoteError:
		a.checking = false
		a.setBanner(fmt.Sprintf("Gateway error: %s · press r to retry", ev.message), true)
	}
	return nil
}

func (a *App) openLogin(notice string) tea.Cmd {
	a.screen = screenLogin
	a.login.blink = a.animate
	return a.login.open(notice)
}

func (a *App) submitLogin(msg loginSubmitMsg) tea.Cmd {
	if a.busy {
		a.login.err = fmt.Sprintf("Still working on %s...", a.busyLabel)
		return nil
	}
	a.busy = true
	a.busyLabel = "login"
	ctx := a.ctx
	guard := a.guard
	return func() tea.Msg {
		_, err := guard.Login(ctx, msg.username, msg.password, msg.session)
		return loginResultMsg{username: msg.username, session: msg.session, err: err}
	}
}

// handleLoginResult resumes the walk after a successful login. A record
// that is already presented stays put; anything else (preview, blocked,
// halted, exhausted) advances.
func (a *App) handleLoginResult(msg loginResultMsg) tea.Cmd {
	a.busy = false
	a.busyLabel = ""
	defer a.refreshLogTail()
	if msg.err != nil {
		a.login.err = msg.err.Error()
		a.logWarn("Login failed for %s: %v", msg.username, msg.err)
		return nil
	}
	a.screen = screenMain
	a.login.err = ""
	a.statusMsg = fmt.Sprintf("Logged in as %s.", msg.username)
	a.logInfo("Logged in as %s · session %s", msg.username, msg.session)
	if a.cursor.State() == cursor.StatePresenting {
		return nil
	}
	return a.startCheck("advance", a.cursor.Advance)
}

func (a *App) openLog(kind logKind) {
	a.logKind = kind
	a.logList = newLogList(kind, a.logFor(kind).Entries(), a.width, a.height)
	a.screen = screenLog
}

func (a *App) logFor(kind logKind) *cursor.OutcomeLog {
	if kind == logSuccess {
		return a.cursor.SuccessLog()
	}
	return a.cursor.FailureLog()
}

func (a *App) renderMessages() {
	if a.record == nil || a.renderer == nil {
		a.rendered = messages.Rendered{}
		return
	}
	out, err := a.renderer.Render(*a.record, a.now())
	if err != nil {
		a.setBanner(err.Error(), true)
		a.rendered = messages.Rendered{}
		return
	}
	a.rendered = out
}

func (a *App) copyField(label string, field func(worklist.Record) string) {
	if a.record == nil {
		a.statusMsg = "No customer on screen."
		return
	}
	a.copyText(label, field(*a.record))
}

func (a *App) copyText(label, text string) {
	err := clipboard.Copy(a.clip, text)
	switch {
	case errors.Is(err, clipboard.ErrEmpty):
		a.statusMsg = fmt.Sprintf("No %s to copy.", label)
	case err != nil:
		a.statusMsg = fmt.Sprintf("Clipboard error: %v", err)
	default:
		a.statusMsg = fmt.Sprintf("Copied %s.", label)
	}
}

func (a *App) setBanner(text string, isErr bool) {
	a.banner = text
	a.bannerErr = isErr
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
	a.refreshLogTail()
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
	a.refreshLogTail()
}

// refreshLogTail re-reads the journal tail shown by View.
func (a *App) refreshLogTail() {
	if a.logbook == nil {
		return
	}
	a.logTail, a.logTotal = a.logbook.Tail(8)
}

// View renders the UI.
func (a *App) View() string {
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		Render("☎ CALLSHEET")
	header = lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", a.renderSessionLine())

	var body string
	switch a.screen {
	case screenLogin:
		body = a.login.View(a.width)
	case screenLog:
		hint := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Render("c copy selected id · a copy all ids · / filter · esc back")
		body = lipgloss.JoinVertical(lipgloss.Left, a.logList.View(), hint)
	default:
		body = a.renderCustomer()
	}

	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(a.statusMsg)
	sections = append(sections, footer)
	if a.screen == screenMain {
		sections = append(sections, a.help.View(a.keys))
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderSessionLine() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	if a.guard != nil && a.guard.IsAuthenticated() {
		return style.Render(fmt.Sprintf("session %s · logged in", a.guard.Session().Name()))
	}
	return style.Render("not logged in")
}

func (a *App) renderCustomer() string {
	label := lipgloss.NewStyle().Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	var lines []string

	switch {
	case a.checking || (a.busy && a.record == nil):
		lines = append(lines, a.spinnerView()+" Checking...")
	case a.record == nil:
		lines = append(lines, muted.Render("No customer on screen."))
	default:
		rec := a.record
		lines = append(lines,
			label.Render("Contact Name: ")+orNA(rec.Name),
			label.Render("Phone: ")+orNA(rec.Phone)+"  "+a.renderAuth(),
			label.Render("ID: ")+orNA(rec.ExternalID)+muted.Render(fmt.Sprintf("   row %d", rec.Position)),
			"",
			label.Render("Message 1: Greeting"),
			a.renderMessageBox(a.rendered.Greeting),
			label.Render("Message 2: Follow Up"),
			a.renderMessageBox(a.rendered.FollowUp),
		)
	}
	if a.banner != "" {
		color := lipgloss.Color("#4CAF50")
		if a.bannerErr {
			color = lipgloss.Color("#FF6B6B")
		}
		lines = append(lines, "", lipgloss.NewStyle().Foreground(color).Bold(true).Render(a.banner))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(40, a.width-4)).
		Render(strings.Join(lines, "\n"))
}

func (a *App) renderAuth() string {
	if a.auth == cursor.AuthRegistered {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true).Render(a.auth.String())
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347")).Bold(true).Render(a.auth.String())
}

func (a *App) renderMessageBox(text string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#5B8DEF")).
		Padding(0, 1).
		Width(max(36, a.width-10)).
		Render(text)
}

func (a *App) spinnerView() string {
	if !a.animate {
		return "…"
	}
	return a.spinner.View()
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logTail, a.logTotal
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s · %d entries", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
