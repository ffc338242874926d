package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"ragbot/internal/domain"
	"ragbot/internal/history"
	"ragbot/internal/textmatch"
)

// Asker is the chat-facing subset of the orchestrator.
type Asker interface {
	Ask(ctx context.Context, question string) (*domain.QueryResult, error)
}

// Log is the conversation log.
type Log interface {
	Append(ctx context.Context, e history.Entry) (history.Entry, error)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Clear(ctx context.Context) error
}

const historyLimit = 20

const helpText = `Ask a question about your documents and press Enter.

Commands:
  help     show this help
  info     show configuration and knowledge base status
  history  show recent questions
  clear    clear the conversation log and the screen
  exit     leave (also quit, ctrl+c)

While an answer is shown, up/down cycle through its sources.`

type answerMsg struct {
	res    *domain.QueryResult
	err    error
	logErr error
}

type historyMsg struct {
	entries []history.Entry
	err     error
}

type clearedMsg struct{ err error }

// Model is the Bubble Tea model for the chat console.
type Model struct {
	ctx    context.Context
	svc    Asker
	log    Log
	info   func() string
	logger *zap.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	result    *domain.QueryResult
	cursor    int
	lastQuery string
	page      string
	status    string
	busy      bool
	ready     bool
}

// Option configures a Model.
type Option func(*Model)

// WithLog enables the history and clear commands and records every answer.
func WithLog(l Log) Option { return func(m *Model) { m.log = l } }

// WithLogger reports conversation log failures.
func WithLogger(l *zap.Logger) Option { return func(m *Model) { m.logger = l } }

// WithInfo sets the text shown by the info command.
func WithInfo(f func() string) Option { return func(m *Model) { m.info = f } }

// New creates a chat model. ctx bounds every question asked from it.
func New(ctx context.Context, svc Asker, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or type help"
	ti.Focus()
	ti.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:      ctx,
		svc:      svc,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		page:     helpText,
		status:   "Ready. Type help for commands.",
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.result = msg.res
		m.cursor = 0
		m.status = fmt.Sprintf("Answered in %s from %d record(s).", msg.res.Elapsed.Round(10*time.Millisecond), msg.res.NumRecords)
		if msg.logErr != nil {
			m.status += " Not saved to history: " + msg.logErr.Error()
		}
		m.refresh()
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.showPage(renderHistory(msg.entries))
		m.status = fmt.Sprintf("%d recent question(s).", len(msg.entries))
		return m, nil

	case clearedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.showPage("")
		m.status = "Conversation cleared."
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(line)
		case "down":
			if m.result != nil && len(m.result.Records) > 0 {
				m.cursor = (m.cursor + 1) % len(m.result.Records)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.result != nil && len(m.result.Records) > 0 {
				m.cursor = (m.cursor - 1 + len(m.result.Records)) % len(m.result.Records)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return m, tea.Quit
	case "help":
		m.showPage(helpText)
		return m, nil
	case "info":
		text := "No configuration available."
		if m.info != nil {
			text = m.info()
		}
		m.showPage(text)
		return m, nil
	case "history":
		if m.log == nil {
			m.status = "The conversation log is disabled."
			return m, nil
		}
		return m, m.loadHistory()
	case "clear":
		if m.log == nil {
			m.showPage("")
			return m, nil
		}
		return m, m.clearLog()
	}

	m.busy = true
	m.lastQuery = line
	m.status = fmt.Sprintf("Thinking about %q", line)
	return m, tea.Batch(m.spinner.Tick, m.ask(line))
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.Ask(m.ctx, question)
		msg := answerMsg{res: res, err: err}
		if err == nil && m.log != nil {
			// The answer is still shown if it cannot be recorded.
			if _, lerr := m.log.Append(m.ctx, history.EntryFor(res)); lerr != nil {
				m.logger.Warn("failed to record exchange", zap.Error(lerr))
				msg.logErr = lerr
			}
		}
		return msg
	}
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.log.Recent(m.ctx, historyLimit)
		return historyMsg{entries: entries, err: err}
	}
}

func (m Model) clearLog() tea.Cmd {
	return func() tea.Msg {
		return clearedMsg{err: m.log.Clear(m.ctx)}
	}
}

// showPage replaces the answer view with static text.
func (m *Model) showPage(text string) {
	m.result = nil
	m.page = text
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("ragbot")
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.result == nil {
		return m.page
	}
	width := max(20, m.viewport.Width-4)
	r := m.result
	var b strings.Builder
	b.WriteString(labelStyle.Render("Q: ") + r.Question + "\n\n")
	b.WriteString(labelStyle.Render("A: ") + lipgloss.NewStyle().Width(width).Render(r.Answer) + "\n\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("grounding %.2f  |  %d of %d record(s) in context", r.Grounding, r.ContextUsed, r.NumRecords)))
	if len(r.Records) == 0 {
		b.WriteString("\n\n" + mutedStyle.Render("No records matched."))
		return b.String()
	}
	src := r.Records[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s  score=%.3f", m.cursor+1, len(r.Records), src.Record.Label(), src.Score)
	b.WriteString("\n\n" + labelStyle.Render(title) + "\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(highlightBestSentence(src.Record.Content, m.lastQuery)))
	return b.String()
}

func renderHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(mutedStyle.Render(e.AskedAt.Format("2006-01-02 15:04")) + "  " + labelStyle.Render(e.Question) + "\n")
		b.WriteString(e.Answer)
		if len(e.Sources) > 0 {
			b.WriteString("\n" + mutedStyle.Render("sources: "+strings.Join(e.Sources, ", ")))
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	labelStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func highlightBestSentence(text, query string) string {
	sentences := textmatch.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	if best := textmatch.BestSentence(sentences, query); best >= 0 {
		sentences[best] = highlightStyle.Render(sentences[best])
	}
	return strings.Join(sentences, " ")
}
