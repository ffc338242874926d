package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ragbot/internal/domain"
	"ragbot/internal/history"
)

type fakeAsker struct {
	res *domain.QueryResult
	err error
}

func (f *fakeAsker) Ask(ctx context.Context, question string) (*domain.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.Question = question
	return &res, nil
}

type fakeLog struct {
	entries   []history.Entry
	cleared   bool
	appendErr error
}

func (l *fakeLog) Append(ctx context.Context, e history.Entry) (history.Entry, error) {
	if l.appendErr != nil {
		return history.Entry{}, l.appendErr
	}
	e.AskedAt = time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *fakeLog) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	return l.entries, nil
}

func (l *fakeLog) Clear(ctx context.Context) error {
	l.entries = nil
	l.cleared = true
	return nil
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func typeLine(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func answer() *domain.QueryResult {
	return &domain.QueryResult{
		Answer: "RAG retrieves documents first.",
		Records: []domain.ScoredRecord{
			{Record: domain.Record{ID: "1", Content: "Cats sleep. RAG retrieves documents.", Meta: map[string]any{"filename": "rag.txt"}}, Score: 0.9},
			{Record: domain.Record{ID: "2", Content: "Embeddings are vectors."}, Score: 0.5},
		},
		NumRecords:  2,
		ContextUsed: 2,
		Grounding:   0.5,
	}
}

func TestAsk_ShowsAnswerAndRecords(t *testing.T) {
	log := &fakeLog{}
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()}, WithLog(log)))

	m, cmd := typeLine(t, m, "What does RAG do?")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	msg := m.ask("What does RAG do?")()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.busy)
	require.NotNil(t, m.result)
	assert.Contains(t, m.render(), "RAG retrieves documents first.")
	assert.Contains(t, m.render(), "Source 1/2  rag.txt")
	require.Len(t, log.entries, 1)
	assert.Equal(t, []string{"rag.txt", "2"}, log.entries[0].Sources)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.render(), "Source 2/2  2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 0, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
}

func TestAsk_LogFailureIsReported(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := &fakeLog{appendErr: errors.New("disk full")}
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()}, WithLog(log), WithLogger(zap.New(core))))

	m, _ = typeLine(t, m, "What does RAG do?")
	next, _ := m.Update(m.ask("What does RAG do?")())
	m = next.(Model)

	require.NotNil(t, m.result)
	assert.Contains(t, m.render(), "RAG retrieves documents first.")
	assert.Contains(t, m.status, "Not saved to history: disk full")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to record exchange", logs.All()[0].Message)
}

func TestAsk_ErrorKeepsSessionAlive(t *testing.T) {
	boom := domain.NewBackendError("openai", "generate", 429, errors.New("slow down"))
	m := sized(t, New(context.Background(), &fakeAsker{err: boom}))

	m, _ = typeLine(t, m, "q")
	next, cmd := m.Update(m.ask("q")())
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Contains(t, m.status, "Error:")
	assert.Contains(t, m.status, "quota")

	_, cmd = typeLine(t, m, "another question")
	assert.NotNil(t, cmd)
}

func TestEnterIgnoredWhileBusy(t *testing.T) {
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()}))
	m, _ = typeLine(t, m, "first")
	require.True(t, m.busy)

	m, cmd := typeLine(t, m, "second")
	assert.Nil(t, cmd)
	assert.Equal(t, "first", m.lastQuery)
}

func TestCommands(t *testing.T) {
	log := &fakeLog{}
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()},
		WithLog(log),
		WithInfo(func() string { return "LLM provider  openai" })))

	m, _ = typeLine(t, m, "info")
	assert.Contains(t, m.render(), "LLM provider  openai")

	m, _ = typeLine(t, m, "HELP")
	assert.Contains(t, m.render(), "Commands:")

	_, _ = log.Append(context.Background(), history.Entry{Question: "earlier question", Answer: "earlier answer"})
	m, cmd := typeLine(t, m, "history")
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Contains(t, m.render(), "earlier question")

	m, cmd = typeLine(t, m, "clear")
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.True(t, log.cleared)
	assert.Empty(t, m.render())
	assert.Equal(t, "Conversation cleared.", m.status)
}

func TestHistoryWithoutLog(t *testing.T) {
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()}))
	m, cmd := typeLine(t, m, "history")
	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "disabled")
}

func TestQuit(t *testing.T) {
	m := sized(t, New(context.Background(), &fakeAsker{res: answer()}))
	for _, word := range []string{"exit", "quit"} {
		_, cmd := typeLine(t, m, word)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Cats sleep. RAG retrieves documents.", "what does rag retrieve")
	assert.Contains(t, out, "Cats sleep.")
	assert.Contains(t, out, "RAG retrieves documents.")
	assert.Equal(t, "Cats sleep.", highlightBestSentence("Cats sleep.", "zebra"))
}
