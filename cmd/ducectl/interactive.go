package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateIdle modelState = iota
	stateRunning
	stateDone
)

type interactiveModel struct {
	ctx       context.Context
	sc        *scenario
	steps     []step
	results   []stepResult
	spinner   spinner.Model
	transport string
	next      int
	runAll    bool
	state     modelState
}

type stepDoneMsg struct {
	result stepResult
}

func newInteractiveModel(ctx context.Context, sc *scenario, transport string) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stepStyle
	return &interactiveModel{
		ctx:       ctx,
		sc:        sc,
		steps:     sc.steps(),
		spinner:   sp,
		transport: transport,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *interactiveModel) runNext() tea.Cmd {
	st := m.steps[m.next]
	m.state = stateRunning
	return func() tea.Msg {
		return stepDoneMsg{result: m.sc.run(m.ctx, st)}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateRunning {
				m.sc.teardown()
				return m, tea.Quit
			}

		case "enter", " ":
			if m.state == stateIdle {
				return m, m.runNext()
			}

		case "a":
			if m.state == stateIdle {
				m.runAll = true
				return m, m.runNext()
			}
		}

	case stepDoneMsg:
		m.results = append(m.results, msg.result)
		m.next++
		switch {
		case msg.result.err != nil:
			m.sc.teardown()
			m.state = stateDone
		case m.next == len(m.steps):
			m.state = stateDone
		case m.runAll:
			return m, m.runNext()
		default:
			m.state = stateIdle
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Channel Scenario"))
	b.WriteString(" ")
	b.WriteString(m.transport)
	b.WriteString("\n\n")

	width := 0
	for _, st := range m.steps {
		width = max(width, len(st.name))
	}

	for i, st := range m.steps {
		switch {
		case i < len(m.results):
			b.WriteString(formatStep(m.results[i], width))
		case i == m.next && m.state == stateRunning:
			b.WriteString(m.spinner.View() + " " + st.name)
		case i == m.next && m.state == stateIdle:
			b.WriteString(selectedStyle.Render("> " + st.name))
		default:
			b.WriteString("  " + st.name)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch m.state {
	case stateDone:
		rep := m.sc.report()
		if last := m.results[len(m.results)-1]; last.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", last.err)))
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("Sync pool: %d created, %d reused, %d closed\n",
			rep.Manager.SyncCreated, rep.Manager.SyncReused, rep.Manager.SyncClosed))
		b.WriteString(fmt.Sprintf("Channel: %d batches, %d bytes, %d notifications\n",
			rep.Channel.Batches, rep.Channel.Bytes, rep.Notifications))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q quit"))
	case stateRunning:
		b.WriteString(helpStyle.Render("running..."))
	default:
		b.WriteString(helpStyle.Render("enter run step • a run all • q quit"))
	}

	return b.String()
}

func runInteractive(ctx context.Context, sc *scenario, transport string) error {
	p := tea.NewProgram(newInteractiveModel(ctx, sc, transport), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
