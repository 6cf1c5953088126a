package audit

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jobnorm/internal/rules"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type buildDoneMsg struct {
	set *rules.Set
	err error
}

type spinnerTickMsg struct{}

type loaderModel struct {
	domain  string
	buildFn func(ctx context.Context) (*rules.Set, error)
	frame   int
	result  *rules.Set
	err     error
	done    bool
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doBuild(), m.tick())
}

func (m loaderModel) doBuild() tea.Cmd {
	buildFn := m.buildFn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		set, err := buildFn(ctx)
		return buildDoneMsg{set: set, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case buildDoneMsg:
		m.result = msg.set
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = fmt.Errorf("cancelled")
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		return ""
	}
	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Render(spinnerFrames[m.frame])
	return fmt.Sprintf("%s Loading %s rules...\n", spinner, m.domain)
}

// RunLoader shows a spinner while the rule feed is fetched and prepared.
// It renders inline (no alt screen).
func RunLoader(domain string, buildFn func(ctx context.Context) (*rules.Set, error)) (*rules.Set, error) {
	m := loaderModel{
		domain:  domain,
		buildFn: buildFn,
	}
	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
