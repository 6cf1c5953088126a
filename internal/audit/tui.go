package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jobnorm/internal/rules"
)

// Lines per rule item in the list view (keyword + subtitle + blank separator).
const ruleItemHeight = 3

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	ruleKeywordStyle = lipgloss.NewStyle().
				Bold(true)

	ruleSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedRuleKeywordStyle = lipgloss.NewStyle().
					Bold(true).
					Foreground(lipgloss.Color("15")). // bright white
					Background(lipgloss.Color("24"))  // dark blue bg

	selectedRuleSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	matchLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")) // green

	noMatchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	testerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

type auditModel struct {
	set        *rules.Set
	ruleList   []rules.PreparedRule
	leftView   viewport.Model
	input      textinput.Model
	matches    []string
	tested     bool
	activePane int // 0=rule list, 1=tester
	cursor     int
	width      int
	height     int
	ready      bool
	wantQuit   bool
}

func newAuditModel(set *rules.Set) auditModel {
	input := textinput.New()
	input.Placeholder = "paste a title, city or description fragment"
	input.CharLimit = 0

	return auditModel{
		set:      set,
		ruleList: set.Rules(),
		input:    input,
	}
}

func (m auditModel) Init() tea.Cmd {
	return nil
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.wantQuit = true
			return m, tea.Quit
		case "tab":
			m.activePane = 1 - m.activePane
			if m.activePane == 1 {
				m.input.Focus()
			} else {
				m.input.Blur()
			}
			return m, nil
		case "esc":
			if m.activePane == 1 {
				m.activePane = 0
				m.input.Blur()
				return m, nil
			}
			return m, tea.Quit
		}

		if m.activePane == 0 {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "up", "k":
				if m.cursor > 0 {
					m.cursor--
				}
				m.syncList()
			case "down", "j":
				if m.cursor < len(m.ruleList)-1 {
					m.cursor++
				}
				m.syncList()
			}
			return m, nil
		}

		// Tester pane: enter evaluates the typed text against the set.
		if msg.String() == "enter" {
			text := m.input.Value()
			m.matches = sortedMatches(m.set.All(&text))
			m.tested = true
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *auditModel) layout() {
	paneWidth := m.width/2 - 2
	paneHeight := m.height - 4
	if paneHeight < 3 {
		paneHeight = 3
	}
	m.leftView = viewport.New(paneWidth, paneHeight)
	m.input.Width = paneWidth - 4
	m.syncList()
}

// syncList re-renders the rule list into the left viewport and keeps the
// cursor visible.
func (m *auditModel) syncList() {
	var b strings.Builder
	for i, rule := range m.ruleList {
		keyword := rule.RawKeyword
		subtitle := fmt.Sprintf("→ %s   %s", rule.Result, flagText(rule))
		if i == m.cursor {
			b.WriteString(selectedRuleKeywordStyle.Render(" "+keyword+" ") + "\n")
			b.WriteString(selectedRuleSubtitleStyle.Render(" "+subtitle+" ") + "\n\n")
		} else {
			b.WriteString(ruleKeywordStyle.Render(keyword) + "\n")
			b.WriteString(ruleSubtitleStyle.Render(subtitle) + "\n\n")
		}
	}
	m.leftView.SetContent(b.String())

	top := m.cursor * ruleItemHeight
	if top < m.leftView.YOffset {
		m.leftView.YOffset = top
	}
	bottom := top + ruleItemHeight
	if bottom > m.leftView.YOffset+m.leftView.Height {
		m.leftView.YOffset = bottom - m.leftView.Height
	}
}

func flagText(rule rules.PreparedRule) string {
	flags := []string{}
	if rule.CaseSensitive {
		flags = append(flags, "case")
	}
	if rule.SpacesSensitive {
		flags = append(flags, "spaces")
	}
	if len(flags) == 0 {
		return "insensitive"
	}
	return strings.Join(flags, "+") + "-sensitive"
}

func (m auditModel) View() string {
	if !m.ready {
		return "Loading..."
	}

	leftHeader := inactiveHeaderStyle.Render(fmt.Sprintf("Rules (%d)", len(m.ruleList)))
	rightHeader := inactiveHeaderStyle.Render("Tester")
	leftBorder := inactiveBorderStyle
	rightBorder := inactiveBorderStyle
	if m.activePane == 0 {
		leftHeader = activeHeaderStyle.Render(fmt.Sprintf("Rules (%d)", len(m.ruleList)))
		leftBorder = activeBorderStyle
	} else {
		rightHeader = activeHeaderStyle.Render("Tester")
		rightBorder = activeBorderStyle
	}

	left := leftBorder.Render(leftHeader + "\n" + m.leftView.View())

	var tester strings.Builder
	tester.WriteString(m.input.View() + "\n\n")
	switch {
	case !m.tested:
		tester.WriteString(testerHintStyle.Render("enter to classify the text"))
	case len(m.matches) == 0:
		tester.WriteString(noMatchStyle.Render("no labels matched"))
	default:
		for _, label := range m.matches {
			tester.WriteString(matchLabelStyle.Render("● "+label) + "\n")
		}
	}
	right := rightBorder.Width(m.width/2 - 2).Height(m.leftView.Height + 1).
		Render(rightHeader + "\n" + tester.String())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	status := statusBarStyle.Width(m.width).
		Render(fmt.Sprintf("%s  •  tab switch pane  ↑/↓ scroll  enter test  q/esc back", m.set.Name()))

	return panes + "\n" + status
}

func sortedMatches(labels map[string]bool) []string {
	out := make([]string, 0, len(labels))
	for label := range labels {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// RunRulesTUI launches the split-pane rules browser for one prepared set.
// Returns true if the user wants to exit the whole audit (ctrl+c), false to
// go back to the domain picker.
func RunRulesTUI(set *rules.Set) (bool, error) {
	p := tea.NewProgram(newAuditModel(set), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return true, err
	}
	final := result.(auditModel)
	return final.wantQuit, nil
}
