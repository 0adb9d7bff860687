package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// progressMsg carries one pipeline progress message into the view.
type progressMsg string

// runDoneMsg carries the terminal result into the view.
type runDoneMsg struct {
	result *models.RunResult
}

type generateModel struct {
	idea    string
	spinner spinner.Model
	steps   []string
	result  *models.RunResult
	cancel  context.CancelFunc
	aborted bool
}

func newGenerateModel(idea string, cancel context.CancelFunc) generateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stepStyle
	return generateModel{idea: idea, spinner: s, cancel: cancel}
}

func (m generateModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m generateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			m.aborted = true
			return m, tea.Quit
		}

	case progressMsg:
		m.steps = append(m.steps, string(msg))
		return m, nil

	case runDoneMsg:
		m.result = msg.result
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m generateModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" AI Dev Team "))
	fmt.Fprintf(&b, "\n\n  %s\n\n", m.idea)

	for i, step := range m.steps {
		running := i == len(m.steps)-1 && m.result == nil && !m.aborted
		if running {
			fmt.Fprintf(&b, "  %s %s\n", m.spinner.View(), step)
		} else {
			fmt.Fprintf(&b, "  %s %s\n", successStyle.Render("✓"), dimStyle.Render(step))
		}
	}

	switch {
	case m.result != nil:
		b.WriteString("\n")
	case m.aborted:
		fmt.Fprintf(&b, "\n  %s\n", warnStyle.Render("cancelling..."))
	default:
		fmt.Fprintf(&b, "\n%s\n", helpStyle.Render("q: cancel run"))
	}
	return b.String()
}

// programSink forwards pipeline progress to a running bubbletea program.
type programSink struct {
	p *tea.Program
}

func (s *programSink) Progress(_ string, message string) {
	s.p.Send(progressMsg(message))
}

func (s *programSink) Complete(string, *models.RunResult) {}

// runGenerateTUI runs the pipeline while showing live progress. It returns
// once the run has finished, even if the view was closed early.
func runGenerateTUI(ctx context.Context, idea string) (*models.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newGenerateModel(idea, cancel), tea.WithOutput(os.Stderr))
	done := make(chan *models.RunResult, 1)
	go func() {
		result := Launcher.Run(ctx, generateRunID, idea, &programSink{p: p})
		done <- result
		p.Send(runDoneMsg{result: result})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	return <-done, nil
}
