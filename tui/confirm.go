// ABOUTME: Inline confirmation prompt for probable duplicates found during card intake
// ABOUTME: Lets the user merge (choosing how a changed role is kept) or save a new contact
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/harperreed/cardsync/intake"
	"github.com/harperreed/cardsync/match"
	"github.com/harperreed/cardsync/merge"
	"github.com/harperreed/cardsync/models"
)

// ErrAborted is returned when the user cancels the prompt.
var ErrAborted = errors.New("aborted by user")

type choice struct {
	label    string
	decision intake.Decision
}

// DuplicateModel asks what to do with a scanned card that matches an
// existing contact.
type DuplicateModel struct {
	scanned  models.Contact
	found    *match.Match
	choices  []choice
	cursor   int
	chosen   *intake.Decision
	aborted  bool
	finished bool
}

// NewDuplicateModel builds the prompt. Role-handling choices are offered only
// when the title or company changed.
func NewDuplicateModel(scanned models.Contact, found *match.Match) DuplicateModel {
	var choices []choice
	if merge.RoleChanged(found.Contact, scanned) {
		choices = []choice{
			{"Merge, keep the old role in history", intake.Decision{Merge: true, JobStatus: merge.JobHistory}},
			{"Merge, both roles are current", intake.Decision{Merge: true, JobStatus: merge.JobConcurrent}},
			{"Merge, replace the old role", intake.Decision{Merge: true, JobStatus: merge.JobOverwrite}},
		}
	} else {
		choices = []choice{{"Merge into existing contact", intake.Decision{Merge: true, JobStatus: merge.JobHistory}}}
	}
	choices = append(choices, choice{"Save as a new contact", intake.Decision{Merge: false}})
	return DuplicateModel{scanned: scanned, found: found, choices: choices}
}

func (m DuplicateModel) Init() tea.Cmd {
	return nil
}

func (m DuplicateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		d := m.choices[m.cursor].decision
		m.chosen = &d
		m.finished = true
		return m, tea.Quit
	case "n":
		d := m.choices[len(m.choices)-1].decision
		m.chosen = &d
		m.finished = true
		return m, tea.Quit
	case "esc", "ctrl+c", "q":
		m.aborted = true
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m DuplicateModel) View() string {
	if m.finished {
		return ""
	}
	var s strings.Builder
	s.WriteString(promptTitleStyle.Render(fmt.Sprintf("Possible duplicate (%s match, %s)", m.found.Rule, m.found.Confidence)))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("  existing: %s\n", describe(m.found.Contact)))
	s.WriteString(fmt.Sprintf("  scanned:  %s\n\n", describe(m.scanned)))
	for i, c := range m.choices {
		if i == m.cursor {
			s.WriteString(cursorStyle.Render("> " + c.label))
		} else {
			s.WriteString("  " + c.label)
		}
		s.WriteString("\n")
	}
	s.WriteString(dimStyle.Render("\n↑/↓ choose • enter confirm • n new contact • esc abort"))
	s.WriteString("\n")
	return s.String()
}

// Decision returns the chosen answer, or ErrAborted.
func (m DuplicateModel) Decision() (intake.Decision, error) {
	if m.aborted || m.chosen == nil {
		return intake.Decision{}, ErrAborted
	}
	return *m.chosen, nil
}

func describe(c models.Contact) string {
	parts := []string{c.Name}
	if c.Title != "" || c.Company != "" {
		parts = append(parts, strings.TrimSpace(c.Title+" @ "+c.Company))
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	return strings.Join(parts, " | ")
}

// Decider returns an intake.DecideFunc that runs the prompt on in and out.
func Decider(in io.Reader, out io.Writer) intake.DecideFunc {
	return func(ctx context.Context, scanned models.Contact, found *match.Match) (intake.Decision, error) {
		program := tea.NewProgram(NewDuplicateModel(scanned, found),
			tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))
		final, err := program.Run()
		if err != nil {
			return intake.Decision{}, fmt.Errorf("failed to run prompt: %w", err)
		}
		return final.(DuplicateModel).Decision()
	}
}

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
