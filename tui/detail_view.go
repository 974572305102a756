package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/cardsync/record"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("CONTACT"))
	s.WriteString("\n\n")

	s.WriteString(m.renderContactDetail())
	s.WriteString("\n\n")

	// Help
	s.WriteString(m.renderDetailHelp())

	return s.String()
}

func (m Model) renderContactDetail() string {
	contact := m.selectedContact()
	if contact == nil {
		return fmt.Sprintf("Error: contact %s not found", m.selectedID)
	}

	var s strings.Builder

	s.WriteString(m.renderField("Name", contact.Name))
	s.WriteString(m.renderField("Title", contact.Title))
	s.WriteString(m.renderField("Company", contact.Company))
	s.WriteString(m.renderField("Email", contact.Email))
	s.WriteString(m.renderField("Secondary Email", contact.SecondaryEmail))
	s.WriteString(m.renderField("Phone", contact.Phone))
	s.WriteString(m.renderField("Website", contact.SocialProfiles.Website))
	s.WriteString(m.renderField("LinkedIn", contact.SocialProfiles.LinkedIn))
	s.WriteString(m.renderField("Met At", contact.MetAt))
	s.WriteString(m.renderField("Tags", strings.Join(contact.Tags, ", ")))
	s.WriteString(m.renderField("Email Check", string(contact.EmailValid)))
	s.WriteString(m.renderField("Verified", contact.LastVerifiedAt))
	if !contact.UpdatedAt.IsZero() {
		s.WriteString(m.renderField("Updated", record.FormatTime(contact.UpdatedAt)))
	}
	s.WriteString(m.renderField("Notes", contact.Notes))

	if len(contact.History) > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Bold(true).Render("PREVIOUS ROLES"))
		s.WriteString("\n")
		for _, h := range contact.History {
			s.WriteString(fmt.Sprintf("  • %s @ %s (%s)\n", h.Title, h.Company, h.Date))
		}
	}

	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		return ""
	}
	return fieldLabelStyle.Render(label+":") + " " + fieldValueStyle.Render(value) + "\n"
}

func (m Model) renderDetailHelp() string {
	help := []string{
		"g: Career graph",
		"d: Delete",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewList
		m.selectedID = ""
	case "d":
		m.viewMode = ViewConfirmDelete
	case "g":
		if err := m.generateGraph(); err != nil {
			m.err = err
			return m, nil
		}
		m.viewMode = ViewGraph
	}

	return m, nil
}
