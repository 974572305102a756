package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("CARDSYNC"))
	s.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		s.WriteString("Search: ")
		s.WriteString(m.search.View())
		s.WriteString("\n\n")
	}

	// Table
	s.WriteString(m.renderContactsTable())
	s.WriteString("\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n")
	} else if m.message != "" {
		s.WriteString(messageStyle.Render(m.message))
		s.WriteString("\n")
	}

	// Help
	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderContactsTable() string {
	contacts := m.visibleContacts()

	columns := []table.Column{
		{Title: "Name", Width: 26},
		{Title: "Company", Width: 24},
		{Title: "Email", Width: 28},
		{Title: "Tags", Width: 20},
	}

	var rows []table.Row
	for _, contact := range contacts {
		rows = append(rows, table.Row{
			contact.Name,
			contact.Company,
			contact.Email,
			strings.Join(contact.Tags, ", "),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-10, 3)),
	)

	// Set selected row
	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}

	return t.View() + fmt.Sprintf("\n%d of %d contacts", len(contacts), len(m.contacts))
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Enter: View details",
		"/: Search",
		"r: Reload",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.visibleContacts())-1 {
			m.selectedRow++
		}
	case "enter":
		if id := m.getSelectedID(); id != "" {
			m.viewMode = ViewDetail
			m.selectedID = id
			m.message = ""
		}
	case "/":
		m.searching = true
		m.search.Focus()
		return m, nil
	case "esc":
		m.search.SetValue("")
		m.selectedRow = 0
	case "r":
		m.store.Invalidate()
		return m, m.loadContacts()
	}

	return m, nil
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", "ctrl+c":
		m.searching = false
		m.search.Blur()
		if msg.String() == "esc" {
			m.search.SetValue("")
		}
		m.selectedRow = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.selectedRow = 0
	return m, cmd
}

func (m Model) getSelectedID() string {
	contacts := m.visibleContacts()
	if m.selectedRow < len(contacts) {
		return contacts[m.selectedRow].ID
	}
	return ""
}
