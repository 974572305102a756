// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Full-screen contact browser with search, detail, career graph and delete confirmation
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/cardsync/models"
	"github.com/harperreed/cardsync/store"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewGraph
	ViewConfirmDelete
)

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	store    *store.Store
	viewMode ViewMode

	contacts []models.Contact

	// List view state
	selectedRow int
	searching   bool
	search      textinput.Model

	// Detail view state
	selectedID string

	// Graph view state
	graphDOT string

	message string

	// UI state
	width  int
	height int
	err    error
}

type contactsLoadedMsg struct {
	contacts []models.Contact
	err      error
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, st *store.Store) Model {
	search := textinput.New()
	search.Placeholder = "name, email, company or tag"
	search.CharLimit = 80
	return Model{
		ctx:      ctx,
		store:    st,
		viewMode: ViewList,
		search:   search,
		width:    80,
		height:   24,
	}
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, st *store.Store) error {
	_, err := tea.NewProgram(NewModel(ctx, st), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadContacts()
}

func (m Model) loadContacts() tea.Cmd {
	return func() tea.Msg {
		contacts, err := m.store.List(m.ctx)
		return contactsLoadedMsg{contacts: contacts, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case contactsLoadedMsg:
		m.contacts = msg.contacts
		m.err = msg.err
		if rows := len(m.visibleContacts()); m.selectedRow >= rows {
			m.selectedRow = max(rows-1, 0)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewGraph:
		return m.renderGraphView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKeys(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	// Delegate to view-specific handlers
	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewGraph:
		return m.handleGraphKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	}

	return m, nil
}

// visibleContacts applies the search filter.
func (m Model) visibleContacts() []models.Contact {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	if query == "" {
		return m.contacts
	}
	out := []models.Contact{}
	for _, c := range m.contacts {
		if contactMatches(c, query) {
			out = append(out, c)
		}
	}
	return out
}

func contactMatches(c models.Contact, query string) bool {
	fields := append([]string{c.Name, c.Email, c.Company, c.Title}, c.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func (m Model) selectedContact() *models.Contact {
	for i := range m.contacts {
		if m.contacts[i].ID == m.selectedID {
			return &m.contacts[i]
		}
	}
	return nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)
