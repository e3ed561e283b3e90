package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/types"
)

// row is one rendered line: either a group header or a saved item.
type row struct {
	header bool
	group  string
	item   types.SavedItem
}

// Model is the saved-collection browser. Presentation only: every
// mutation goes through the saved package and the collection is reloaded
// after each one.
type Model struct {
	store  *saved.Store
	rows   []row
	cursor int
	status string
	err    error
	width  int
	height int
}

// NewModel creates the TUI model over an open store.
func NewModel(store *saved.Store) Model {
	m := Model{store: store}
	m.reload()
	return m
}

func (m *Model) reload() {
	items, err := m.store.List()
	if err != nil {
		m.err = err
		return
	}
	m.err = nil

	byGroup := make(map[string][]types.SavedItem)
	for _, it := range items {
		byGroup[it.GroupName()] = append(byGroup[it.GroupName()], it)
	}

	names := make([]string, 0, len(byGroup))
	for name := range byGroup {
		if name != types.UngroupedName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	// Ungrouped always renders last.
	if _, ok := byGroup[types.UngroupedName]; ok {
		names = append(names, types.UngroupedName)
	}

	m.rows = m.rows[:0]
	for _, name := range names {
		m.rows = append(m.rows, row{header: true, group: name})
		for _, it := range byGroup[name] {
			m.rows = append(m.rows, row{group: name, item: it})
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// mutate runs a reconcile step and reloads the collection.
func (m *Model) mutate(status string, fn func([]types.SavedItem) ([]types.SavedItem, error)) {
	if err := m.store.Mutate(fn); err != nil {
		m.status = err.Error()
		return
	}
	m.status = status
	m.reload()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}

		case "d":
			if r, ok := m.current(); ok && !r.header {
				id := r.item.ID
				m.mutate("deleted "+r.item.Title, func(items []types.SavedItem) ([]types.SavedItem, error) {
					return saved.RemoveItem(items, id), nil
				})
			}

		case "u":
			// Dissolve the group under the cursor, keeping its items.
			if r, ok := m.current(); ok {
				name := r.group
				m.mutate("ungrouped "+name, func(items []types.SavedItem) ([]types.SavedItem, error) {
					return saved.DeleteGroup(items, name, saved.DeleteUngroup)
				})
			}

		case "x":
			// Delete the group under the cursor and its items.
			if r, ok := m.current(); ok {
				name := r.group
				m.mutate("removed group "+name, func(items []types.SavedItem) ([]types.SavedItem, error) {
					return saved.DeleteGroup(items, name, saved.DeleteRemove)
				})
			}

		case "r":
			m.reload()
			m.status = "reloaded"
		}
	}
	return m, nil
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
	statusStyle   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
)

func (m Model) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}
	if len(m.rows) == 0 {
		return "No saved tabs yet.\n\nPress q to quit.\n"
	}

	var b strings.Builder
	for i, r := range m.rows {
		var line string
		if r.header {
			line = headerStyle.Render("▸ " + r.group)
		} else {
			line = fmt.Sprintf("  %s %s", r.item.Title, dimStyle.Render(r.item.URL))
		}
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	footer := "↑↓ navigate · d delete tab · u dissolve group · x remove group · r reload · q quit"
	if m.status != "" {
		footer = m.status + " · " + footer
	}
	b.WriteString("\n" + statusStyle.Render(footer) + "\n")
	return b.String()
}
