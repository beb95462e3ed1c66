// Package browse is the interactive terminal browser over the mirrored
// catalog: workspaces down to columns, read entirely from the local store.
package browse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabmirror/fabmirror/internal/catalog"
)

type level int

const (
	levelWorkspaces level = iota
	levelDatabases
	levelSchemas
	levelTables
	levelColumns
)

var levelTitles = map[level]string{
	levelWorkspaces: "Workspaces",
	levelDatabases:  "SQL Endpoints",
	levelSchemas:    "Schemas",
	levelTables:     "Tables",
	levelColumns:    "Columns",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	crumbStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// row is one selectable line at the current level.
type row struct {
	id     string // key used to descend
	label  string
	detail string
	dim    bool // inactive workspaces, unreachable endpoints
}

type loadedMsg struct {
	rows []row
	err  error
}

// Model is the bubbletea model for the catalog browser.
type Model struct {
	store catalog.Store

	level  level
	wsID   string
	wsName string
	dbID   string
	dbName string
	schema string
	table  string

	rows      []row
	cursor    int
	loading   bool
	spinner   spinner.Model
	filter    textinput.Model
	filtering bool
	err       error
	width     int
	height    int
}

// New creates the browser rooted at the workspace list.
func New(store catalog.Store) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	f := textinput.New()
	f.Placeholder = "filter"
	f.CharLimit = 64

	return Model{
		store:   store,
		spinner: s,
		filter:  f,
		loading: true,
		width:   100,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

// loadCmd fetches the rows of the current level from the store.
func (m Model) loadCmd() tea.Cmd {
	store, lvl := m.store, m.level
	wsID, dbID, schema, table := m.wsID, m.dbID, m.schema, m.table
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch lvl {
		case levelWorkspaces:
			ws, err := store.ListWorkspaces(ctx)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows := make([]row, 0, len(ws))
			for _, w := range ws {
				rows = append(rows, row{
					id:     w.ID,
					label:  w.Name,
					detail: w.State,
					dim:    w.State != catalog.StateActive,
				})
			}
			return loadedMsg{rows: rows}

		case levelDatabases:
			eps, err := store.ListEndpoints(ctx, wsID)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows := make([]row, 0, len(eps))
			for _, ep := range eps {
				detail := ep.Kind
				if ep.Server != nil {
					detail += "  " + *ep.Server
				}
				rows = append(rows, row{
					id:     ep.DatabaseID,
					label:  ep.Name,
					detail: detail,
					dim:    ep.Server == nil,
				})
			}
			return loadedMsg{rows: rows}

		case levelSchemas:
			schemas, err := store.ListSchemas(ctx, wsID, dbID)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows := make([]row, 0, len(schemas))
			for _, s := range schemas {
				rows = append(rows, row{id: s.SchemaName, label: s.SchemaName})
			}
			return loadedMsg{rows: rows}

		case levelTables:
			tables, err := store.ListTables(ctx, wsID, dbID, schema)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows := make([]row, 0, len(tables))
			for _, t := range tables {
				detail := ""
				if t.RowCount != nil {
					detail = fmt.Sprintf("%d rows", *t.RowCount)
				}
				rows = append(rows, row{id: t.TableName, label: t.TableName, detail: detail})
			}
			return loadedMsg{rows: rows}

		case levelColumns:
			cols, err := store.ListColumns(ctx, wsID, dbID, schema, table)
			if err != nil {
				return loadedMsg{err: err}
			}
			rows := make([]row, 0, len(cols))
			for _, c := range cols {
				detail := c.DataType
				if c.MaxLength != nil {
					detail = fmt.Sprintf("%s(%d)", c.DataType, *c.MaxLength)
				}
				if !c.IsNullable {
					detail += "  not null"
				}
				rows = append(rows, row{id: c.ColumnName, label: c.ColumnName, detail: detail})
			}
			return loadedMsg{rows: rows}
		}
		return loadedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loading = false
		m.err = msg.err
		m.rows = msg.rows
		m.cursor = 0
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	default:
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.cursor = 0
		return m, cmd
	}
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}

	case "r":
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.loadCmd())

	case "enter", "right", "l":
		return m.descend()

	case "esc", "backspace", "left", "h":
		return m.ascend()
	}
	return m, nil
}

func (m Model) descend() (tea.Model, tea.Cmd) {
	vis := m.visible()
	if m.level == levelColumns || m.cursor >= len(vis) {
		return m, nil
	}
	sel := vis[m.cursor]

	switch m.level {
	case levelWorkspaces:
		m.wsID, m.wsName = sel.id, sel.label
	case levelDatabases:
		m.dbID, m.dbName = sel.id, sel.label
	case levelSchemas:
		m.schema = sel.id
	case levelTables:
		m.table = sel.id
	}
	m.level++
	m.loading = true
	m.filter.SetValue("")
	return m, tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m Model) ascend() (tea.Model, tea.Cmd) {
	if m.level == levelWorkspaces {
		return m, tea.Quit
	}
	m.level--
	m.loading = true
	m.filter.SetValue("")
	return m, tea.Batch(m.spinner.Tick, m.loadCmd())
}

// visible applies the filter to the loaded rows.
func (m Model) visible() []row {
	f := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if f == "" {
		return m.rows
	}
	var out []row
	for _, r := range m.rows {
		if strings.Contains(strings.ToLower(r.label), f) {
			out = append(out, r)
		}
	}
	return out
}

func (m Model) breadcrumb() string {
	parts := []string{"catalog"}
	if m.level > levelWorkspaces {
		parts = append(parts, m.wsName)
	}
	if m.level > levelDatabases {
		parts = append(parts, m.dbName)
	}
	if m.level > levelSchemas {
		parts = append(parts, m.schema)
	}
	if m.level > levelTables {
		parts = append(parts, m.table)
	}
	return strings.Join(parts, " / ")
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(levelTitles[m.level]))
	b.WriteString("  ")
	b.WriteString(crumbStyle.Render(m.breadcrumb()))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " loading...\n")
		return b.String()
	}
	if m.err != nil {
		b.WriteString(errStyle.Render("error: "+m.err.Error()) + "\n")
		b.WriteString(helpStyle.Render("esc back · q quit") + "\n")
		return b.String()
	}

	vis := m.visible()
	if len(vis) == 0 {
		b.WriteString(dimStyle.Render("(empty - run `fabmirror refresh` to populate)") + "\n")
	}

	maxRows := m.height - 7
	if maxRows < 5 {
		maxRows = 5
	}
	start := 0
	if m.cursor >= maxRows {
		start = m.cursor - maxRows + 1
	}
	for i := start; i < len(vis) && i < start+maxRows; i++ {
		r := vis[i]
		prefix := "  "
		label := r.label
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
			label = cursorStyle.Render(label)
		} else if r.dim {
			label = dimStyle.Render(label)
		}
		line := prefix + label
		if r.detail != "" {
			line += "  " + detailStyle.Render(r.detail)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString(m.filter.View() + "\n")
	} else {
		b.WriteString(helpStyle.Render("enter descend · esc back · / filter · r reload · q quit") + "\n")
	}
	return b.String()
}
