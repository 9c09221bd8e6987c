package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	dto "github.com/prometheus/client_model/go"

	"github.com/duskdb/duskdb/pkg/lsm"
	"github.com/duskdb/duskdb/pkg/metrics"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF00FF")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666")).
				Padding(0, 2)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type view int

const (
	dashboardView view = iota
	browseView
	consoleView
	metricsView
)

type keyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
}

var keys = keyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next view"),
	),
	ShiftTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev view"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "execute"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("down/j", "down"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Enter},
		{k.Up, k.Down},
		{k.Quit},
	}
}

type model struct {
	engine      *lsm.Engine
	mets        *metrics.Registry
	currentView view
	cmdInput    textinput.Model
	keyTable    table.Model
	help        help.Model
	keys        keyMap
	width       int
	height      int
	message     string
	messageErr  bool
	startTime   time.Time
	commandsRun int
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func initialModel(engine *lsm.Engine, mets *metrics.Registry) model {
	ti := textinput.New()
	ti.Placeholder = "put mykey myvalue | get mykey | rm mykey"
	ti.CharLimit = 500
	ti.Width = 60

	columns := []table.Column{
		{Title: "Key", Width: 30},
		{Title: "Value", Width: 40},
		{Title: "TrancID", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#FF00FF")).
		Bold(false)
	t.SetStyles(s)

	return model{
		engine:      engine,
		mets:        mets,
		currentView: dashboardView,
		cmdInput:    ti,
		keyTable:    t,
		help:        help.New(),
		keys:        keys,
		startTime:   time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tickCmd(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		if m.currentView == browseView {
			m.refreshKeyTable()
		}
		return m, tickCmd()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Tab):
			m.currentView = (m.currentView + 1) % 4
			m.onViewChanged()

		case key.Matches(msg, m.keys.ShiftTab):
			if m.currentView == 0 {
				m.currentView = 3
			} else {
				m.currentView--
			}
			m.onViewChanged()

		case key.Matches(msg, m.keys.Enter):
			if m.currentView == consoleView && m.cmdInput.Focused() {
				m.runCommand()
			}
		}
	}

	switch m.currentView {
	case consoleView:
		m.cmdInput, cmd = m.cmdInput.Update(msg)
		cmds = append(cmds, cmd)
	case browseView:
		m.keyTable, cmd = m.keyTable.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) onViewChanged() {
	if m.currentView == consoleView {
		m.cmdInput.Focus()
	} else {
		m.cmdInput.Blur()
	}
	if m.currentView == browseView {
		m.refreshKeyTable()
	}
}

// runCommand parses a single-line command typed into the console view
// and applies it to the engine. Supported forms: "put key value",
// "get key", "rm key".
func (m *model) runCommand() {
	line := strings.TrimSpace(m.cmdInput.Value())
	if line == "" {
		m.message = "command cannot be empty"
		m.messageErr = true
		return
	}

	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	m.commandsRun++

	switch verb {
	case "put":
		if len(fields) < 3 {
			m.message = "usage: put <key> <value>"
			m.messageErr = true
			return
		}
		key := fields[1]
		value := strings.Join(fields[2:], " ")
		if _, err := m.engine.Put([]byte(key), []byte(value), 0); err != nil {
			m.message = fmt.Sprintf("put failed: %v", err)
			m.messageErr = true
			return
		}
		m.message = fmt.Sprintf("put %q = %q", key, value)
		m.messageErr = false

	case "get":
		if len(fields) != 2 {
			m.message = "usage: get <key>"
			m.messageErr = true
			return
		}
		entry, ok, err := m.engine.Get([]byte(fields[1]), 0)
		if err != nil {
			m.message = fmt.Sprintf("get failed: %v", err)
			m.messageErr = true
			return
		}
		if !ok {
			m.message = fmt.Sprintf("%q not found", fields[1])
			m.messageErr = true
			return
		}
		m.message = fmt.Sprintf("%q = %q (tranc_id %d)", fields[1], entry.Value, entry.TrancID)
		m.messageErr = false

	case "rm", "remove", "del", "delete":
		if len(fields) != 2 {
			m.message = "usage: rm <key>"
			m.messageErr = true
			return
		}
		if _, err := m.engine.Remove([]byte(fields[1]), 0); err != nil {
			m.message = fmt.Sprintf("remove failed: %v", err)
			m.messageErr = true
			return
		}
		m.message = fmt.Sprintf("removed %q", fields[1])
		m.messageErr = false

	default:
		m.message = fmt.Sprintf("unknown command %q", verb)
		m.messageErr = true
		return
	}

	m.cmdInput.SetValue("")
}

// refreshKeyTable scans the engine's newest visible versions and
// populates the browse table with up to maxBrowseRows entries.
func (m *model) refreshKeyTable() {
	const maxBrowseRows = 200

	it, err := m.engine.Iter(0)
	if err != nil {
		return
	}

	rows := make([]table.Row, 0, maxBrowseRows)
	for it.IsValid() && len(rows) < maxBrowseRows {
		key, value := it.Current()
		rows = append(rows, table.Row{
			string(key),
			truncate(string(value), 40),
			strconv.FormatUint(it.TrancID(), 10),
		})
		if err := it.Advance(); err != nil {
			break
		}
	}

	m.keyTable.SetRows(rows)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func (m model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("duskdb - Interactive Engine Browser"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	switch m.currentView {
	case dashboardView:
		s.WriteString(m.renderDashboard())
	case browseView:
		s.WriteString(m.renderBrowse())
	case consoleView:
		s.WriteString(m.renderConsole())
	case metricsView:
		s.WriteString(m.renderMetrics())
	}

	if m.message != "" {
		s.WriteString("\n\n")
		if m.messageErr {
			s.WriteString(errorStyle.Render("x " + m.message))
		} else {
			s.WriteString(successStyle.Render("ok " + m.message))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))

	return s.String()
}

func (m model) renderTabs() string {
	tabs := []string{"Dashboard", "Browse", "Console", "Metrics"}
	var renderedTabs []string

	for i, tab := range tabs {
		if view(i) == m.currentView {
			renderedTabs = append(renderedTabs, activeTabStyle.Render(tab))
		} else {
			renderedTabs = append(renderedTabs, inactiveTabStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, renderedTabs...)
}

func (m model) renderDashboard() string {
	uptime := time.Since(m.startTime).Round(time.Second)
	mt := m.engine.Memtable()

	statsContent := fmt.Sprintf(`Statistics
----------
Uptime:       %s
Commands run: %d
Memtable:     %d bytes`,
		uptime,
		m.commandsRun,
		mt.TotalSize(),
	)

	quickActions := `Quick Actions
-------------
[Tab]       Navigate views
[Enter]     Run console command
[q]         Quit

Console commands
-----------------
put <key> <value>
get <key>
rm <key>`

	statsBox := statsBoxStyle.Render(statsContent)
	actionsBox := statsBoxStyle.Render(quickActions)

	return contentStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, statsBox, actionsBox),
	)
}

func (m model) renderBrowse() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Key Browser"))
	s.WriteString("\n\n")
	s.WriteString(m.keyTable.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Showing newest visible versions, ascending by key"))

	return contentStyle.Render(s.String())
}

func (m model) renderConsole() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Engine Console"))
	s.WriteString("\n\n")
	s.WriteString("Enter a command:\n\n")
	s.WriteString(m.cmdInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Examples:\n"))
	s.WriteString(helpStyle.Render("  put user:42 alice\n"))
	s.WriteString(helpStyle.Render("  get user:42\n"))
	s.WriteString(helpStyle.Render("  rm user:42\n"))

	return contentStyle.Render(s.String())
}

func (m model) renderMetrics() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("Prometheus Metrics"))
	s.WriteString("\n\n")

	families, err := m.mets.GetPrometheusRegistry().Gather()
	if err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("gather failed: %v", err)))
		return contentStyle.Render(s.String())
	}

	var content strings.Builder
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			content.WriteString(fmt.Sprintf("%-40s %s\n", fam.GetName(), formatMetricValue(metric)))
		}
	}

	s.WriteString(statsBoxStyle.Render(content.String()))
	return contentStyle.Render(s.String())
}

func formatMetricValue(m *dto.Metric) string {
	switch {
	case m.Counter != nil:
		return fmt.Sprintf("%.0f", m.Counter.GetValue())
	case m.Gauge != nil:
		return fmt.Sprintf("%.0f", m.Gauge.GetValue())
	case m.Histogram != nil:
		return fmt.Sprintf("count=%d sum=%.4f", m.Histogram.GetSampleCount(), m.Histogram.GetSampleSum())
	default:
		return "-"
	}
}

func main() {
	dataDir := "./data/lsmtool"
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}

	mets := metrics.NewRegistry()
	opts := lsm.DefaultOptions(dataDir)

	engine, err := lsm.Open(opts, nil, mets)
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	p := tea.NewProgram(initialModel(engine, mets), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("error running program: %v", err)
	}
}
