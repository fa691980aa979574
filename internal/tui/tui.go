// Package tui provides a Bubble Tea viewer for docpilot sessions.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/docpilot/internal/session"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	kindAnnotationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindWarningStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	kindCommandStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindEventStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabCommands
	tabAnnotations
	tabEvents
	tabTimeline
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Commands", "Annotations", "Events", "Timeline",
}

// ── Timeline entry ───────────────────

type entryKind string

const (
	kindCmd   entryKind = "CMD"
	kindNote  entryKind = "NOTE"
	kindWarn  entryKind = "WARN"
	kindState entryKind = "STATE"
)

type timelineEntry struct {
	ts   time.Time
	kind entryKind
	text string
}

// ── Model ────────────────────

// Loader re-reads the session being viewed. It lets the viewer follow a
// session that is still being recorded.
type Loader func() (*session.Session, error)

// RefreshInterval is how often a live viewer reloads its session.
const RefreshInterval = 2 * time.Second

type reloadMsg struct {
	s   *session.Session
	err error
}

// Model is the root Bubble Tea model for the viewer.
type Model struct {
	session   *session.Session
	load      Loader
	loadErr   error
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	timeline  []timelineEntry
	// Commands tab: cursor position and expanded set
	cmdCursor   int
	expandedCmd map[int]bool
}

// New creates a viewer model for s. load may be nil for a static view.
func New(s *session.Session, load Loader) Model {
	return Model{
		session:     s,
		load:        load,
		timeline:    buildTimeline(s),
		expandedCmd: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return m.scheduleReload() }

func (m Model) scheduleReload() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		s, err := load()
		return reloadMsg{s: s, err: err}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.rebuild(tabTimeline)
				m.viewports[tabTimeline].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabCommands && m.cmdCursor > 0 {
				m.cmdCursor--
				m.rebuild(tabCommands)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabCommands && m.cmdCursor < len(m.session.Commands)-1 {
				m.cmdCursor++
				m.rebuild(tabCommands)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabCommands && len(m.session.Commands) > 0 {
				if m.expandedCmd[m.cmdCursor] {
					delete(m.expandedCmd, m.cmdCursor)
				} else {
					m.expandedCmd[m.cmdCursor] = true
				}
				m.rebuild(tabCommands)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil

	case reloadMsg:
		m.loadErr = msg.err
		if msg.err == nil && msg.s != nil && msg.s.UpdatedAt.After(m.session.UpdatedAt) {
			m.session = msg.s
			m.timeline = buildTimeline(msg.s)
			if m.cmdCursor >= len(msg.s.Commands) {
				m.cmdCursor = max(len(msg.s.Commands)-1, 0)
			}
			if m.ready {
				for i := tabID(0); i < tabCount; i++ {
					m.rebuild(i)
				}
			}
		}
		return m, m.scheduleReload()
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render(
		fmt.Sprintf("  docpilot  %s  [%s]", m.session.Description, m.session.State))

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	switch m.activeTab {
	case tabTimeline:
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabCommands:
		hint += "  ↑/↓ select  enter details"
	}
	if m.load != nil {
		hint += "  (live)"
	}
	if m.loadErr != nil {
		hint += "  reload failed: " + m.loadErr.Error()
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabCommands:
		return m.renderCommands()
	case tabAnnotations:
		return m.renderAnnotations()
	case tabEvents:
		return m.renderEvents()
	case tabTimeline:
		return m.renderTimeline()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	s := m.session
	var sb strings.Builder
	sb.WriteString(heading("Session"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("ID:", s.ID)
	row("Description:", s.Description)
	row("State:", s.State.String())
	row("Created:", s.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if s.StartedAt != nil {
		row("Started:", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if s.StoppedAt != nil {
		row("Stopped:", s.StoppedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if d, ok := s.Duration(); ok {
		row("Duration:", d.Truncate(time.Second).String())
	}
	if s.OutputFile != "" {
		row("Output:", s.OutputFile)
	}

	sb.WriteString(heading("Environment"))
	row("Directory:", s.Metadata.WorkingDirectory)
	row("Shell:", s.Metadata.ShellType)
	row("Platform:", s.Metadata.Platform)
	row("Host:", s.Metadata.Hostname)
	if s.Metadata.User != "" {
		row("User:", s.Metadata.User)
	}
	if len(s.Metadata.Tags) > 0 {
		row("Tags:", strings.Join(s.Metadata.Tags, ", "))
	}
	if s.Metadata.LLMProvider != "" {
		row("LLM:", s.Metadata.LLMProvider)
	}

	sb.WriteString(heading("Counts"))
	row("Commands:", fmt.Sprintf("%d", s.Stats.TotalCommands))
	row("Succeeded:", okStyle.Render(fmt.Sprintf("%d", s.Stats.SuccessfulCommands)))
	row("Failed:", failStyle.Render(fmt.Sprintf("%d", s.Stats.FailedCommands)))
	row("Annotations:", fmt.Sprintf("%d", s.Stats.TotalAnnotations))
	row("Pauses:", fmt.Sprintf("%d", s.Stats.PauseResumeCount))
	row("Events:", fmt.Sprintf("%d", len(s.Events)))
	return sb.String()
}

func exitBadge(code *int) string {
	switch {
	case code == nil:
		return dimStyle.Render("  ?")
	case *code == 0:
		return okStyle.Render("  ✓")
	default:
		return failStyle.Render(fmt.Sprintf("%3d", *code))
	}
}

func (m *Model) renderCommands() string {
	cmds := m.session.Commands
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Commands (%d)", len(cmds))))
	if len(cmds) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, c := range cmds {
		toggle := dimStyle.Render("  ▶ ")
		if m.expandedCmd[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		ts := timeStyle.Render(c.Timestamp.Format("15:04:05"))
		row := fmt.Sprintf("%s%s %s  %s", toggle, exitBadge(c.ExitCode), ts, c.Command)
		if i == m.cmdCursor {
			row = selectedRowStyle.Width(max(m.width-2, 1)).Render(row)
		}
		sb.WriteString(row + "\n")

		if m.expandedCmd[i] {
			detail := func(label, value string) {
				sb.WriteString(dimStyle.Render(fmt.Sprintf("        %-10s %s", label, value)) + "\n")
			}
			detail("cwd", c.WorkingDirectory)
			detail("shell", c.Shell)
			if c.Output != nil {
				sb.WriteString(dimStyle.Render(indent(*c.Output, "        ")) + "\n")
			}
			if c.Error != nil {
				sb.WriteString(failStyle.Render(indent(*c.Error, "        ")) + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func annotationStyle(k session.AnnotationKind) lipgloss.Style {
	if k == session.AnnotationWarning {
		return kindWarningStyle
	}
	return kindAnnotationStyle
}

func (m *Model) renderAnnotations() string {
	anns := m.session.Annotations
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Annotations (%d)", len(anns))))
	if len(anns) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, a := range anns {
		ts := timeStyle.Render(a.Timestamp.Format("15:04:05"))
		badge := annotationStyle(a.Kind).Render("[" + strings.ToUpper(string(a.Kind)) + "]")
		sb.WriteString(fmt.Sprintf("  %s  %s  %s\n\n", ts, badge, a.Text))
	}
	return sb.String()
}

func (m *Model) renderEvents() string {
	events := m.session.Events
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Audit Log (%d)", len(events))))
	for _, e := range events {
		ts := timeStyle.Render(e.Timestamp.Format("15:04:05"))
		badge := kindEventStyle.Render(fmt.Sprintf("%-22s", e.Type))
		sb.WriteString(fmt.Sprintf("  %s  %s %s\n", ts, badge, e.Details))
	}
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder

	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	entries := make([]timelineEntry, len(m.timeline))
	copy(entries, m.timeline)
	if m.sortAsc {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	} else {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts.After(entries[j].ts) })
	}

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("  (nothing recorded yet)") + "\n")
		return sb.String()
	}

	for _, e := range entries {
		ts := timeStyle.Render(e.ts.Format("15:04:05"))
		var style lipgloss.Style
		switch e.kind {
		case kindCmd:
			style = kindCommandStyle
		case kindWarn:
			style = kindWarningStyle
		case kindState:
			style = kindEventStyle
		default:
			style = kindAnnotationStyle
		}
		sb.WriteString(ts + style.Render(fmt.Sprintf("  %-6s", string(e.kind))) + "  " + e.text + "\n\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// buildTimeline merges commands, annotations and lifecycle transitions.
func buildTimeline(s *session.Session) []timelineEntry {
	var entries []timelineEntry
	for _, c := range s.Commands {
		if c.Timestamp.IsZero() {
			continue
		}
		entries = append(entries, timelineEntry{ts: c.Timestamp, kind: kindCmd, text: c.Command})
	}
	for _, a := range s.Annotations {
		k := kindNote
		if a.Kind == session.AnnotationWarning {
			k = kindWarn
		}
		entries = append(entries, timelineEntry{ts: a.Timestamp, kind: k, text: a.Text})
	}
	for _, e := range s.Events {
		switch e.Type {
		case session.EventSessionStarted, session.EventSessionPaused, session.EventSessionResumed,
			session.EventSessionStopped, session.EventErrorOccurred:
			text := string(e.Type)
			if e.Details != "" {
				text += ": " + e.Details
			}
			entries = append(entries, timelineEntry{ts: e.Timestamp, kind: kindState, text: text})
		}
	}
	return entries
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Run starts the viewer for s. A non-nil load keeps it in step with the
// session on disk.
func Run(s *session.Session, load Loader) error {
	p := tea.NewProgram(New(s, load), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
