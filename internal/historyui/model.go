// Package historyui provides the Bubble Tea browser for stored fits.
package historyui

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/pronyfit/internal/model"
	"github.com/verte-zerg/pronyfit/internal/stats"
	"github.com/verte-zerg/pronyfit/internal/store"
)

const (
	tabOverview = iota
	tabFits
	tabCurve
)

const (
	plotHeight = 12
	bestCount  = 5
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history browser.
type Model struct {
	store *store.Store
	cfg   model.HistoryConfig
	grid  stats.Grid

	history  stats.History
	errMsg   string
	selected *model.FitRecord
	curveErr string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	fitTable  table.Model
	layout    tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
}

// NewModel constructs a history browser. grid is the axis used to draw
// fitted curves.
func NewModel(st *store.Store, cfg model.HistoryConfig, grid stats.Grid) *Model {
	m := &Model{
		store: st,
		cfg:   cfg,
		grid:  grid,
		tabs:  []string{"Overview", "Fits", "Curve"},
	}
	m.initInputs()
	m.fitTable = buildFitTable(nil, 0, 1)
	m.initViewports()
	m.refreshHistory()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabFits {
				m.selectCurrentFit()
				m.activeTab = tabCurve
				m.fitTable.Blur()
				return m, tea.ClearScreen
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabFits {
				m.fitTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabFits {
				m.fitTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabFits {
				var cmd tea.Cmd
				m.fitTable, cmd = m.fitTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Selected returns the fit shown in the Curve tab, if any.
func (m *Model) Selected() *model.FitRecord {
	return m.selected
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Kind: "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[0].SetValue(strings.TrimSpace(m.cfg.Kind))
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format(time.DateOnly))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.setFitTableSize(m.width, bodyHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = max(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabFits {
		m.fitTable.Focus()
	} else {
		m.fitTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	kind := m.cfg.Kind
	if kind == "" {
		kind = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format(time.DateOnly)
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Filter: kind=%s  since=%s  last=%s  fits=%d", kind, since, last, len(m.history.Fits))
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Filter: /  Quit: q"
	if m.activeTab == tabFits {
		help = "Nav: left/right  Select: up/down  Show curve: enter  Filter: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filter (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabFits {
		if len(m.history.Fits) == 0 {
			return fitLines("No fits found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.fitTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshHistory() {
	history, err := stats.BuildHistory(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load fits.")
		}
		return
	}
	m.errMsg = ""
	m.history = history
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.applyFitTable(width, bodyHeight)
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load fits.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.history.Fits, width))
	m.viewports[tabCurve].SetContent(renderCurve(m.selected, m.grid, width, m.curveErr))
}

func (m *Model) selectCurrentFit() {
	row := m.fitTable.SelectedRow()
	if len(row) == 0 {
		return
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		m.curveErr = fmt.Sprintf("invalid fit id %q", row[0])
		m.renderTabContents()
		return
	}
	rec, err := m.store.GetFit(context.Background(), id)
	if err != nil {
		m.selected = nil
		m.curveErr = err.Error()
		m.renderTabContents()
		return
	}
	m.selected = &rec
	m.curveErr = ""
	m.renderTabContents()
}

func renderOverview(fits []model.FitSummary, width int) string {
	if len(fits) == 0 {
		return "No fits found."
	}
	summary := renderSummaryCards(fits, width)
	var buf bytes.Buffer
	if err := stats.RenderRSquaredTrend(&buf, fits, width, plotHeight, true); err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render trend: %v", err)
	}
	best := renderBest(fits)
	return strings.TrimRight(summary+"\n\n"+buf.String()+best, "\n")
}

func renderSummaryCards(fits []model.FitSummary, width int) string {
	kinds := map[model.Kind]bool{}
	var sum float64
	defined := 0
	best := math.Inf(-1)
	for _, f := range fits {
		kinds[f.Spec.Kind] = true
		if math.IsNaN(f.RSquared) {
			continue
		}
		sum += f.RSquared
		defined++
		best = math.Max(best, f.RSquared)
	}
	avgText, bestText := "n/a", "n/a"
	if defined > 0 {
		avgText = fmt.Sprintf("%.6f", sum/float64(defined))
		bestText = fmt.Sprintf("%.6f", best)
	}
	cards := []string{
		metricCard("Fits", strconv.Itoa(len(fits))),
		metricCard("Kinds", strconv.Itoa(len(kinds))),
		metricCard("Avg R²", avgText),
		metricCard("Best R²", bestText),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func renderBest(fits []model.FitSummary) string {
	top := stats.BestFits(fits, bestCount)
	if len(top) == 0 {
		return ""
	}
	lines := []string{cardTitleStyle.Render("Best fits")}
	for _, f := range top {
		row := stats.HistoryRow(f)
		lines = append(lines, fmt.Sprintf("  #%s  %s  R² %s", row[0], row[2], row[5]))
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderCurve(rec *model.FitRecord, grid stats.Grid, width int, errMsg string) string {
	if errMsg != "" {
		return fmt.Sprintf("Failed to load fit: %s", errMsg)
	}
	if rec == nil {
		return "No fit selected. Pick one in the Fits tab and press enter."
	}
	var buf bytes.Buffer
	if err := stats.RenderRecord(&buf, *rec); err != nil {
		return fmt.Sprintf("Failed to render fit: %v", err)
	}
	series, err := stats.RecordSeries(*rec, grid)
	if err != nil {
		return strings.TrimRight(buf.String()+fmt.Sprintf("Failed to evaluate curve: %v", err), "\n")
	}
	title := fmt.Sprintf("Fit #%d", rec.ID)
	if err := stats.PlotLogLogWithColor(&buf, title, series, stats.LogLogWidthFor(width), plotHeight, true); err != nil {
		return strings.TrimRight(buf.String()+fmt.Sprintf("Failed to render curve: %v", err), "\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func fitColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Created", Width: 19},
		{Title: "Model", Width: 24},
		{Title: "Algorithm", Width: 11},
		{Title: "N", Width: 6},
		{Title: "R²", Width: 10},
		{Title: "Source", Width: 24},
	}
}

func fitRows(fits []model.FitSummary) []table.Row {
	rows := make([]table.Row, 0, len(fits))
	// Newest first.
	for i := len(fits) - 1; i >= 0; i-- {
		rows = append(rows, table.Row(stats.HistoryRow(fits[i])))
	}
	return rows
}

func buildFitTable(fits []model.FitSummary, width, height int) table.Model {
	t := table.New(
		table.WithColumns(fitColumns()),
		table.WithRows(fitRows(fits)),
		table.WithHeight(max(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(fitTableStyles())
	return t
}

func (m *Model) applyFitTable(width, height int) {
	rows := fitRows(m.history.Fits)
	m.fitTable.SetRows(rows)
	if m.fitTable.Cursor() >= len(rows) {
		m.fitTable.SetCursor(max(0, len(rows)-1))
	}
	m.layout.rowCount = len(rows)
	m.layout.width = 0
	m.setFitTableSize(width, height)
}

func (m *Model) setFitTableSize(width, height int) {
	viewportHeight := max(1, height-1)
	if m.layout.width == width && m.layout.height == viewportHeight {
		return
	}
	m.layout.width = width
	m.layout.height = viewportHeight
	m.fitTable.SetWidth(width)
	m.fitTable.SetHeight(viewportHeight)
}

func fitTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		cfg, err := m.parseFilter()
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.cfg = cfg
		m.filterMode = false
		m.filterError = ""
		m.refreshHistory()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) parseFilter() (model.HistoryConfig, error) {
	kind := strings.TrimSpace(m.filterInputs[0].Value())
	if kind != "" {
		k, err := model.ParseKind(kind)
		if err != nil {
			return model.HistoryConfig{}, err
		}
		kind = k.String()
	}

	var since *time.Time
	if raw := strings.TrimSpace(m.filterInputs[1].Value()); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return model.HistoryConfig{}, fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	last := 0
	if raw := strings.TrimSpace(m.filterInputs[2].Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return model.HistoryConfig{}, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}
	return model.HistoryConfig{Kind: kind, Since: since, Last: last}, nil
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
