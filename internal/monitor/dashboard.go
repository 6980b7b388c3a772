// Package monitor renders a live terminal dashboard of batch lifecycle events.
package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/events"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	recentSize      = 8
	maxBatches      = 6
)

// Model represents the BubbleTea dashboard model
type Model struct {
	source   <-chan events.Event
	interval time.Duration
	started  time.Time
	now      func() time.Time
	closed   bool
	quitting bool

	batches map[string]*batchView
	order   []string
	recent  []string
	totals  Totals

	opsThisTick int
	opsHistory  []float64

	progress progress.Model
}

// Totals counts finished batches and operations since the dashboard started.
type Totals struct {
	Success    int
	Partial    int
	Failed     int
	Rejected   int
	Operations int
}

// batchView tracks one batch from started to completed.
type batchView struct {
	id       string
	total    int
	done     int
	failed   int
	skipped  int
	begun    time.Time
	ended    time.Time
	status   batch.Status
	finished bool
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	// Header style - bright cyan background, bold black text
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	// Section title style - bold bright cyan
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	// Label style - dim cyan
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	// Value style - bright white
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	// Dim style - for units and secondary info
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// Container style - rounded border with dim gray
	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard reading events from source and sampling
// throughput every interval.
func NewModel(source <-chan events.Event, interval time.Duration) Model {
	return Model{
		source:     source,
		interval:   interval,
		started:    time.Now(),
		now:        time.Now,
		batches:    make(map[string]*batchView),
		opsHistory: make([]float64, 0, historySize),
		progress: progress.New(
			progress.WithGradient("#00ffff", "#00ff00"),
			progress.WithWidth(30),
		),
	}
}

// Totals returns the finished-batch counters.
func (m Model) Totals() Totals {
	return m.totals
}

// getStatusBadge returns a colored badge for a batch status
func getStatusBadge(s batch.Status) string {
	switch s {
	case batch.StatusSuccess:
		return healthyStyle.Render("[✓]")
	case batch.StatusPartial:
		return warningStyle.Render("[⚠]")
	case "":
		return dimStyle.Render("[…]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type eventMsg events.Event
type closedMsg struct{}

// Init starts the throughput ticker and the event reader.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		waitForEvent(m.source),
	)
}

// tick creates a tick command for throughput sampling
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks for the next event.
func waitForEvent(source <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-source
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.clearFinished()
			return m, nil
		}

	case tickMsg:
		m.opsHistory = appendToHistory(m.opsHistory, float64(m.opsThisTick))
		m.opsThisTick = 0
		return m, tick(m.interval)

	case eventMsg:
		m.apply(events.Event(msg))
		return m, waitForEvent(m.source)

	case closedMsg:
		m.closed = true
		return m, nil
	}

	return m, nil
}

// apply folds one event into the model. Maps are shared between copies of
// the model, which is safe because bubbletea runs Update on one goroutine.
func (m *Model) apply(ev events.Event) {
	switch ev.Type {
	case events.TypeStarted:
		bv := m.track(ev.BatchID)
		bv.total = ev.Operations
		bv.begun = ev.Time
		m.note(ev, fmt.Sprintf("started with %d operations", ev.Operations))

	case events.TypeOperation:
		bv := m.track(ev.BatchID)
		bv.done++
		m.opsThisTick++
		m.totals.Operations++
		if ev.Outcome == nil {
			return
		}
		switch ev.Outcome.Status {
		case batch.OutcomeFailed:
			bv.failed++
			code := ""
			if ev.Outcome.Error != nil {
				code = ev.Outcome.Error.Code
			}
			m.note(ev, fmt.Sprintf("#%d %s %s failed %s", ev.Outcome.Index, ev.Outcome.Kind, ev.Outcome.TargetType, code))
		case batch.OutcomeSkipped:
			bv.skipped++
		}

	case events.TypeCompleted:
		bv := m.track(ev.BatchID)
		bv.finished = true
		bv.ended = ev.Time
		bv.status = ev.Status
		switch ev.Status {
		case batch.StatusSuccess:
			m.totals.Success++
		case batch.StatusPartial:
			m.totals.Partial++
		default:
			m.totals.Failed++
		}
		m.note(ev, "completed "+string(ev.Status))

	case events.TypeRejected:
		bv := m.track(ev.BatchID)
		bv.finished = true
		bv.ended = ev.Time
		bv.status = batch.StatusFailed
		m.totals.Rejected++
		code := ""
		if ev.Error != nil {
			code = string(ev.Error.Code)
		}
		m.note(ev, "rejected "+code)
	}
}

func (m *Model) track(id string) *batchView {
	if bv, ok := m.batches[id]; ok {
		return bv
	}
	bv := &batchView{id: id}
	m.batches[id] = bv
	m.order = append(m.order, id)
	if len(m.order) > maxBatches {
		m.evict()
	}
	return bv
}

// evict drops the oldest finished batch, or the oldest batch when none
// has finished.
func (m *Model) evict() {
	victim := 0
	for i, id := range m.order {
		if m.batches[id].finished {
			victim = i
			break
		}
	}
	delete(m.batches, m.order[victim])
	m.order = append(m.order[:victim], m.order[victim+1:]...)
}

func (m *Model) clearFinished() {
	kept := m.order[:0]
	for _, id := range m.order {
		if m.batches[id].finished {
			delete(m.batches, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

func (m *Model) note(ev events.Event, text string) {
	line := fmt.Sprintf("%s %s %s", ev.Time.Format("15:04:05"), shortID(ev.BatchID), text)
	m.recent = append(m.recent, line)
	if len(m.recent) > recentSize {
		m.recent = m.recent[1:]
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := headerStyle.Render(" focusd batches ")
	uptime := FormatDuration(m.now().Sub(m.started))
	state := healthyStyle.Render("● live")
	if m.closed {
		state = errorStyle.Render("● disconnected")
	}
	fmt.Fprintf(&b, "%s   %s   %s %s\n", header, state, dimStyle.Render("watching"), valueStyle.Render(uptime))

	// Throughput
	b.WriteString("\n" + sectionStyle.Render("┃ Throughput") + "\n")
	last := 0.0
	if n := len(m.opsHistory); n > 0 {
		last = m.opsHistory[n-1]
	}
	b.WriteString(labelStyle.Render("  Ops: ") +
		valueStyle.Render(FormatRate(last, m.interval)) +
		"   " + createSparkline(m.opsHistory) + "\n")
	fmt.Fprintf(&b, "%s%s  %s  %s  %s  %s%s\n",
		labelStyle.Render("  Batches: "),
		healthyStyle.Render(fmt.Sprintf("%d ok", m.totals.Success)),
		warningStyle.Render(fmt.Sprintf("%d partial", m.totals.Partial)),
		errorStyle.Render(fmt.Sprintf("%d failed", m.totals.Failed)),
		errorStyle.Render(fmt.Sprintf("%d rejected", m.totals.Rejected)),
		dimStyle.Render("ops "), valueStyle.Render(fmt.Sprintf("%d", m.totals.Operations)))

	// Batches, newest first
	b.WriteString("\n" + sectionStyle.Render("┃ Batches") + "\n")
	if len(m.order) == 0 {
		b.WriteString(dimStyle.Render("  waiting for batches") + "\n")
	}
	views := make([]*batchView, 0, len(m.order))
	for _, id := range m.order {
		views = append(views, m.batches[id])
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].begun.After(views[j].begun) })
	for _, bv := range views {
		ratio := 0.0
		if bv.total > 0 {
			ratio = float64(bv.done) / float64(bv.total)
		}
		if bv.finished {
			ratio = 1
		}
		elapsed := ""
		if !bv.begun.IsZero() {
			end := bv.ended
			if end.IsZero() {
				end = m.now()
			}
			elapsed = FormatDuration(end.Sub(bv.begun))
		}
		fmt.Fprintf(&b, "  %s %s %s %s %s\n",
			getStatusBadge(bv.status),
			valueStyle.Render(shortID(bv.id)),
			m.progress.ViewAs(ratio),
			dimStyle.Render(fmt.Sprintf("%d/%d", bv.done, bv.total)),
			dimStyle.Render(elapsed))
		if bv.failed > 0 || bv.skipped > 0 {
			fmt.Fprintf(&b, "      %s\n", dimStyle.Render(fmt.Sprintf("%d failed, %d skipped", bv.failed, bv.skipped)))
		}
	}

	// Recent
	b.WriteString("\n" + sectionStyle.Render("┃ Recent") + "\n")
	for _, line := range m.recent {
		b.WriteString("  " + dimStyle.Render(line) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[c]") + footerStyle.Render(" clear finished  ") +
		footerStyle.Render(fmt.Sprintf("Sample: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
