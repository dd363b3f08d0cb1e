// Package tui provides an interactive BubbleTea browser over scout's
// retrieval engine.
//
// Layout:
//
//	┌─────────────────────────────────────┐
//	│  scout  semantic media search        │  ← header
//	│  ❯ <query input>                    │  ← search bar
//	│  ─────────────────────────────────  │  ← divider
//	│  0.94  image  beach/sunset.jpg       │  ← results
//	│  0.91  video @ 4.2s  clips/trip.mp4  │
//	│  ...                                │
//	│  ─────────────────────────────────  │  ← divider
//	│  3 result(s)  ↑↓ nav  enter open  esc clear  ^q quit │  ← status bar
//	└─────────────────────────────────────┘
package tui

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Hyphonical/Scout/internal/media"
	"github.com/Hyphonical/Scout/internal/retrieval"
)

// ── Palette ──────────────────────────────────────────────────────────────────

var (
	colorAccent  = lipgloss.Color("#7C6AF7")
	colorDim     = lipgloss.Color("#555555")
	colorMuted   = lipgloss.Color("#888888")
	colorText    = lipgloss.Color("#DDDDDD")
	colorSubdued = lipgloss.Color("#444444")
	colorScore   = lipgloss.Color("#5ECEF5")
	colorErr     = lipgloss.Color("#FF6B6B")
	colorStale   = lipgloss.Color("#D6A74A")

	sTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sAccent = lipgloss.NewStyle().Foreground(colorAccent)
	sDim    = lipgloss.NewStyle().Foreground(colorDim)
	sMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	sScore  = lipgloss.NewStyle().Foreground(colorScore).Bold(true)
	sPath   = lipgloss.NewStyle().Foreground(colorText)
	sDir    = lipgloss.NewStyle().Foreground(colorMuted)
	sKind   = lipgloss.NewStyle().Foreground(colorMuted)
	sStale  = lipgloss.NewStyle().Foreground(colorStale)
	sErr    = lipgloss.NewStyle().Foreground(colorErr)
	sSel    = lipgloss.NewStyle().
		Background(lipgloss.Color("#1E1A3A")).
		Foreground(colorText)
	sHint = lipgloss.NewStyle().
		Foreground(colorDim).
		Background(lipgloss.Color("#111111"))
	sDivider = lipgloss.NewStyle().Foreground(colorSubdued)
)

// ── Spinner frames ────────────────────────────────────────────────────────────

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type spinTickMsg struct{}

func spinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return spinTickMsg{} })
}

// ── Messages ─────────────────────────────────────────────────────────────────

type (
	searchResultMsg []retrieval.Result
	errMsg          struct{ err error }
	debounceMsg     struct {
		query string
		id    int
	}
)

// ── Model ─────────────────────────────────────────────────────────────────────

// Model is the BubbleTea application model browsing one directory's search
// results.
type Model struct {
	engine *retrieval.Engine
	dir    string

	input      textinput.Model
	results    []retrieval.Result
	cursor     int
	err        error
	width      int
	height     int
	searching  bool
	spinFrame  int
	debounceID int
	lastQuery  string
}

// New creates a browser Model searching dir via engine.
func New(engine *retrieval.Engine, dir string) Model {
	ti := textinput.New()
	ti.Placeholder = "search your library…"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 60
	ti.PromptStyle = sAccent
	ti.Prompt = "❯ "
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	return Model{engine: engine, dir: dir, input: ti}
}

// Init is the BubbleTea init hook.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, spinTick())
}

// Update processes messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 8
		return m, nil

	case spinTickMsg:
		m.spinFrame = (m.spinFrame + 1) % len(spinnerFrames)
		return m, spinTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			return m, tea.Quit

		case "esc":
			m.err = nil
			return m, nil

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil

		case "enter":
			if len(m.results) > 0 {
				return m, openPath(m.results[m.cursor].Path)
			}
			return m, nil
		}

	case debounceMsg:
		if msg.id == m.debounceID && msg.query == m.input.Value() {
			if strings.TrimSpace(msg.query) == "" {
				m.searching = false
				m.results = nil
				return m, nil
			}
			m.searching = true
			m.lastQuery = msg.query
			return m, searchCmd(m.engine, m.dir, msg.query)
		}
		return m, nil

	case searchResultMsg:
		m.searching = false
		m.results = []retrieval.Result(msg)
		m.cursor = 0
		m.err = nil
		return m, nil

	case errMsg:
		m.searching = false
		m.err = msg.err
		return m, nil
	}

	prevVal := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prevVal {
		m.debounceID++
		id := m.debounceID
		q := m.input.Value()
		return m, tea.Batch(cmd, debounceCmd(q, id, 280*time.Millisecond))
	}
	return m, cmd
}

// ── Views ─────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	w := m.width
	divider := sDivider.Render(strings.Repeat("─", clamp(w-2, 10, 200)))

	var b strings.Builder
	left := "  " + sTitle.Render("scout") + "  " + sMuted.Render("semantic media search")
	right := sDim.Render(m.dir)
	fmt.Fprintln(&b, padBetween(left, right, w))

	fmt.Fprintln(&b, "  "+m.input.View())
	fmt.Fprintln(&b, "  "+divider)

	switch {
	case m.err != nil:
		fmt.Fprintln(&b, sErr.Render("  error: "+m.err.Error()))
	case m.searching:
		frame := spinnerFrames[m.spinFrame]
		fmt.Fprintln(&b, "  "+sAccent.Render(frame)+"  "+sMuted.Render("searching…"))
	case len(m.results) == 0 && m.input.Value() == "":
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  Start typing to search your collection semantically."))
		fmt.Fprintln(&b, sDim.Render("  Natural language works: ")+sMuted.Render("\"a dog on a beach\""))
	case len(m.results) == 0:
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  no results for ")+sAccent.Render("\""+m.lastQuery+"\""))
	default:
		bodyHeight := m.height - 7
		m.renderResults(&b, bodyHeight)
	}

	b.WriteString("\n  " + divider + "\n")
	m.renderStatusBar(&b)
	return b.String()
}

func (m *Model) renderResults(b *strings.Builder, maxRows int) {
	maxResults := maxRows
	if maxResults < 1 {
		maxResults = 1
	}

	for i, r := range m.results {
		if i >= maxResults {
			fmt.Fprintf(b, "  %s\n", sDim.Render(fmt.Sprintf("  … %d more results", len(m.results)-i)))
			break
		}

		dir := filepath.Dir(r.Path)
		base := filepath.Base(r.Path)
		score := fmt.Sprintf("%.2f", r.Score)
		kind := r.Kind.String()
		if r.Kind == media.Video {
			kind = fmt.Sprintf("video @ %.1fs", r.TimestampSeconds)
		}
		staleTag := ""
		if r.Stale {
			staleTag = sStale.Render(" (stale)")
		}

		line := fmt.Sprintf("  %s  %s  %s%s%s",
			sScore.Render(score), sKind.Render(kind), sDir.Render(dir+"/"), sPath.Render(base), staleTag)

		if i == m.cursor {
			raw := score + "  " + kind + "  " + dir + "/" + base
			pad := clamp(m.width-len(raw)-6, 0, m.width)
			line = sSel.Render(line + strings.Repeat(" ", pad))
		}
		fmt.Fprintln(b, line)
	}
}

func (m *Model) renderStatusBar(b *strings.Builder) {
	var left string
	switch {
	case len(m.results) > 0:
		left = sMuted.Render(fmt.Sprintf("  %d result(s)", len(m.results)))
	case m.err != nil:
		left = "  " + sErr.Render(m.err.Error())
	default:
		left = sDim.Render("  no results")
	}

	right := sHint.Render("  ↑↓ nav  enter open  esc clear  ^q quit  ")
	fmt.Fprint(b, padBetween(left, right, m.width))
}

// ── Commands ──────────────────────────────────────────────────────────────────

func debounceCmd(query string, id int, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return debounceMsg{query: query, id: id}
	}
}

func searchCmd(engine *retrieval.Engine, dir, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := engine.Search(retrieval.Query{
			Text:      query,
			Dir:       dir,
			Recursive: true,
			Limit:     20,
		})
		if err != nil {
			return errMsg{err}
		}
		return searchResultMsg(results)
	}
}

// openPath opens path with the platform's default file opener.
func openPath(path string) tea.Cmd {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", path)
	case "windows":
		c = exec.Command("cmd", "/c", "start", "", path)
	default:
		c = exec.Command("xdg-open", path)
	}
	return tea.ExecProcess(c, func(err error) tea.Msg {
		if err != nil {
			return errMsg{err}
		}
		return nil
	})
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func padBetween(left, right string, width int) string {
	lv := visibleLen(left)
	rv := visibleLen(right)
	gap := width - lv - rv - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, c := range s {
		if c == '\x1b' {
			inEsc = true
		}
		if inEsc {
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
