package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/commongraph/graphview/pkg/client"
	"github.com/commongraph/graphview/pkg/graph"
	"github.com/commongraph/graphview/pkg/layout"
	"github.com/commongraph/graphview/pkg/prefs"
	"github.com/commongraph/graphview/pkg/render"
	"github.com/commongraph/graphview/pkg/style"
)

const (
	defaultBackendURL = "http://127.0.0.1:8000"
	fetchTimeout      = 10 * time.Second
	viewportHeight    = 20
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Width(40)
	typeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(16)
	coordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(18)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)
)

type graphMsg struct {
	export *graph.Export
	err    error
}

type model struct {
	ctx     context.Context
	session *render.Session
	backend *client.Client

	spinner  spinner.Model
	viewport viewport.Model

	export    *graph.Export
	result    render.Result
	direction layout.Direction
	colorBy   style.ColorBy
	loading   bool
	err       error
	ready     bool
}

func newModel(ctx context.Context, session *render.Session, backend *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		ctx:       ctx,
		session:   session,
		backend:   backend,
		spinner:   s,
		viewport:  newViewport(100),
		direction: session.PreviousDirection(ctx),
		colorBy:   style.ColorByType,
		loading:   true,
	}
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchGraph(m.ctx, m.session, m.backend, false),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "d":
			m.direction = m.direction.Next()
			m.rerender()
			return m, nil
		case "c":
			m.colorBy = nextColorMode(m.colorBy)
			m.rerender()
			return m, nil
		case "r":
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, fetchGraph(m.ctx, m.session, m.backend, true))
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case graphMsg:
		m.loading = false
		m.ready = true
		if msg.err != nil {
			m.err = msg.err
			break
		}
		m.err = nil
		m.export = msg.export
		m.rerender()

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}

	return m, tea.Batch(cmds...)
}

// rerender runs the current export through the session with the current
// direction and color mode.
func (m *model) rerender() {
	if m.export == nil {
		return
	}
	m.result = m.session.Render(m.ctx, render.Request{
		Nodes:     m.export.Nodes,
		Edges:     m.export.Edges,
		ColorBy:   m.colorBy,
		Direction: m.direction,
	})
	m.direction = m.result.Direction
	m.viewport.SetContent(nodeList(m.result.Nodes, m.direction))
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Loading graph...", m.spinner.View())
	}

	var info strings.Builder
	info.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render(m.session.Config.Metadata().Name) + "\n\n")
	colorMode := string(m.colorBy)
	if colorMode == "" {
		colorMode = "none"
	}
	info.WriteString(fmt.Sprintf("Direction: %s   Color: %s\n", m.direction, colorMode))
	info.WriteString(fmt.Sprintf("Nodes: %d   Edges: %d", len(m.result.Nodes), len(m.result.Edges)))
	topPane := paneStyle.Render(info.String())

	spin := ""
	if m.loading {
		spin = m.spinner.View() + " "
	}
	header := headerStyle.Render(spin + "Nodes in layout order")

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %s", m.backend.Endpoint()))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nd direction • c color • r reload • q quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, m.viewport.View(), footer)
}

// nodeList renders one line per node, ordered along the flow direction.
func nodeList(nodes []graph.RenderableNode, dir layout.Direction) string {
	sorted := append([]graph.RenderableNode(nil), nodes...)
	sortByFlow(sorted, dir)

	var sb strings.Builder
	for _, n := range sorted {
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(n.Style.Background)).Render("  ")
		sb.WriteString(fmt.Sprintf("%s %s %s %s\n",
			swatch,
			labelStyle.Render(n.Label),
			typeStyle.Render(n.Type),
			coordStyle.Render(fmt.Sprintf("(%.0f, %.0f)", n.Position.X, n.Position.Y)),
		))
	}
	return sb.String()
}

// sortByFlow orders nodes from the first rank to the last, then across.
func sortByFlow(nodes []graph.RenderableNode, dir layout.Direction) {
	key := func(n graph.RenderableNode) (float64, float64) {
		switch dir {
		case layout.BottomTop:
			return -n.Position.Y, n.Position.X
		case layout.LeftRight:
			return n.Position.X, n.Position.Y
		case layout.RightLeft:
			return -n.Position.X, n.Position.Y
		default:
			return n.Position.Y, n.Position.X
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		ai, bi := key(nodes[i])
		aj, bj := key(nodes[j])
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})
}

func nextColorMode(c style.ColorBy) style.ColorBy {
	switch c {
	case style.ColorByType:
		return style.ColorByRating
	case style.ColorByRating:
		return style.ColorByNone
	default:
		return style.ColorByType
	}
}

// Commands

func fetchGraph(ctx context.Context, session *render.Session, backend *client.Client, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		// A config or schema failure still leaves the graph drawable.
		_ = session.Load(ctx, force)

		export, err := backend.GetGraph(ctx)
		return graphMsg{export: export, err: err}
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "memory"
	}
	return "file:" + filepath.Join(dir, "graphview")
}

func main() {
	backendURL := flag.String("backend", envOrDefault("GRAPHVIEW_BACKEND_URL", defaultBackendURL), "graph platform base URL")
	state := flag.String("state", envOrDefault("GRAPHVIEW_STATE", defaultStatePath()), "state store DSN")
	theme := flag.String("theme", envOrDefault("GRAPHVIEW_THEME", "system"), "color theme: light|dark|system")
	flag.Parse()

	// The alt screen owns the terminal; logs would corrupt it.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	store, err := prefs.Open(ctx, *state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "state store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	backend := client.NewClient(*backendURL)
	session := render.NewSession(backend, render.Options{
		Theme:  style.ParseTheme(*theme),
		State:  store,
		Logger: logger,
	})

	p := tea.NewProgram(newModel(ctx, session, backend), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
