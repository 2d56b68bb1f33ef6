// Command streamduck is a terminal companion for the daemon: a live device
// table with brightness control and a trailing event log, driven over the
// client socket.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/streamduck-org/streamduck/pkg/client"
	"github.com/streamduck-org/streamduck/pkg/core"
	"github.com/streamduck-org/streamduck/pkg/socket"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	borderStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

const maxEventLines = 8

type refreshMsg struct {
	devices []socket.DeviceEntry
	events  []core.SDGlobalEvent
	err     error
}

type model struct {
	client  *client.Client
	table   table.Model
	devices []socket.DeviceEntry
	events  []string
	status  string
}

func newModel(c *client.Client) model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Serial", Width: 20},
			{Title: "Online", Width: 8},
			{Title: "Grid", Width: 8},
			{Title: "Key px", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Bold(true).Foreground(lipgloss.Color("13"))
	t.SetStyles(styles)
	return model{client: c, table: t, status: "connected"}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

// refresh fetches the device list; the round-trip also drains any event
// frames into the client buffer, which we pop afterwards.
func (m model) refresh() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		devices, err := c.ListDevices()
		msg := refreshMsg{devices: devices, err: err}
		for {
			ev, ok := c.PollEvent()
			if !ok {
				break
			}
			msg.events = append(msg.events, ev)
		}
		return msg
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		case "+", "=":
			return m, m.adjustBrightness(10)
		case "-":
			return m, m.adjustBrightness(-10)
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())
	case refreshMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
		} else {
			m.devices = msg.devices
			m.status = fmt.Sprintf("%d device(s)", len(msg.devices))
			rows := make([]table.Row, 0, len(msg.devices))
			for _, d := range msg.devices {
				online := "no"
				if d.Online {
					online = "yes"
				}
				rows = append(rows, table.Row{
					d.SerialNumber,
					online,
					fmt.Sprintf("%dx%d", d.Kind.Cols, d.Kind.Rows),
					fmt.Sprintf("%dpx", d.Kind.ImageSize.X),
				})
			}
			m.table.SetRows(rows)
		}
		for _, ev := range msg.events {
			line := ev.Type
			if ev.SerialNumber != "" {
				line += " " + ev.SerialNumber
			}
			if ev.Key != nil {
				line += fmt.Sprintf(" key=%d", *ev.Key)
			}
			m.events = append(m.events, line)
		}
		if len(m.events) > maxEventLines {
			m.events = m.events[len(m.events)-maxEventLines:]
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) adjustBrightness(delta int) tea.Cmd {
	row := m.table.SelectedRow()
	if row == nil {
		return nil
	}
	serial := row[0]
	c := m.client
	return func() tea.Msg {
		// Brightness is stored per device; read it back through the config.
		cfg, err := c.GetDeviceConfig(serial)
		if err != nil {
			return refreshMsg{err: err}
		}
		next := int(cfg.Brightness) + delta
		if next < 0 {
			next = 0
		}
		if next > 100 {
			next = 100
		}
		if err := c.SetBrightness(serial, uint8(next)); err != nil {
			return refreshMsg{err: err}
		}
		devices, err := c.ListDevices()
		return refreshMsg{devices: devices, err: err}
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("streamduck"))
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n\n")
	b.WriteString(borderStyle.Render(m.table.View()))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("events"))
	b.WriteString("\n")
	if len(m.events) == 0 {
		b.WriteString(statusStyle.Render("  (none yet)"))
		b.WriteString("\n")
	}
	for _, line := range m.events {
		b.WriteString(eventStyle.Render("  " + line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(statusStyle.Render("r refresh · +/- brightness · q quit"))
	return b.String()
}

func main() {
	socketPath := flag.String("socket", defaultSocketPath(), "daemon socket path")
	flag.Parse()

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach daemon at %s: %v\n", *socketPath, err)
		os.Exit(1)
	}
	c, err := client.Connect(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	p := tea.NewProgram(newModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ui error: %v\n", err)
		os.Exit(1)
	}
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/streamduck.sock"
	}
	return "/tmp/streamduck.sock"
}
