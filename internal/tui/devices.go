// SPDX-License-Identifier: MIT

// Package tui implements the interactive device browser.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spectral/internal/audio"
	"spectral/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))
)

var (
	quitKey   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKey     = key.NewBinding(key.WithKeys("up", "k"))
	downKey   = key.NewBinding(key.WithKeys("down", "j"))
	enterKey  = key.NewBinding(key.WithKeys("enter"))
	backKey   = key.NewBinding(key.WithKeys("esc"))
	switchKey = key.NewBinding(key.WithKeys("tab"))
)

// Offered values on the configuration screen.
var (
	SampleRates     = []float64{44100, 48000, 88200, 96000}
	FramesPerBuffer = []int{64, 128, 256, 512, 1024}
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// configField is the option being edited on the configuration screen.
type configField int

const (
	sampleRateField configField = iota
	framesField
)

// Selection is the device and stream settings chosen in the browser.
type Selection struct {
	InputDevice     int
	SampleRate      float64
	FramesPerBuffer int
}

// Apply copies the selection into cfg.
func (s Selection) Apply(cfg *config.AudioConfig) {
	cfg.InputDevice = s.InputDevice
	cfg.SampleRate = s.SampleRate
	cfg.FramesPerBuffer = s.FramesPerBuffer
}

// DeviceListModel represents the Bubble Tea model for listing audio devices
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	field           configField
	sampleRateIndex int
	framesIndex     int
	selection       *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a model that loads devices with fetch.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
		framesIndex:  indexOf(FramesPerBuffer, config.DefaultFramesPerBuffer),
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

// Selection returns the confirmed selection, or nil if the user quit.
func (m DeviceListModel) Selection() *Selection { return m.selection }

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.selectedIndex = 0
		for i, d := range m.devices {
			if d.IsDefaultInput {
				m.selectedIndex = i
				break
			}
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m, tea.Quit
		}

		if m.activeScreen == ListScreen {
			return m.updateList(msg)
		}
		return m.updateConfig(msg)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m DeviceListModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, upKey):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}

	case key.Matches(msg, downKey):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
		}

	case key.Matches(msg, enterKey):
		if len(m.devices) == 0 || m.devices[m.selectedIndex].MaxInputChannels == 0 {
			break
		}
		m.activeScreen = ConfigScreen
		m.field = sampleRateField
		m.sampleRateIndex = nearest(SampleRates, m.devices[m.selectedIndex].DefaultSampleRate)
	}
	m.refresh()
	return m, nil
}

func (m DeviceListModel) updateConfig(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, backKey):
		m.activeScreen = ListScreen

	case key.Matches(msg, switchKey):
		m.field = (m.field + 1) % 2

	case key.Matches(msg, upKey):
		if m.field == sampleRateField && m.sampleRateIndex > 0 {
			m.sampleRateIndex--
		}
		if m.field == framesField && m.framesIndex > 0 {
			m.framesIndex--
		}

	case key.Matches(msg, downKey):
		if m.field == sampleRateField && m.sampleRateIndex < len(SampleRates)-1 {
			m.sampleRateIndex++
		}
		if m.field == framesField && m.framesIndex < len(FramesPerBuffer)-1 {
			m.framesIndex++
		}

	case key.Matches(msg, enterKey):
		m.selection = &Selection{
			InputDevice:     m.devices[m.selectedIndex].ID,
			SampleRate:      SampleRates[m.sampleRateIndex],
			FramesPerBuffer: FramesPerBuffer[m.framesIndex],
		}
		return m, tea.Quit
	}
	m.refresh()
	return m, nil
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ListScreen {
		m.viewport.SetContent(m.renderDevices())
	} else {
		m.viewport.SetContent(m.renderDeviceConfig())
	}
}

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Tab: Next Option • Enter: Use • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultInput {
			marker = " [default input]"
		}
		if device.IsDefaultOutput {
			marker += " [default output]"
		}

		deviceInfo := fmt.Sprintf("[%d] %s (%s)%s\n", device.ID, device.Name, device.Type(), marker)
		deviceInfo += fmt.Sprintf("    %s, input channels: %d, output channels: %d\n",
			device.HostAPI, device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		switch {
		case i == m.selectedIndex:
			deviceInfo = highlightStyle.Render(deviceInfo)
		case device.MaxInputChannels == 0:
			deviceInfo = dimStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n", device.Name)
	if !device.Stereo() {
		sb.WriteString("Mono input: both channels will be analysed from the same signal.\n")
	}
	sb.WriteString("\n")

	sb.WriteString(m.fieldTitle("Sample Rate:", sampleRateField))
	for i, rate := range SampleRates {
		sb.WriteString(option(fmt.Sprintf("%.0f Hz", rate), i == m.sampleRateIndex))
	}

	sb.WriteString("\n")
	sb.WriteString(m.fieldTitle("Frames Per Buffer:", framesField))
	for i, frames := range FramesPerBuffer {
		ms := float64(frames) / SampleRates[m.sampleRateIndex] * 1000
		sb.WriteString(option(fmt.Sprintf("%d (%.1f ms)", frames, ms), i == m.framesIndex))
	}

	return sb.String()
}

func (m DeviceListModel) fieldTitle(title string, f configField) string {
	if m.field == f {
		return highlightStyle.Render(title) + "\n"
	}
	return title + "\n"
}

func option(label string, selected bool) string {
	if selected {
		return highlightStyle.Render("  ▶ "+label) + "\n"
	}
	return "    " + label + "\n"
}

func indexOf(values []int, v int) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return 0
}

func nearest(values []float64, v float64) int {
	best := 0
	for i, x := range values {
		if abs(x-v) < abs(values[best]-v) {
			best = i
		}
	}
	return best
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// StartDeviceListUI runs the browser over the host's devices and returns
// the confirmed selection, or nil if the user quit.
func StartDeviceListUI() (*Selection, error) {
	p := tea.NewProgram(
		NewDeviceListModel(audio.HostDevices),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selection(), nil
}
