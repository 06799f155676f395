// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"spectral/internal/audio"
	"spectral/internal/config"
)

func testDevices() []audio.Device {
	return []audio.Device{
		{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000, IsDefaultOutput: true},
		{ID: 1, Name: "Mic", MaxInputChannels: 1, DefaultSampleRate: 44100},
		{ID: 2, Name: "Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 96000, IsDefaultInput: true},
	}
}

// send feeds msgs through Update in order.
func send(m DeviceListModel, msgs ...tea.Msg) DeviceListModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(DeviceListModel)
	}
	return m
}

func loadedModel(t *testing.T) DeviceListModel {
	t.Helper()
	m := NewDeviceListModel(func() ([]audio.Device, error) { return testDevices(), nil })
	return send(m, tea.WindowSizeMsg{Width: 80, Height: 40}, m.Init()())
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

func TestDeviceListStartsOnDefaultInput(t *testing.T) {
	m := loadedModel(t)
	if m.selectedIndex != 2 {
		t.Errorf("selected %d, want the default input 2", m.selectedIndex)
	}

	view := m.View()
	for _, want := range []string{"Audio Device List", "[1] Mic (Input)", "[2] Interface (Input/Output) [default input]"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDeviceListNavigation(t *testing.T) {
	m := send(loadedModel(t), keyDown, keyUp)
	if m.selectedIndex != 1 {
		t.Errorf("selected %d, want 1", m.selectedIndex)
	}
	m = send(m, keyUp, keyUp)
	if m.selectedIndex != 0 {
		t.Errorf("selected %d, want 0", m.selectedIndex)
	}

	// Output-only devices cannot be configured.
	m = send(m, keyEnter)
	if m.activeScreen != ListScreen {
		t.Error("output-only device opened the configuration screen")
	}
}

func TestDeviceConfigSelection(t *testing.T) {
	m := send(loadedModel(t), keyUp, keyEnter)
	if m.activeScreen != ConfigScreen {
		t.Fatal("Enter did not open the configuration screen")
	}
	if got := SampleRates[m.sampleRateIndex]; got != 44100 {
		t.Errorf("initial sample rate %v, want the device default 44100", got)
	}
	if !strings.Contains(m.View(), "Mono input") {
		t.Error("mono device not flagged")
	}

	m = send(m, keyDown, keyTab, keyDown)
	next, cmd := m.Update(keyEnter)
	m = next.(DeviceListModel)

	if cmd == nil {
		t.Error("confirming did not quit")
	}
	sel := m.Selection()
	if sel == nil {
		t.Fatal("no selection after Enter")
	}
	want := Selection{InputDevice: 1, SampleRate: 48000, FramesPerBuffer: 256}
	if *sel != want {
		t.Errorf("selection = %+v, want %+v", *sel, want)
	}

	cfg := config.Default().Audio
	sel.Apply(&cfg)
	if cfg.InputDevice != 1 || cfg.SampleRate != 48000 || cfg.FramesPerBuffer != 256 {
		t.Errorf("Apply produced %+v", cfg)
	}
}

func TestDeviceConfigBack(t *testing.T) {
	m := send(loadedModel(t), keyEnter, keyEsc)
	if m.activeScreen != ListScreen {
		t.Error("Esc did not return to the list")
	}
	if m.Selection() != nil {
		t.Error("selection made without confirming")
	}
}

func TestDeviceListQuit(t *testing.T) {
	_, cmd := loadedModel(t).Update(keyQuit)
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestDeviceListFetchError(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, errors.New("no host API") })
	m = send(m, m.Init()())
	if !strings.Contains(m.View(), "Error: no host API") {
		t.Errorf("view = %q", m.View())
	}
}

func TestDeviceListEmpty(t *testing.T) {
	m := NewDeviceListModel(func() ([]audio.Device, error) { return nil, nil })
	m = send(m, tea.WindowSizeMsg{Width: 80, Height: 20}, m.Init()(), keyEnter)
	if !strings.Contains(m.View(), "No audio devices found.") {
		t.Errorf("view = %q", m.View())
	}
	if m.activeScreen != ListScreen {
		t.Error("Enter with no devices left the list")
	}
}
