// ABOUTME: Key bindings for the player TUI
// ABOUTME: Groups playback, speed, pitch and volume controls for help display
package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the player
type KeyMap struct {
	PlayPause    key.Binding
	SeekForward  key.Binding
	SeekBackward key.Binding

	SpeedUp   key.Binding
	SpeedDown key.Binding
	Preset    key.Binding
	PitchUp   key.Binding
	PitchDown key.Binding
	RateUp    key.Binding
	RateDown  key.Binding
	Reset     key.Binding

	VolumeUp   key.Binding
	VolumeDown key.Binding
	Mute       key.Binding

	Debug key.Binding
	Help  key.Binding
	Quit  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PlayPause: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space", "play/pause"),
		),
		SeekForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "+5s"),
		),
		SeekBackward: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "-5s"),
		),
		SpeedUp: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "faster"),
		),
		SpeedDown: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "slower"),
		),
		Preset: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "speed preset"),
		),
		PitchUp: key.NewBinding(
			key.WithKeys("}"),
			key.WithHelp("}", "pitch +1"),
		),
		PitchDown: key.NewBinding(
			key.WithKeys("{"),
			key.WithHelp("{", "pitch -1"),
		),
		RateUp: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(".", "rate+"),
		),
		RateDown: key.NewBinding(
			key.WithKeys(","),
			key.WithHelp(",", "rate-"),
		),
		Reset: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "reset"),
		),
		VolumeUp: key.NewBinding(
			key.WithKeys("up", "+", "="),
			key.WithHelp("↑", "vol+"),
		),
		VolumeDown: key.NewBinding(
			key.WithKeys("down", "-"),
			key.WithHelp("↓", "vol-"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.SpeedDown, k.SpeedUp, k.PitchDown, k.PitchUp, k.Reset, k.Help, k.Quit}
}

// FullHelp returns every binding grouped by column
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.SeekForward, k.SeekBackward},
		{k.SpeedUp, k.SpeedDown, k.Preset, k.Reset},
		{k.PitchUp, k.PitchDown, k.RateUp, k.RateDown},
		{k.VolumeUp, k.VolumeDown, k.Mute},
		{k.Debug, k.Help, k.Quit},
	}
}
