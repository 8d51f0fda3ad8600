package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Send      key.Binding
	NewChat   key.Binding
	CycleMode key.Binding
	Rename    key.Binding
	Delete    key.Binding
	Theme     key.Binding
	Focus     key.Binding
	Up        key.Binding
	Down      key.Binding
	Zoom      key.Binding
	Save      key.Binding
	Escape    key.Binding
	Quit      key.Binding
}

type helpModel struct {
	keys  keyMap
	width int
}

func newHelpModel() helpModel {
	return helpModel{
		keys: keyMap{
			Send:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			NewChat:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
			CycleMode: key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "mode")),
			Rename:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "rename")),
			Delete:    key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "delete")),
			Theme:     key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "theme")),
			Focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
			Up:        key.NewBinding(key.WithKeys("up", "k")),
			Down:      key.NewBinding(key.WithKeys("down", "j")),
			Zoom:      key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("ctrl+z", "zoom image")),
			Save:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save image")),
			Escape:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
			Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		},
	}
}

func (h *helpModel) SetWidth(w int) { h.width = w }

func (h helpModel) View() string {
	parts := []string{
		h.keys.Send.Help().Key + " " + h.keys.Send.Help().Desc,
		h.keys.NewChat.Help().Key + " " + h.keys.NewChat.Help().Desc,
		h.keys.CycleMode.Help().Key + " " + h.keys.CycleMode.Help().Desc,
		h.keys.Rename.Help().Key + " " + h.keys.Rename.Help().Desc,
		h.keys.Delete.Help().Key + " " + h.keys.Delete.Help().Desc,
		h.keys.Theme.Help().Key + " " + h.keys.Theme.Help().Desc,
		h.keys.Focus.Help().Key + " " + h.keys.Focus.Help().Desc,
		h.keys.Quit.Help().Key + " " + h.keys.Quit.Help().Desc,
	}
	return strings.Join(parts, "  ·  ")
}
