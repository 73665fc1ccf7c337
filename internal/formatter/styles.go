package formatter

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles is the default palette.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a small stylesheet built from named [lipgloss.Style] fields
type Palette struct {
	Title  lipgloss.Style
	OK     lipgloss.Style
	Err    lipgloss.Style
	Warn   lipgloss.Style
	Help   lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		Title:  NewBold(t).MarginBottom(1),
		OK:     NewBold(s),
		Err:    NewBold(e),
		Warn:   NewStyle(w),
		Help:   NewEm(h),
		Header: NewBold(t).Padding(0, 1),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: NewStyle(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
