package tui

import (
	"fmt"

	"github.com/Veraticus/photo-sorter/internal/cli"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{m.renderHeader()}

	switch {
	case !m.loaded:
		sections = append(sections, m.spinner.View()+" Loading library...")
	case m.lastError != nil:
		sections = append(sections, m.theme.StatusError.Render(fmt.Sprintf("Could not read library: %v", m.lastError)))
	default:
		sections = append(sections, m.renderGrid())
	}

	if m.config.ShowHelp {
		sections = append(sections, "", m.help.View(m.keymap))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	total := 0
	for _, c := range m.cards {
		total += c.item.ImageCount
	}

	title := m.theme.Title.UnsetMarginBottom().Render(cli.CameraIcon + " Photo library")
	subtitle := m.theme.Subtitle.Render(fmt.Sprintf("%s · %d images", m.library.Root(), total))
	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// cardWidth is the rendered width of a card including border and padding.
func (m Model) cardWidth() int {
	return m.config.ThumbWidth + 4
}

func (m Model) columns() int {
	return max(1, m.width/m.cardWidth())
}

func (m Model) renderGrid() string {
	cols := m.columns()
	var rows []string
	for start := 0; start < len(m.cards); start += cols {
		end := min(start+cols, len(m.cards))
		rendered := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			rendered = append(rendered, m.renderCard(i))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderCard(i int) string {
	c := m.cards[i]

	style := m.theme.Card
	if i == m.selected {
		style = m.theme.SelectedCard
	}

	label := m.theme.Bold.Render(cli.CategoryLabel(c.item.Name))
	count := m.theme.Subtitle.Render(fmt.Sprintf("%d images", c.item.ImageCount))

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, label, count, m.renderThumbnail(c)))
}

func (m Model) renderThumbnail(c card) string {
	box := lipgloss.NewStyle().
		Width(m.config.ThumbWidth).
		Height(m.config.ThumbHeight).
		Align(lipgloss.Center, lipgloss.Center)

	switch c.state {
	case cardReady:
		return c.thumbnail
	case cardLoading:
		return box.Render(m.spinner.View() + " loading")
	case cardFailed:
		return box.Render(m.theme.StatusPending.Render("preview unavailable"))
	default:
		return box.Render(m.theme.StatusPending.Render("no images"))
	}
}
