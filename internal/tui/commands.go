package tui

import (
	"context"
	"time"

	"github.com/Veraticus/photo-sorter/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

const listingTimeout = 10 * time.Second

// loadCategories lists the library and picks each card's preview image.
func (m Model) loadCategories() tea.Cmd {
	library := m.library
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), listingTimeout)
		defer cancel()

		items, err := library.Categories(ctx)
		if err != nil {
			return categoriesLoadedMsg{err: err}
		}

		previews := make(map[model.Category]string, len(items))
		for _, item := range items {
			if path, ok := library.PreviewImage(item); ok {
				previews[item.Name] = path
			}
		}
		return categoriesLoadedMsg{items: items, previews: previews}
	}
}

// waitForPreview blocks until the next preview is delivered. It yields nil
// once the browser shuts down.
func (m Model) waitForPreview() tea.Cmd {
	bridge := m.bridge
	return func() tea.Msg {
		select {
		case msg := <-bridge.events:
			return msg
		case <-bridge.done:
			return nil
		}
	}
}
