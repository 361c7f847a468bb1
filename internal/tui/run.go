package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the category browser and blocks until the user quits or ctx
// is cancelled. previews is closed before Run returns.
func Run(ctx context.Context, library Library, previews Previewer, opts ...Option) error {
	m := New(library, previews, opts...)
	defer m.shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
