// Package tui implements the category browser: one card per category with
// a thumbnail of its first image, loaded in the background.
package tui

import (
	"context"
	"image"
	"sync"

	"github.com/Veraticus/photo-sorter/internal/model"
	"github.com/Veraticus/photo-sorter/internal/preview"
	"github.com/Veraticus/photo-sorter/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Library lists the on-disk categories.
type Library interface {
	Root() string
	Categories(ctx context.Context) ([]model.CategoryItem, error)
	PreviewImage(item model.CategoryItem) (string, bool)
}

// Previewer loads card thumbnails. preview.Manager implements it.
type Previewer interface {
	Request(slotKey, path string, onLoaded func(image.Image)) *preview.Job
	Cancel(slotKey string)
	Close()
}

type cardState int

const (
	cardEmpty cardState = iota
	cardLoading
	cardReady
	cardFailed
)

// card is one category tile. Its slot key is the category name.
type card struct {
	item      model.CategoryItem
	thumbnail string
	state     cardState
}

func (c card) slot() string {
	return string(c.item.Name)
}

// previewBridge hands preview results from worker goroutines to the program.
type previewBridge struct {
	events chan previewLoadedMsg
	done   chan struct{}
	once   sync.Once
}

func newPreviewBridge() *previewBridge {
	return &previewBridge{
		events: make(chan previewLoadedMsg),
		done:   make(chan struct{}),
	}
}

func (b *previewBridge) deliver(msg previewLoadedMsg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

func (b *previewBridge) stop() {
	b.once.Do(func() { close(b.done) })
}

// Model holds the browser state.
type Model struct {
	library    Library
	previews   Previewer
	bridge     *previewBridge
	lastError  error
	theme      themes.Theme
	keymap     KeyMap
	help       help.Model
	spinner    spinner.Model
	cards      []card
	config     Config
	width      int
	height     int
	selected   int
	generation int
	loaded     bool
	quitting   bool
}

// New creates a browser over library whose thumbnails come from previews.
func New(library Library, previews Previewer, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = s.Style.Foreground(cfg.Theme.Primary)

	return Model{
		library:  library,
		previews: previews,
		bridge:   newPreviewBridge(),
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		spinner:  s,
		config:   cfg,
		width:    cfg.Width,
		height:   cfg.Height,
	}
}

// Init loads the library and starts listening for previews.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCategories(),
		m.waitForPreview(),
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case categoriesLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.lastError = msg.err
			return m, nil
		}
		m.lastError = nil
		m.applyListing(msg)
		return m, nil

	case previewLoadedMsg:
		m.applyPreview(msg)
		return m, m.waitForPreview()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		m.shutdown()
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Refresh):
		return m, m.loadCategories()
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keymap.Left):
		m.moveSelection(-1)
	case key.Matches(msg, m.keymap.Right):
		m.moveSelection(1)
	case key.Matches(msg, m.keymap.Up):
		m.moveSelection(-m.columns())
	case key.Matches(msg, m.keymap.Down):
		m.moveSelection(m.columns())
	}
	return m, nil
}

func (m *Model) moveSelection(delta int) {
	if len(m.cards) == 0 {
		return
	}
	next := m.selected + delta
	if next < 0 || next >= len(m.cards) {
		return
	}
	m.selected = next
}

// applyListing rebuilds the cards and requests a preview for every
// non-empty category. Requests supersede the slot's previous job.
func (m *Model) applyListing(msg categoriesLoadedMsg) {
	m.generation++
	generation := m.generation
	bridge := m.bridge

	cards := make([]card, 0, len(msg.items))
	for _, item := range msg.items {
		c := card{item: item, state: cardEmpty}
		slot := c.slot()

		path, ok := msg.previews[item.Name]
		if !ok {
			m.previews.Cancel(slot)
			cards = append(cards, c)
			continue
		}

		c.state = cardLoading
		job := m.previews.Request(slot, path, func(img image.Image) {
			bridge.deliver(previewLoadedMsg{img: img, slot: slot, generation: generation})
		})
		if job == nil {
			c.state = cardFailed
		}
		cards = append(cards, c)
	}

	m.cards = cards
	if m.selected >= len(m.cards) {
		m.selected = max(0, len(m.cards)-1)
	}
}

func (m *Model) applyPreview(msg previewLoadedMsg) {
	if msg.generation != m.generation {
		return
	}
	for i := range m.cards {
		if m.cards[i].slot() != msg.slot {
			continue
		}
		if msg.img == nil {
			m.cards[i].state = cardFailed
			m.cards[i].thumbnail = ""
			return
		}
		m.cards[i].state = cardReady
		m.cards[i].thumbnail = RenderThumbnail(msg.img, m.config.ThumbWidth, m.config.ThumbHeight)
		return
	}
}

// shutdown stops preview delivery and waits for every preview job to exit.
func (m Model) shutdown() {
	m.bridge.stop()
	m.previews.Close()
}
