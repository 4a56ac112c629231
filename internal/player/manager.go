package player

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/quaverd/quaver/internal/media"
)

// Manager hands out one controller per playback context, created lazily on
// first use and kept until shutdown.
type Manager struct {
	lib    *media.Library
	sink   Sink
	logger *log.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates an empty controller registry.
func NewManager(lib *media.Library, sink Sink, logger *log.Logger) *Manager {
	return &Manager{
		lib:         lib,
		sink:        sink,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the controller for a context id, creating it if needed.
func (m *Manager) Controller(id string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[id]
	if !ok {
		m.logger.Info("initialized controller", "context", id)
		c = NewController(id, m.lib, m.sink, m.logger)
		m.controllers[id] = c
	}
	return c
}

// Shutdown leaves every connected controller.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	for _, c := range controllers {
		if c.Connected() {
			c.Leave()
		}
	}
}
