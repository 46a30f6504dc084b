// Package core holds the lifecycle contract shared by the bot's modules.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Module is a long running component started once at boot and stopped at
// shutdown.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// ErrStarted is returned when the manager is modified or started twice.
var ErrStarted = errors.New("core: manager already started")

// Manager starts modules in registration order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	modules []Module
	running []Module
}

// NewManager creates a manager over mods.
func NewManager(mods ...Module) *Manager {
	m := &Manager{}
	for _, mod := range mods {
		if mod != nil {
			m.modules = append(m.modules, mod)
		}
	}
	return m
}

// Add registers a module. It fails once Start has been called.
func (m *Manager) Add(mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return ErrStarted
	}
	if mod != nil {
		m.modules = append(m.modules, mod)
	}
	return nil
}

// Names lists registered modules in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.modules))
	for _, mod := range m.modules {
		out = append(out, mod.Name())
	}
	return out
}

// Start starts every module. When one fails, the ones already running are
// stopped before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return ErrStarted
	}

	running := make([]Module, 0, len(m.modules))
	for _, mod := range m.modules {
		if err := mod.Start(ctx); err != nil {
			stopAll(ctx, running)
			return fmt.Errorf("module %s failed: %w", mod.Name(), err)
		}
		log.Printf("actions: module %s started", mod.Name())
		running = append(running, mod)
	}
	m.running = running
	return nil
}

// Stop stops the running modules in reverse start order.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stopAll(ctx, m.running)
	m.running = nil
}

func stopAll(ctx context.Context, mods []Module) {
	for i := len(mods) - 1; i >= 0; i-- {
		mods[i].Stop(ctx)
		log.Printf("actions: module %s stopped", mods[i].Name())
	}
}
