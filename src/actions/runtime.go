package actions

import "github.com/obrc/blacklist/src/actions/core"

type (
	// Manager re-exports core.Manager for callers outside the actions tree.
	Manager = core.Manager
	// Module re-exports core.Module.
	Module = core.Module
)

// NewManager forwards to core.NewManager.
func NewManager(mods ...Module) *Manager {
	return core.NewManager(mods...)
}
