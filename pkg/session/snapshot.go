package session

import (
	"time"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Snapshot is a consistent view of the manager at one instant.
type Snapshot struct {
	Programs     []domain.ProgramMetadata
	Running      bool
	ProgramName  string
	OptionValues map[string]any
	Dialog       *domain.Dialog
	Generation   uint64
	StartedAt    time.Time
}

// Snapshot captures the catalog and the running session atomically.
func (m *Manager) Snapshot() Snapshot {
	var snap Snapshot
	m.WithSnapshot(func(s Snapshot) { snap = s })
	return snap
}

// WithSnapshot calls fn with a snapshot while holding the manager lock, so no
// lifecycle broadcast can be emitted until fn returns. The transport uses it to
// queue a welcome message that is ordered with respect to later updates.
// fn must not call back into the Manager.
func (m *Manager) WithSnapshot(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Programs:   m.metadataLocked(),
		Generation: m.gen,
	}
	if s := m.current; s != nil {
		snap.Running = true
		snap.ProgramName = s.Name()
		snap.OptionValues = s.Program.OptionValues()
		snap.Dialog = s.Program.CurrentDialog()
		snap.StartedAt = s.StartedAt
	}
	fn(snap)
}
