// Package history keeps a bounded linear undo/redo log of project states.
package history

import "studioAPI/internal/types/project"

// MaxDepth bounds the number of undoable entries.
const MaxDepth = 50

// Manager holds past entries oldest first and future entries nearest first.
// The present mirrors the state last recorded or restored by the caller.
// Every state crossing its boundary is deep copied.
type Manager struct {
	past    []project.State
	future  []project.State
	present project.State
}

func New(initial project.State) *Manager {
	return &Manager{present: initial.Clone()}
}

// RecordChange makes next the present. A state equal to the present is
// ignored; otherwise the old present is pushed onto past, the oldest entry is
// dropped beyond MaxDepth and future is discarded. It reports whether an entry
// was recorded.
func (m *Manager) RecordChange(next project.State) bool {
	if next.Equal(m.present) {
		return false
	}
	m.past = append(m.past, m.present)
	if len(m.past) > MaxDepth {
		m.past = append(m.past[:0:0], m.past[len(m.past)-MaxDepth:]...)
	}
	m.future = nil
	m.present = next.Clone()
	return true
}

func (m *Manager) Undo() (project.State, bool) {
	if len(m.past) == 0 {
		return project.State{}, false
	}
	prev := m.past[len(m.past)-1]
	m.past = m.past[:len(m.past)-1]
	m.future = append([]project.State{m.present}, m.future...)
	m.present = prev
	return prev.Clone(), true
}

func (m *Manager) Redo() (project.State, bool) {
	if len(m.future) == 0 {
		return project.State{}, false
	}
	next := m.future[0]
	m.future = m.future[1:]
	m.past = append(m.past, m.present)
	m.present = next
	return next.Clone(), true
}

// SetPresentQuietly replaces the present without touching past or future.
func (m *Manager) SetPresentQuietly(s project.State) {
	m.present = s.Clone()
}

func (m *Manager) Present() project.State { return m.present.Clone() }

func (m *Manager) CanUndo() bool { return len(m.past) > 0 }

func (m *Manager) CanRedo() bool { return len(m.future) > 0 }

// Depth returns the lengths of past and future.
func (m *Manager) Depth() (past, future int) {
	return len(m.past), len(m.future)
}
