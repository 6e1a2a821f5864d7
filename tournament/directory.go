package tournament

import (
	"sync"

	"github.com/decred/slog"
	"github.com/google/uuid"

	"github.com/vgmr/pongcourt/ponggame"
)

// DefaultBracketSize is used for brackets created through matchmaking.
const DefaultBracketSize = 4

// Directory tracks live tournament managers by ID. It replaces any notion
// of a process-wide tournament map: construct one, pass it by reference.
type Directory struct {
	mu          sync.RWMutex
	tournaments map[string]*Manager

	registry *ponggame.Registry
	recorder ResultRecorder
	size     int
	log      slog.Logger
}

func NewDirectory(registry *ponggame.Registry, recorder ResultRecorder, size int, log slog.Logger) *Directory {
	if size == 0 {
		size = DefaultBracketSize
	}
	return &Directory{
		tournaments: make(map[string]*Manager),
		registry:    registry,
		recorder:    recorder,
		size:        size,
		log:         log,
	}
}

// GetOrCreateOpen returns a pending, not-full bracket, creating one when
// none is open.
func (d *Directory) GetOrCreateOpen() (*Manager, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range d.tournaments {
		if m.Open() {
			return m, nil
		}
	}

	m, err := NewManager(uuid.NewString(), d.size, d.registry, d.recorder, d.log)
	if err != nil {
		return nil, err
	}
	d.tournaments[m.ID] = m
	d.log.Debugf("tournament %s created (%d live)", m.ID, len(d.tournaments))
	return m, nil
}

// Find returns a manager by ID, or nil.
func (d *Directory) Find(id string) *Manager {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tournaments[id]
}

// Remove deregisters a manager. Idempotent.
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	delete(d.tournaments, id)
	d.mu.Unlock()
}

// Len returns the number of live managers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tournaments)
}

// SweepCompleted drops completed brackets and returns how many were
// removed.
func (d *Directory) SweepCompleted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed int
	for id, m := range d.tournaments {
		if m.State() == StatusCompleted {
			delete(d.tournaments, id)
			removed++
		}
	}
	return removed
}
