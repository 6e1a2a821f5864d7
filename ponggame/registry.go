package ponggame

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
)

// SweepInterval is how often the registry reclaims abandoned rooms.
const SweepInterval = 30 * time.Second

// Registry creates, finds and destroys rooms. Matchmaking is FIFO: the
// oldest open room with spare capacity is filled before newer ones, so a
// burst of concurrent joins cannot starve older rooms.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	// order holds room IDs in creation order for the FIFO scan.
	order []string

	cfg      Config
	log      slog.Logger
	tickHook func(changed bool)
}

func NewRegistry(cfg Config, log slog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		log:   log,
	}
}

// SetTickHook installs a tick observer applied to every room created from
// now on.
func (g *Registry) SetTickHook(fn func(changed bool)) {
	g.mu.Lock()
	g.tickHook = fn
	g.mu.Unlock()
}

// GetOrCreate returns the oldest room with spare capacity, creating and
// registering a new one when none is open.
func (g *Registry) GetOrCreate() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range g.order {
		r := g.rooms[id]
		if r == nil {
			continue
		}
		if r.PlayerCount() < 2 && !r.Started() && r.Phase() != PhaseFinished {
			return r
		}
	}
	return g.createLocked()
}

// Create always allocates a fresh room; tournament matches never share
// rooms with casual matchmaking.
func (g *Registry) Create() *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createLocked()
}

func (g *Registry) createLocked() *Room {
	r := NewRoom(uuid.NewString(), g.cfg, g.log)
	if g.tickHook != nil {
		r.SetTickHook(g.tickHook)
	}
	g.rooms[r.ID] = r
	g.order = append(g.order, r.ID)
	g.log.Debugf("room %s created (%d active)", r.ID, len(g.rooms))
	return r
}

// FindByID looks up a room for invite and tournament joins.
func (g *Registry) FindByID(id string) *Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rooms[id]
}

// Remove stops and deregisters a room. Idempotent.
func (g *Registry) Remove(id string) {
	g.mu.Lock()
	r := g.rooms[id]
	if r != nil {
		delete(g.rooms, id)
		for i, oid := range g.order {
			if oid == id {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
	}
	g.mu.Unlock()
	if r != nil {
		r.StopLoop()
	}
}

// Rooms returns a snapshot of the registered rooms.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, id := range g.order {
		if r := g.rooms[id]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of registered rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Sweep reclaims rooms with zero occupants, no active timer and an
// unstarted simulation. Returns how many rooms were removed.
func (g *Registry) Sweep() int {
	g.mu.Lock()
	var removed []string
	for id, r := range g.rooms {
		if r.PlayerCount() == 0 && !r.Active() && !r.Started() {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(g.rooms, id)
	}
	if len(removed) > 0 {
		kept := g.order[:0]
		for _, id := range g.order {
			if _, ok := g.rooms[id]; ok {
				kept = append(kept, id)
			}
		}
		g.order = kept
	}
	g.mu.Unlock()

	if len(removed) > 0 {
		g.log.Debugf("sweep reclaimed %d rooms", len(removed))
	}
	return len(removed)
}

// Run sweeps periodically until ctx is cancelled.
func (g *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
