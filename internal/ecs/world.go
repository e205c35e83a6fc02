package ecs

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs/chunk"
)

// World is the Repository of spec §4.6: it owns the entity index, the
// per-type component tables, singleton slots, phase state and the
// event bus. Grounded on the teacher's world.go constructor pattern and
// component.go's ComponentStore interface surface, restructured around
// generation-checked handles and phase-gated mutation instead of the
// teacher's map-based store with no phase concept.
type World struct {
	cfg    Config
	log    *zap.Logger
	alloc  *chunk.Allocator
	index  *EntityIndex
	tables map[int]IComponentTable // keyed by dense TypeRegistry ID
	singletons *singletonSlots
	gate   *phaseGate
	bus    *EventBus

	globalVersion uint32 // atomic; monotonic, stamped into touched chunks
}

// NewWorld constructs a World with cfg; if log is nil a no-op logger is
// used, mirroring the teacher's practice of accepting an optional
// collaborator through the constructor rather than a package-global.
func NewWorld(cfg Config, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		cfg:        cfg,
		log:        log,
		alloc:      chunk.NewAllocator(),
		index:      NewEntityIndex(),
		tables:     make(map[int]IComponentTable, 32),
		singletons: newSingletonSlots(),
		gate:       newPhaseGate(cfg),
		bus:        NewEventBus(),
	}
	return w
}

// NewDefaultWorld constructs a World with DefaultConfig() and no logger.
func NewDefaultWorld() *World {
	return NewWorld(DefaultConfig(), nil)
}

// Close releases the allocator's unmanaged chunk memory; deterministic
// disposal per spec §4.3.
func (w *World) Close() error {
	return w.alloc.Close()
}

// Config returns the World's initialization parameters, so one-
// directional dependents (the recorder) can read tunables like
// RecorderCompression/DebugAudit without the World exposing cfg itself.
func (w *World) Config() Config { return w.cfg }

// GlobalVersion returns the repository's current global version.
func (w *World) GlobalVersion() uint32 {
	return atomic.LoadUint32(&w.globalVersion)
}

// Tick atomically increments global_version by exactly 1 (spec §8).
func (w *World) Tick() uint32 {
	return atomic.AddUint32(&w.globalVersion, 1)
}

// Index exposes the entity index to the query/command/recorder code in
// this package; unexported-field access across files in the same
// package, not a public API.
func (w *World) Index() *EntityIndex { return w.index }

// Bus returns the world's event bus.
func (w *World) Bus() *EventBus { return w.bus }

// Phase returns the currently active phase.
func (w *World) Phase() Phase { return w.gate.Current() }

// SetPhase validates and applies a phase transition (spec §4.6/§4.10).
func (w *World) SetPhase(p Phase) error {
	if err := w.gate.SetPhase(p); err != nil {
		return err
	}
	w.log.Debug("phase transition", zap.String("phase", p.String()))
	return nil
}

// CreateEntity allocates a fresh, active entity with empty masks.
func (w *World) CreateEntity() Entity {
	e := w.index.Create()
	w.log.Debug("entity created", zap.Stringer("entity", e))
	return e
}

// CreateStagedEntity creates an entity in the Constructing lifecycle
// stage with a LifecycleDescriptor tracking requiredMask against
// acknowledgements; authority is pre-seeded onto the new entity's
// authority mask for the modules it already owns.
func (w *World) CreateStagedEntity(requiredMask BitMask256, authority BitMask256) (Entity, *LifecycleDescriptor) {
	e := w.index.Create()
	h, _ := w.index.GetHeader(e)
	h.Lifecycle = LifecycleConstructing
	h.AuthorityMask = authority
	desc := &LifecycleDescriptor{RequiredModulesMask: requiredMask, CreatedTime: time.Now(), Timeout: w.cfg.ZombieTimeout}
	return e, desc
}

// DestroyEntity validates e and removes it, recording the destruction
// in this frame's log for the recorder to pick up.
func (w *World) DestroyEntity(e Entity) error {
	if err := w.index.Destroy(e); err != nil {
		return err
	}
	w.log.Debug("entity destroyed", zap.Stringer("entity", e))
	return nil
}

// IsAlive reports whether e currently refers to a live entity.
func (w *World) IsAlive(e Entity) bool {
	return w.index.IsAlive(e)
}

// tableFor returns the IComponentTable registered for typeID, or
// NotRegistered.
func (w *World) tableFor(typeID int) (IComponentTable, error) {
	t, ok := w.tables[typeID]
	if !ok {
		name, _ := globalRegistry.NameOf(typeID)
		return nil, NotRegisteredErr(name)
	}
	return t, nil
}

// AdvanceZombies runs the staged-entity timeout sweep: any
// LifecycleDescriptor whose accumulated delta exceeds its timeout
// destroys its entity. Callers own the descriptor bookkeeping (the
// repository does not store descriptors itself, per spec §3's staged
// creation being a scheduler/validation-system concern) — a host
// should call this once per frame, passing the same
// map[Entity]*LifecycleDescriptor it populated from CreateStagedEntity,
// so the 5s timeout (spec §3) actually has a driver; nothing in this
// package calls it on its own.
func (w *World) AdvanceZombies(pairs map[Entity]*LifecycleDescriptor, delta float64) {
	for e, d := range pairs {
		d.Tick(durationFromSeconds(delta))
		if d.Ready() {
			if h, err := w.index.GetHeader(e); err == nil {
				h.Lifecycle = LifecycleActive
			}
			delete(pairs, e)
			continue
		}
		if d.Expired() {
			_ = w.DestroyEntity(e)
			w.log.Warn("staged entity timed out", zap.Stringer("entity", e))
			delete(pairs, e)
		}
	}
}
