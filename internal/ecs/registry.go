package ecs

import (
	"reflect"
	"sync"
)

// MaxComponentTypes is the hard ceiling on distinct registered component
// or event types; BitMask256 has exactly this many bits.
const MaxComponentTypes = 256

// PolicyBits are the per-type data-policy flags the recorder and
// replication paths consult.
type PolicyBits struct {
	Snapshotable bool
	Recordable   bool
	Saveable     bool
	NeedsClone   bool
}

// DefaultPODPolicy is the default policy for plain-old-data component
// types: fully snapshotable/recordable/saveable, no clone needed.
func DefaultPODPolicy() PolicyBits {
	return PolicyBits{Snapshotable: true, Recordable: true, Saveable: true, NeedsClone: false}
}

// DefaultImmutableRecordPolicy matches reference types that are
// immutable records: same as PODs.
func DefaultImmutableRecordPolicy() PolicyBits {
	return PolicyBits{Snapshotable: true, Recordable: true, Saveable: true, NeedsClone: false}
}

// DefaultMutableClassPolicy matches mutable reference types: every bit
// other than recordable starts false until the caller opts in.
func DefaultMutableClassPolicy() PolicyBits {
	return PolicyBits{Snapshotable: false, Recordable: true, Saveable: false, NeedsClone: false}
}

type typeEntry struct {
	id     int
	typ    reflect.Type
	name   string
	policy PolicyBits
}

// TypeRegistry assigns dense [0,256) IDs to component/event Go types and
// stores per-type policy bits. It is a process-wide service: the same
// Go type always maps to the same ID regardless of which World is
// asking, mirroring the teacher's single global ComponentRegistry
// rather than per-world namespaces (see spec §4.1).
type TypeRegistry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type]*typeEntry
	byID     []*typeEntry
}

// globalRegistry is the process-wide TypeRegistry instance; Register and
// friends are thin wrappers so call sites read as ecs.Register[T](), but
// the state genuinely lives in one place for the lifetime of the process.
var globalRegistry = newTypeRegistry()

func newTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byType: make(map[reflect.Type]*typeEntry, 64),
		byID:   make([]*typeEntry, 0, 64),
	}
}

// Register returns the existing ID for t if already known, or assigns
// the next dense ID with the given default policy. Fails with Overflow
// once 256 types have been registered.
func (r *TypeRegistry) Register(t reflect.Type, defaultPolicy PolicyBits) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byType[t]; ok {
		return e.id, nil
	}
	if len(r.byID) >= MaxComponentTypes {
		return -1, OverflowErr(MaxComponentTypes)
	}
	e := &typeEntry{id: len(r.byID), typ: t, name: t.String(), policy: defaultPolicy}
	r.byType[t] = e
	r.byID = append(r.byID, e)
	return e.id, nil
}

// SetPolicy replaces the policy bits for an already-registered type ID.
func (r *TypeRegistry) SetPolicy(id int, bits PolicyBits) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.byID) {
		return NewError(ErrNotRegistered, "type id out of range")
	}
	r.byID[id].policy = bits
	return nil
}

// Policy returns the policy bits for a type ID.
func (r *TypeRegistry) Policy(id int) (PolicyBits, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.byID) {
		return PolicyBits{}, NewError(ErrNotRegistered, "type id out of range")
	}
	return r.byID[id].policy, nil
}

// IDOf returns the dense ID for an already-registered type, or
// NotRegistered if t has never been registered.
func (r *TypeRegistry) IDOf(t reflect.Type) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byType[t]; ok {
		return e.id, nil
	}
	return -1, NotRegisteredErr(t.String())
}

// TypeOf returns the reflect.Type registered under id.
func (r *TypeRegistry) TypeOf(id int) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.byID) {
		return nil, NewError(ErrNotRegistered, "type id out of range")
	}
	return r.byID[id].typ, nil
}

// NameOf returns the registered type's string name, used by the
// recorder to address managed types by name during replay.
func (r *TypeRegistry) NameOf(id int) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.byID) {
		return "", NewError(ErrNotRegistered, "type id out of range")
	}
	return r.byID[id].name, nil
}

// IDByName resolves a type by its registered string name; used by
// Player when replaying managed event/singleton streams addressed by
// name rather than by the (process-local) dense ID.
func (r *TypeRegistry) IDByName(name string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.name == name {
			return e.id, nil
		}
	}
	return -1, UnknownTypeErr(name)
}

// Count returns the number of registered types.
func (r *TypeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// RegisterType registers T against the global registry, returning its
// dense type ID. Generic component/event registration (World.Register,
// EventBus stream setup) always goes through this helper.
func RegisterType[T any](defaultPolicy PolicyBits) int {
	var zero T
	t := reflect.TypeOf(zero)
	id, err := globalRegistry.Register(t, defaultPolicy)
	if err != nil {
		panic(err)
	}
	return id
}

// TypeIDFor returns the already-registered ID for T, or NotRegistered.
func TypeIDFor[T any]() (int, error) {
	var zero T
	t := reflect.TypeOf(zero)
	return globalRegistry.IDOf(t)
}

// GlobalRegistry exposes the process-wide TypeRegistry so that an
// external codec.Registry (e.g. codec.DefaultCodec.Types) can resolve a
// type ID to a reflect.Type without this package depending on codec.
func GlobalRegistry() *TypeRegistry { return globalRegistry }

// RegistryPolicy returns the policy bits for typeID, consulted by the
// recorder to decide whether a component/singleton type is Recordable.
func RegistryPolicy(typeID int) (PolicyBits, error) {
	return globalRegistry.Policy(typeID)
}

// RegistryName returns the registered type name for typeID, used to
// address managed types by name in the recording format.
func RegistryName(typeID int) (string, error) {
	return globalRegistry.NameOf(typeID)
}

// RegistryIDByName resolves a type by its registered name, used by
// Playback to re-associate a managed stream's type_name with a type ID.
func RegistryIDByName(name string) (int, error) {
	return globalRegistry.IDByName(name)
}

// typeName returns T's reflect.Type string, used for error context.
func typeName[T any]() string {
	var zero T
	return reflect.TypeOf(zero).String()
}
