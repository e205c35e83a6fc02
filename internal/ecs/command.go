package ecs

import "unsafe"

// MaxPayloadBytes is the size ceiling for a raw unmanaged component
// payload staged through a CommandBuffer (spec §4.8).
const MaxPayloadBytes = 1024

type cmdKind uint8

const (
	cmdCreateEntity cmdKind = iota
	cmdDestroyEntity
	cmdAddComponent
	cmdSetComponent
	cmdRemoveComponent
	cmdAddManagedComponent
	cmdSetManagedComponent
	cmdRemoveManagedComponent
)

// command is one entry of a CommandBuffer's append-only log. Grounded
// on the teacher's entity_manager.go batch operations (CreateEntities/
// DestroyEntities collect-first-error pattern), adapted from immediate
// dispatch into a deferred, replayable log.
type command struct {
	kind       cmdKind
	target     Entity // may be a placeholder handle
	typeID     int
	bytes      []byte // unmanaged payload, copied at record time
	objectSlot int    // index into CommandBuffer.managed, for managed payloads
}

// CommandBuffer is a per-thread deferred mutation log (spec §4.8/§5):
// callers on arbitrary goroutines append commands; only the
// coordinating thread calls Playback against a World.
type CommandBuffer struct {
	log        []command
	managed    []any // side list of managed payloads, indexed by objectSlot
	nextPlaceholder int32
}

// NewCommandBuffer returns an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{nextPlaceholder: -1}
}

// CreateEntity appends a create command and returns a placeholder
// handle (negative index) that Playback remaps to a real Entity.
func (cb *CommandBuffer) CreateEntity() Entity {
	placeholder := PlaceholderEntity(cb.nextPlaceholder)
	cb.nextPlaceholder--
	cb.log = append(cb.log, command{kind: cmdCreateEntity, target: placeholder})
	return placeholder
}

// DestroyEntity appends a destroy command against handle (which may be
// a placeholder from this same buffer).
func (cb *CommandBuffer) DestroyEntity(handle Entity) {
	cb.log = append(cb.log, command{kind: cmdDestroyEntity, target: handle})
}

// AddCommand appends an AddComponent command for T on handle, copying
// value's bytes into the log; fails with PayloadTooLarge above
// MaxPayloadBytes.
func AddCommand[T any](cb *CommandBuffer, handle Entity, value T) error {
	return rawComponentCommand[T](cb, cmdAddComponent, handle, value)
}

// SetCommand appends a SetComponent command.
func SetCommand[T any](cb *CommandBuffer, handle Entity, value T) error {
	return rawComponentCommand[T](cb, cmdSetComponent, handle, value)
}

// RemoveCommand appends a RemoveComponent command for T on handle.
func RemoveCommand[T any](cb *CommandBuffer, handle Entity) error {
	id, err := TypeIDFor[T]()
	if err != nil {
		id = RegisterType[T](DefaultPODPolicy())
	}
	cb.log = append(cb.log, command{kind: cmdRemoveComponent, target: handle, typeID: id})
	return nil
}

func rawComponentCommand[T any](cb *CommandBuffer, kind cmdKind, handle Entity, value T) error {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size > MaxPayloadBytes {
		return PayloadTooLargeErr(size, MaxPayloadBytes)
	}
	id, err := TypeIDFor[T]()
	if err != nil {
		id = RegisterType[T](DefaultPODPolicy())
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(&value)), size)
	buf := make([]byte, size)
	copy(buf, src)
	cb.log = append(cb.log, command{kind: kind, target: handle, typeID: id, bytes: buf})
	return nil
}

// AddManagedCommand appends an AddManagedComponent command; value is
// stored by reference in the buffer's managed side list, not copied.
func AddManagedCommand[T any](cb *CommandBuffer, handle Entity, value T) {
	id, err := TypeIDFor[T]()
	if err != nil {
		id = RegisterType[T](DefaultMutableClassPolicy())
	}
	cb.managed = append(cb.managed, value)
	cb.log = append(cb.log, command{kind: cmdAddManagedComponent, target: handle, typeID: id, objectSlot: len(cb.managed) - 1})
}

// SetManagedCommand appends a SetManagedComponent command.
func SetManagedCommand[T any](cb *CommandBuffer, handle Entity, value T) {
	id, err := TypeIDFor[T]()
	if err != nil {
		id = RegisterType[T](DefaultMutableClassPolicy())
	}
	cb.managed = append(cb.managed, value)
	cb.log = append(cb.log, command{kind: cmdSetManagedComponent, target: handle, typeID: id, objectSlot: len(cb.managed) - 1})
}

// RemoveManagedCommand appends a RemoveManagedComponent command.
func RemoveManagedCommand[T any](cb *CommandBuffer, handle Entity) error {
	id, err := TypeIDFor[T]()
	if err != nil {
		return NotRegisteredErr(typeName[T]())
	}
	cb.log = append(cb.log, command{kind: cmdRemoveManagedComponent, target: handle, typeID: id})
	return nil
}

// Playback applies every logged command against repo in order,
// remapping placeholder handles to real entities via a dictionary
// built as each CreateEntity is processed. A command targeting a
// placeholder not yet created, or a dead entity, is skipped rather
// than aborting the whole buffer; command order is preserved and there
// is no rollback of prior commands on a later failure (spec §4.8).
// The buffer is cleared on completion.
func (cb *CommandBuffer) Playback(repo *World) {
	remap := make(map[Entity]Entity, 8)
	resolve := func(h Entity) (Entity, bool) {
		if h.IsPlaceholder() {
			real, ok := remap[h]
			return real, ok
		}
		return h, repo.IsAlive(h)
	}

	for _, c := range cb.log {
		switch c.kind {
		case cmdCreateEntity:
			remap[c.target] = repo.CreateEntity()
		case cmdDestroyEntity:
			if real, ok := resolve(c.target); ok {
				_ = repo.DestroyEntity(real)
			}
		case cmdAddComponent, cmdSetComponent:
			real, ok := resolve(c.target)
			if !ok {
				continue
			}
			table, err := repo.tableFor(c.typeID)
			if err != nil {
				continue
			}
			h, err := repo.index.GetHeader(real)
			if err != nil {
				continue
			}
			if err := table.SetRaw(real.Index, c.bytes, repo.GlobalVersion()); err != nil {
				continue
			}
			h.ComponentMask.Set(c.typeID)
			h.LastChangeTick = uint64(repo.GlobalVersion())
		case cmdRemoveComponent:
			real, ok := resolve(c.target)
			if !ok {
				continue
			}
			table, err := repo.tableFor(c.typeID)
			if err != nil {
				continue
			}
			h, err := repo.index.GetHeader(real)
			if err != nil {
				continue
			}
			table.ClearRaw(real.Index)
			h.ComponentMask.Clear(c.typeID)
			h.AuthorityMask.Clear(c.typeID)
		case cmdAddManagedComponent, cmdSetManagedComponent:
			real, ok := resolve(c.target)
			if !ok {
				continue
			}
			table, err := repo.tableFor(c.typeID)
			if err != nil {
				continue
			}
			h, err := repo.index.GetHeader(real)
			if err != nil {
				continue
			}
			if err := table.SetRawObject(real.Index, cb.managed[c.objectSlot]); err != nil {
				continue
			}
			h.ComponentMask.Set(c.typeID)
			h.LastChangeTick = uint64(repo.GlobalVersion())
		case cmdRemoveManagedComponent:
			real, ok := resolve(c.target)
			if !ok {
				continue
			}
			table, err := repo.tableFor(c.typeID)
			if err != nil {
				continue
			}
			h, err := repo.index.GetHeader(real)
			if err != nil {
				continue
			}
			table.ClearRaw(real.Index)
			h.ComponentMask.Clear(c.typeID)
		}
	}
	cb.log = cb.log[:0]
	cb.managed = cb.managed[:0]
	cb.nextPlaceholder = -1
}

// Len returns the number of pending commands.
func (cb *CommandBuffer) Len() int { return len(cb.log) }
