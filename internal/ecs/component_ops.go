package ecs

// This file is the generic, typed façade over World's per-type table
// map (spec §4.6's add/set/get_rw/get_ro/has/remove/try_get/set_authority
// family). Go methods cannot introduce their own type parameters, so
// these are free functions taking *World — the idiomatic shape for a
// generic accessor in this language, playing the role the teacher's
// AddComponent(EntityID, Component)/GetComponent(...) interface methods
// play for its boxed Component interface.

// RegisterComponent registers T as an unmanaged (POD) component type,
// dispatching to a ComponentTable[T]. Policy defaults to
// DefaultPODPolicy() unless an explicit override is given; resolution
// priority (explicit argument → type attribute → convention) collapses
// to just the first two here since Go has no per-type attribute
// mechanism outside of registration-time arguments.
func RegisterComponent[T any](w *World, policy ...PolicyBits) (int, error) {
	p := DefaultPODPolicy()
	if len(policy) > 0 {
		p = policy[0]
	}
	id := RegisterType[T](p)
	if _, exists := w.tables[id]; !exists {
		w.tables[id] = NewComponentTable[T](id, w.alloc)
	}
	return id, nil
}

// RegisterManagedComponent registers T as a managed (reference) type,
// dispatching to a ManagedTable[T]. Defaults to DefaultMutableClassPolicy
// unless overridden; mutable reference types start non-snapshotable per
// spec §3 unless the caller opts in explicitly.
func RegisterManagedComponent[T any](w *World, policy ...PolicyBits) (int, error) {
	p := DefaultMutableClassPolicy()
	if len(policy) > 0 {
		p = policy[0]
	}
	id := RegisterType[T](p)
	if _, exists := w.tables[id]; !exists {
		w.tables[id] = NewManagedTable[T](id)
	}
	return id, nil
}

func unmanagedTable[T any](w *World) (*ComponentTable[T], int, error) {
	id, err := TypeIDFor[T]()
	if err != nil {
		return nil, -1, NotRegisteredErr(typeName[T]())
	}
	t, err := w.tableFor(id)
	if err != nil {
		return nil, id, err
	}
	ct, ok := t.(*ComponentTable[T])
	if !ok {
		return nil, id, NewError(ErrUnsupported, "type is registered as managed, not unmanaged")
	}
	return ct, id, nil
}

func managedTable[T any](w *World) (*ManagedTable[T], int, error) {
	id, err := TypeIDFor[T]()
	if err != nil {
		return nil, -1, NotRegisteredErr(typeName[T]())
	}
	t, err := w.tableFor(id)
	if err != nil {
		return nil, id, err
	}
	mt, ok := t.(*ManagedTable[T])
	if !ok {
		return nil, id, NewError(ErrUnsupported, "type is registered as unmanaged, not managed")
	}
	return mt, id, nil
}

// checkWriteAccess validates e's handle and the phase gate's
// permission for a mutating accessor on T.
func (w *World) checkWriteAccess(e Entity, typeID int) error {
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	name, _ := globalRegistry.NameOf(typeID)
	return w.gate.validateWriteAccess(e, h.AuthorityMask.Test(typeID), name)
}

// Add attaches value as component T to e (unmanaged path), setting the
// presence bit and stamping the chunk and header with global_version.
func Add[T any](w *World, e Entity, value T) error {
	table, id, err := unmanagedTable[T](w)
	if err != nil {
		return err
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	ptr, err := table.GetRW(e.Index, w.GlobalVersion())
	if err != nil {
		return err
	}
	*ptr = value
	h.ComponentMask.Set(id)
	h.LastChangeTick = uint64(w.GlobalVersion())
	w.index.touchChunk(e.Index, w.GlobalVersion())
	return nil
}

// Set overwrites e's existing T value; fails with MissingComponent if
// the component is not present (use Add to attach for the first time).
func Set[T any](w *World, e Entity, value T) error {
	table, id, err := unmanagedTable[T](w)
	if err != nil {
		return err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	if !h.ComponentMask.Test(id) {
		return MissingComponentErr(e, id, typeName[T]())
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return err
	}
	ptr, err := table.GetRW(e.Index, w.GlobalVersion())
	if err != nil {
		return err
	}
	*ptr = value
	h.LastChangeTick = uint64(w.GlobalVersion())
	return nil
}

// GetRW returns a mutable pointer to e's T value, enforcing the phase
// gate the same way Set does.
func GetRW[T any](w *World, e Entity) (*T, error) {
	table, id, err := unmanagedTable[T](w)
	if err != nil {
		return nil, err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return nil, err
	}
	if !h.ComponentMask.Test(id) {
		return nil, MissingComponentErr(e, id, typeName[T]())
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return nil, err
	}
	return table.GetRW(e.Index, w.GlobalVersion())
}

// GetRO returns an immutable pointer to e's T value without stamping a
// version or checking the phase gate (reads are always permitted).
func GetRO[T any](w *World, e Entity) (*T, error) {
	table, id, err := unmanagedTable[T](w)
	if err != nil {
		return nil, err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return nil, err
	}
	if !h.ComponentMask.Test(id) {
		return nil, MissingComponentErr(e, id, typeName[T]())
	}
	return table.GetRO(e.Index)
}

// Has reports whether e carries component T.
func Has[T any](w *World, e Entity) bool {
	id, err := TypeIDFor[T]()
	if err != nil {
		return false
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return false
	}
	return h.ComponentMask.Test(id)
}

// TryGet is the non-erroring counterpart of GetRO: ok is false if the
// component is absent or the handle is stale.
func TryGet[T any](w *World, e Entity) (value T, ok bool) {
	ptr, err := GetRO[T](w, e)
	if err != nil {
		return value, false
	}
	return *ptr, true
}

// Remove clears e's T component, both the table slot and the presence
// bit; MissingComponent if not present.
func Remove[T any](w *World, e Entity) error {
	table, id, err := unmanagedTable[T](w)
	if err != nil {
		return err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	if !h.ComponentMask.Test(id) {
		return MissingComponentErr(e, id, typeName[T]())
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return err
	}
	table.ClearRaw(e.Index)
	h.ComponentMask.Clear(id)
	h.AuthorityMask.Clear(id)
	h.LastChangeTick = uint64(w.GlobalVersion())
	return nil
}

// SetAuthority flips e's authority bit for T; AuthorityConflict if the
// component is not present (spec §4.6/§3 authority ⊆ component).
func SetAuthority[T any](w *World, e Entity, owned bool) error {
	id, err := TypeIDFor[T]()
	if err != nil {
		return NotRegisteredErr(typeName[T]())
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	if !h.ComponentMask.Test(id) {
		return AuthorityConflictErr(e, id, typeName[T]())
	}
	if owned {
		h.AuthorityMask.Set(id)
	} else {
		h.AuthorityMask.Clear(id)
	}
	return nil
}

// AddManaged attaches a managed (reference) component.
func AddManaged[T any](w *World, e Entity, value T) error {
	table, id, err := managedTable[T](w)
	if err != nil {
		return err
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	table.Set(e.Index, value, w.GlobalVersion())
	h.ComponentMask.Set(id)
	h.LastChangeTick = uint64(w.GlobalVersion())
	return nil
}

// GetManagedRO returns e's managed T reference.
func GetManagedRO[T any](w *World, e Entity) (T, error) {
	var zero T
	table, id, err := managedTable[T](w)
	if err != nil {
		return zero, err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return zero, err
	}
	if !h.ComponentMask.Test(id) {
		return zero, MissingComponentErr(e, id, typeName[T]())
	}
	return table.Get(e.Index)
}

// RemoveManaged clears e's managed T reference.
func RemoveManaged[T any](w *World, e Entity) error {
	table, id, err := managedTable[T](w)
	if err != nil {
		return err
	}
	h, err := w.index.GetHeader(e)
	if err != nil {
		return err
	}
	if !h.ComponentMask.Test(id) {
		return MissingComponentErr(e, id, typeName[T]())
	}
	if err := w.checkWriteAccess(e, id); err != nil {
		return err
	}
	table.Clear(e.Index)
	h.ComponentMask.Clear(id)
	h.AuthorityMask.Clear(id)
	return nil
}

// SyncFrom performs a per-table shallow sync of dirty chunks from
// other into w, optionally filtered by a component-type mask (nil
// means "all registered types"); used by backup/replication workflows
// (spec §4.6).
func (w *World) SyncFrom(other *World, typeMask *BitMask256) error {
	for id, table := range other.tables {
		if typeMask != nil && !typeMask.Test(id) {
			continue
		}
		dst, ok := w.tables[id]
		if !ok {
			continue
		}
		if err := dst.SyncFrom(table, true, w.GlobalVersion()); err != nil {
			return err
		}
	}
	return nil
}
