package ecs

import (
	"hash/fnv"
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"
)

// NativeEvent is implemented by every unmanaged event type published on
// the native stream; EventTypeID is a stable 32-bit integer declared on
// the type itself (id 0 is reserved for null), not assigned dynamically
// by a registry — spec §4.9 requires the ID to be stable across
// processes, which a process-local dense registry ID cannot guarantee.
type NativeEvent interface {
	EventTypeID() uint32
}

// MaskDesyncEvent is the spec §9 "mask-vs-table drift" diagnostic: a
// registered component table disagrees with an entity header's
// component_mask about whether a component is present. Published as a
// managed event (boxed, keyed by type name) rather than a NativeEvent
// since it is a debug-only diagnostic, not a hot-path wire type.
type MaskDesyncEvent struct {
	Entity       Entity
	TypeID       int
	InMask       bool // component_mask.Test(TypeID)
	TablePresent bool // table.GetRawObject(Entity.Index) succeeded
}

// nativeStream is the lock-free-modeled, double-buffered MPMC stream
// for one native event type. Grounded on the teacher's
// memory_manager.go objectPoolImpl (atomic in-use counters, a resize
// mutex guarding the backing slice) — the teacher's own EventBusImpl is
// an unimplemented pub/sub stub, so the double-buffer mechanics are
// grounded on that allocator idiom instead, applied to a growable event
// slice rather than a pointer pool.
type nativeStream[T any] struct {
	resizeMu  sync.Mutex
	write     []T
	writeLen  int64 // atomic: slots reserved (and, once stored, valid) in write
	read      []T
	graveyard [][]T
}

func newNativeStream[T any]() *nativeStream[T] {
	return &nativeStream[T]{write: make([]T, 256)}
}

// publish reserves a slot via an atomic counter and stores e there;
// growing 2x under the resize lock when the reservation overruns
// capacity, retiring the old backing array to the graveyard so
// in-flight writers from before the resize still have a valid slice.
func (s *nativeStream[T]) publish(e T) {
	for {
		idx := atomic.AddInt64(&s.writeLen, 1) - 1
		s.resizeMu.Lock()
		if int(idx) >= len(s.write) {
			newCap := len(s.write) * 2
			if newCap == 0 {
				newCap = 256
			}
			for newCap <= int(idx) {
				newCap *= 2
			}
			grown := make([]T, newCap)
			copy(grown, s.write)
			s.graveyard = append(s.graveyard, s.write)
			s.write = grown
		}
		s.write[idx] = e
		s.resizeMu.Unlock()
		return
	}
}

// consume returns the current read buffer, empty until the first
// swap().
func (s *nativeStream[T]) consume() []T {
	return s.read
}

// swap moves the write buffer (truncated to its reserved length) into
// read, retires the previous read buffer to the graveyard, and starts
// a fresh write buffer of the same capacity.
func (s *nativeStream[T]) swap() {
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	n := atomic.LoadInt64(&s.writeLen)
	if int(n) > len(s.write) {
		n = int64(len(s.write))
	}
	if s.read != nil {
		s.graveyard = append(s.graveyard, s.read)
	}
	s.read = s.write[:n]
	s.write = make([]T, cap(s.write))
	atomic.StoreInt64(&s.writeLen, 0)
}

// clear drops the graveyard, releasing every retired buffer.
func (s *nativeStream[T]) clear() {
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	s.graveyard = nil
}

// captureRaw reinterprets the current read buffer as a flat byte slice
// for the recorder's native_event_stream_count section (spec §4.11);
// elemSize is sizeof(T) even when the stream is currently empty.
func (s *nativeStream[T]) captureRaw() (elemSize int, raw []byte) {
	var zero T
	elemSize = int(unsafe.Sizeof(zero))
	data := s.consume()
	if len(data) == 0 || elemSize == 0 {
		return elemSize, nil
	}
	raw = unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), elemSize*len(data))
	return elemSize, raw
}

// injectRawBytes reinterprets raw as count elements of T (count =
// len(raw)/sizeof(T)) and appends them to the write buffer; used by
// Playback when replaying a previously-captured native stream.
func (s *nativeStream[T]) injectRawBytes(raw []byte) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 || len(raw) == 0 {
		return
	}
	n := len(raw) / elemSize
	if n == 0 {
		return
	}
	events := unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)
	s.injectRaw(events)
}

// injectRaw interprets raw bytes as a contiguous []T and appends them
// into the current write buffer (used by Playback to inject a decoded
// frame's native event stream, spec §4.11 step 3).
func (s *nativeStream[T]) injectRaw(events []T) {
	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()
	for _, e := range events {
		idx := atomic.AddInt64(&s.writeLen, 1) - 1
		if int(idx) >= len(s.write) {
			grown := make([]T, len(s.write)*2+1)
			copy(grown, s.write)
			s.graveyard = append(s.graveyard, s.write)
			s.write = grown
		}
		s.write[idx] = e
	}
}

// managedStream is a mutex-protected list of boxed reference-typed
// events, keyed by a stable hash of the type name rather than a
// registry-assigned ID (spec §4.9).
type managedStream struct {
	mu    sync.Mutex
	write []any
	read  []any
}

func (s *managedStream) publish(e any) {
	s.mu.Lock()
	s.write = append(s.write, e)
	s.mu.Unlock()
}

func (s *managedStream) consume() []any {
	return s.read
}

func (s *managedStream) swap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = s.write
	s.write = nil
}

// managedTypeHash is the stable hash of a type name used as the
// managed-stream key.
func managedTypeHash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

// EventBus owns every native and managed stream for a World: double-
// buffered, swapped exactly once per frame. Grounded on the teacher's
// event_types.go naming (EventTypeID, EventBusEvent, SubscriptionID),
// restructured from the teacher's pub/sub-with-handlers model into the
// spec's publish/consume/swap double-buffer model.
type EventBus struct {
	mu             sync.Mutex
	native         map[uint32]any // uint32 EventTypeID -> *nativeStream[T]
	managed        map[uint32]*managedStream
	managedNames   map[uint32]string
	untypedNative  map[uint32]untypedBlob // native streams injected during Playback before any typed publisher ran
}

// untypedBlob holds a native stream captured or injected without a
// concrete Go type backing it, per spec §4.11 step 3 ("untyped stream
// stores raw bytes for consumers that re-interpret").
type untypedBlob struct {
	elemSize int
	raw      []byte
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		native:        make(map[uint32]any),
		managed:       make(map[uint32]*managedStream),
		managedNames:  make(map[uint32]string),
		untypedNative: make(map[uint32]untypedBlob),
	}
}

// nativeCapture is implemented by every *nativeStream[T]; used by the
// recorder to pull raw bytes out without knowing T.
type nativeCapture interface {
	captureRaw() (elemSize int, raw []byte)
	injectRawBytes(raw []byte)
}

// NativeStreamCapture is one native stream's recorder-visible snapshot.
type NativeStreamCapture struct {
	TypeID   uint32
	ElemSize int
	Raw      []byte
}

// CaptureNative returns every registered native stream's current read
// buffer as raw bytes, for the recorder's native_event_stream_count
// section (spec §4.11).
func (bus *EventBus) CaptureNative() []NativeStreamCapture {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	out := make([]NativeStreamCapture, 0, len(bus.native))
	for id, s := range bus.native {
		cap, ok := s.(nativeCapture)
		if !ok {
			continue
		}
		elemSize, raw := cap.captureRaw()
		out = append(out, NativeStreamCapture{TypeID: id, ElemSize: elemSize, Raw: raw})
	}
	return out
}

// ManagedStreamCapture is one managed stream's recorder-visible snapshot.
type ManagedStreamCapture struct {
	TypeID   uint32
	TypeName string
	Values   []any
}

// CaptureManaged returns every registered managed stream's current read
// buffer, for the recorder's managed_event_stream_count section.
func (bus *EventBus) CaptureManaged() []ManagedStreamCapture {
	bus.mu.Lock()
	type entry struct {
		id   uint32
		name string
		s    *managedStream
	}
	entries := make([]entry, 0, len(bus.managed))
	for id, s := range bus.managed {
		entries = append(entries, entry{id, bus.managedNames[id], s})
	}
	bus.mu.Unlock()

	out := make([]ManagedStreamCapture, 0, len(entries))
	for _, e := range entries {
		out = append(out, ManagedStreamCapture{TypeID: e.id, TypeName: e.name, Values: e.s.consume()})
	}
	return out
}

// InjectNativeRaw injects a captured native stream's bytes back into
// the bus during Playback: if a typed stream already exists for
// typeID it is reinterpreted and appended there; otherwise the bytes
// are retained untyped for re-interpretation by a later typed reader
// (spec §4.11 step 3).
func (bus *EventBus) InjectNativeRaw(typeID uint32, elemSize int, raw []byte) {
	bus.mu.Lock()
	s, ok := bus.native[typeID]
	bus.mu.Unlock()
	if ok {
		if cap, ok := s.(nativeCapture); ok {
			cap.injectRawBytes(raw)
			return
		}
	}
	bus.mu.Lock()
	bus.untypedNative[typeID] = untypedBlob{elemSize: elemSize, raw: raw}
	bus.mu.Unlock()
}

// UntypedNativeRaw returns a native stream's raw bytes stashed by
// InjectNativeRaw before any typed reader claimed typeID.
func (bus *EventBus) UntypedNativeRaw(typeID uint32) (elemSize int, raw []byte, ok bool) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	b, ok := bus.untypedNative[typeID]
	return b.elemSize, b.raw, ok
}

func nativeStreamFor[T NativeEvent](bus *EventBus, id uint32) *nativeStream[T] {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if s, ok := bus.native[id]; ok {
		return s.(*nativeStream[T])
	}
	s := newNativeStream[T]()
	bus.native[id] = s
	return s
}

// PublishNative publishes a native event of type T.
func PublishNative[T NativeEvent](bus *EventBus, e T) {
	nativeStreamFor[T](bus, e.EventTypeID()).publish(e)
}

// ConsumeNative returns the events of type T visible in the current
// read buffer (empty until the next SwapBuffers after publication).
func ConsumeNative[T NativeEvent](bus *EventBus, id uint32) []T {
	return nativeStreamFor[T](bus, id).consume()
}

// InjectIntoCurrent interprets raw bytes as count elements of type T
// (element_size must equal sizeof(T)) and appends them to T's current
// write buffer; used by Playback for unmanaged event streams (spec
// §4.11 step 3). Streams not previously registered are created here.
func InjectIntoCurrent[T NativeEvent](bus *EventBus, id uint32, events []T) {
	nativeStreamFor[T](bus, id).injectRaw(events)
}

func (bus *EventBus) managedStreamFor(typeID uint32, typeName string) *managedStream {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if s, ok := bus.managed[typeID]; ok {
		return s
	}
	s := &managedStream{}
	bus.managed[typeID] = s
	bus.managedNames[typeID] = typeName
	return s
}

// PublishManaged publishes a managed (reference-typed) event.
func PublishManaged[T any](bus *EventBus, e T) {
	name := reflect.TypeOf(e).String()
	bus.managedStreamFor(managedTypeHash(name), name).publish(e)
}

// ConsumeManaged returns the managed events of type T visible in the
// current read buffer.
func ConsumeManaged[T any](bus *EventBus) []T {
	var zero T
	name := reflect.TypeOf(zero).String()
	raw := bus.managedStreamFor(managedTypeHash(name), name).consume()
	out := make([]T, 0, len(raw))
	for _, v := range raw {
		if tv, ok := v.(T); ok {
			out = append(out, tv)
		}
	}
	return out
}

// InjectManagedIntoCurrent resolves typeName to its stream and appends
// a decoded value (produced by a ReflectiveCodec during Playback).
func (bus *EventBus) InjectManagedIntoCurrent(typeName string, value any) {
	bus.managedStreamFor(managedTypeHash(typeName), typeName).publish(value)
}

// SwapBuffers must be called exactly once per frame, at the end: every
// stream's write buffer becomes its read buffer, and a fresh write
// buffer begins accumulating the next frame's publications.
func (bus *EventBus) SwapBuffers() {
	bus.mu.Lock()
	natives := make([]any, 0, len(bus.native))
	for _, s := range bus.native {
		natives = append(natives, s)
	}
	manageds := make([]*managedStream, 0, len(bus.managed))
	for _, s := range bus.managed {
		manageds = append(manageds, s)
	}
	bus.mu.Unlock()

	for _, s := range natives {
		swapper, ok := s.(interface{ swap() })
		if ok {
			swapper.swap()
		}
	}
	for _, s := range manageds {
		s.swap()
	}
}

// ClearCurrentBuffers resets every stream's write buffer to empty
// without disturbing the current read buffer; also releases every
// stream's graveyard, since a clear is the signal that no writer could
// still be holding a pointer into a retired buffer (spec §4.9, §9
// Design Notes "Graveyard buffers").
func (bus *EventBus) ClearCurrentBuffers() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, s := range bus.native {
		if clearer, ok := s.(interface{ clear() }); ok {
			clearer.clear()
		}
	}
}
