package recorder

import (
	"bytes"
	"io"
	"reflect"
	"sort"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
	"github.com/pjanec/FastDataPlane-sub004/internal/ecs/codec"
)

var headerSize = int(unsafe.Sizeof(ecs.EntityHeader{}))

// Recorder captures a World's dirty state into a frame stream (spec
// §4.11). Grounded on the teacher's memory_manager.go allocator style
// (a small struct wrapping one external resource, exposing narrow
// Capture/Close-shaped methods) rather than the teacher's unimplemented
// EventBusImpl stub, which has no capture concept to borrow from.
type Recorder struct {
	w        io.Writer
	world    *ecs.World
	codec    codec.ReflectiveCodec
	log      *zap.Logger
	compress bool
	prevTick uint32
	started  bool
}

// New returns a Recorder writing frames to w for world, using rc to
// serialize managed values. rc may be nil if the world uses no managed
// singletons or events (an attempt to record one then fails loudly
// rather than silently dropping data). Frame compression is read from
// world.Config().RecorderCompression at construction time, not
// re-checked per frame, so toggling the World's config mid-recording
// has no effect on a Recorder already started.
func New(w io.Writer, world *ecs.World, rc codec.ReflectiveCodec, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{w: w, world: world, codec: rc, log: log, compress: world.Config().RecorderCompression}
}

// Start writes the FDPREC file header. Must be called exactly once,
// before the first CaptureKeyframe/CaptureDelta.
func (r *Recorder) Start() error {
	if err := WriteFileHeader(r.w, time.Now()); err != nil {
		return err
	}
	r.started = true
	return nil
}

// CaptureKeyframe writes an unconditional Keyframe frame: every
// allocated chunk of every table and of the entity index, regardless of
// version.
func (r *Recorder) CaptureKeyframe() error {
	return r.capture(KindKeyframe)
}

// CaptureDelta writes a Delta frame containing only chunks whose
// version exceeds the tick recorded by the previous capture call.
func (r *Recorder) CaptureDelta() error {
	return r.capture(KindDelta)
}

func (r *Recorder) capture(kind Kind) error {
	tick := r.world.GlobalVersion()
	f := &Frame{Tick: uint64(tick), Kind: kind}

	if kind == KindDelta {
		for _, d := range r.world.Index().DrainDestructions() {
			f.Destroyed = append(f.Destroyed, DestroyedEntry{Index: int32(d.Index), Generation: d.Generation})
		}
	} else {
		r.world.Index().DrainDestructions() // drop: a keyframe needs no destruction log
	}

	for _, n := range r.world.Bus().CaptureNative() {
		f.Native = append(f.Native, NativeStreamBlob{TypeID: int32(n.TypeID), ElementSize: int32(n.ElemSize), Raw: n.Raw})
	}

	for _, m := range r.world.Bus().CaptureManaged() {
		typeID, err := ecs.RegistryIDByName(m.TypeName)
		if err != nil {
			r.log.Warn("recorder: skipping unregistered managed event type", zap.String("type", m.TypeName))
			continue
		}
		var buf bytes.Buffer
		for _, v := range m.Values {
			if err := r.serializeManaged(typeID, v, &buf); err != nil {
				return err
			}
		}
		f.Managed = append(f.Managed, ManagedStreamBlob{TypeID: int32(typeID), TypeName: m.TypeName, Count: int32(len(m.Values)), Raw: buf.Bytes()})
	}

	r.world.ForEachSingleton(func(typeID int, value any) {
		policy, err := ecs.RegistryPolicy(typeID)
		if err != nil || !policy.Recordable {
			return
		}
		raw, err := r.serializeSingleton(typeID, value)
		if err != nil {
			r.log.Warn("recorder: failed to serialize singleton", zap.Int("type_id", typeID), zap.Error(err))
			return
		}
		f.Singletons = append(f.Singletons, SingletonBlob{TypeID: int32(typeID), Raw: raw})
	})

	groups := make(map[int32]*ChunkBlob)
	order := r.captureHeaderChunks(kind, groups)
	order = append(order, r.captureTableChunks(kind, groups)...)
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range dedupSorted(order) {
		f.Chunks = append(f.Chunks, *groups[id])
	}

	if err := WriteFrame(r.w, f, r.compress); err != nil {
		return err
	}
	r.prevTick = tick
	return nil
}

func groupFor(groups map[int32]*ChunkBlob, chunkID int32) *ChunkBlob {
	g, ok := groups[chunkID]
	if !ok {
		g = &ChunkBlob{ChunkID: chunkID}
		groups[chunkID] = g
	}
	return g
}

func dedupSorted(ids []int32) []int32 {
	out := ids[:0:0]
	var last int32
	first := true
	for _, id := range ids {
		if first || id != last {
			out = append(out, id)
		}
		last, first = id, false
	}
	return out
}

// captureHeaderChunks emits the entity index's dirty header chunks as
// type_id -1 component blobs.
func (r *Recorder) captureHeaderChunks(kind Kind, groups map[int32]*ChunkBlob) []int32 {
	idx := r.world.Index()
	var touched []int32
	for c := 0; c < idx.ChunkCount(); c++ {
		if kind == KindDelta && idx.ChunkVersion(c) <= r.prevTick {
			continue
		}
		scratch := make([]ecs.EntityHeader, idx.HeaderChunkCap())
		idx.CopyChunkTo(c, scratch)
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&scratch[0])), len(scratch)*headerSize)
		cp := make([]byte, len(raw))
		copy(cp, raw)
		g := groupFor(groups, int32(c))
		g.Comps = append(g.Comps, ComponentBlob{TypeID: HeaderTypeID, Raw: cp})
		touched = append(touched, int32(c))
	}
	return touched
}

// captureTableChunks emits every registered table's dirty chunks,
// dispatching on whether the table satisfies RawChunkTable (unmanaged,
// bit-exact memcpy) or ManagedChunkTable (managed, codec round-trip).
func (r *Recorder) captureTableChunks(kind Kind, groups map[int32]*ChunkBlob) []int32 {
	idx := r.world.Index()
	var touched []int32
	r.world.ForEachTable(func(typeID int, t ecs.IComponentTable) {
		for c := 0; c < t.ChunkCount(); c++ {
			if kind == KindDelta && t.ChunkVersion(c) <= r.prevTick {
				continue
			}
			var raw []byte
			switch table := t.(type) {
			case ecs.RawChunkTable:
				chunkCap := table.ChunkCap()
				liveness := make([]bool, chunkCap)
				base := c * chunkCap
				for o := 0; o < chunkCap; o++ {
					slot := uint32(base + o)
					if slot < idx.MaxIssued() {
						liveness[o] = idx.GetHeaderUnchecked(slot).Active()
					}
				}
				table.SanitizeChunkRaw(c, liveness)
				raw = make([]byte, chunkCap*t.ElementSize())
				table.CopyChunkRawTo(c, raw)
			case ecs.ManagedChunkTable:
				var buf bytes.Buffer
				n := table.ChunkSlotCount(c)
				base := c * n
				for o := 0; o < n; o++ {
					slot := uint32(base + o)
					var alive bool
					if slot < idx.MaxIssued() {
						alive = idx.GetHeaderUnchecked(slot).Active()
					}
					v, present := table.SlotAt(c, o)
					if !present || !alive {
						v = nil
					}
					if err := r.serializeManaged(typeID, v, &buf); err != nil {
						r.log.Warn("recorder: failed to serialize managed component slot", zap.Int("type_id", typeID), zap.Error(err))
						return
					}
				}
				raw = buf.Bytes()
			default:
				continue
			}
			g := groupFor(groups, int32(c))
			g.Comps = append(g.Comps, ComponentBlob{TypeID: int32(typeID), Raw: raw})
			touched = append(touched, int32(c))
		}
	})
	return touched
}

func (r *Recorder) serializeManaged(typeID int, value any, w io.Writer) error {
	if r.codec == nil {
		return ecs.UnknownTypeErr("no ReflectiveCodec configured for managed value")
	}
	return r.codec.SerializeObject(typeID, value, w)
}

// isRawCopyable reports whether t is safe to persist by bit-exact
// memcpy: no pointers, strings, slices, maps or interfaces anywhere in
// its layout.
func isRawCopyable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		return isRawCopyable(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !isRawCopyable(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (r *Recorder) serializeSingleton(typeID int, value any) ([]byte, error) {
	rv := reflect.ValueOf(value)
	if isRawCopyable(rv.Type()) {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		size := int(rv.Type().Size())
		raw := unsafe.Slice((*byte)(unsafe.Pointer(ptr.Pointer())), size)
		out := make([]byte, size)
		copy(out, raw)
		return out, nil
	}
	var buf bytes.Buffer
	if err := r.serializeManaged(typeID, value, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
