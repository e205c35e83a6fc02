package recorder

import (
	"bytes"
	"io"
	"reflect"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/pjanec/FastDataPlane-sub004/internal/ecs"
	"github.com/pjanec/FastDataPlane-sub004/internal/ecs/codec"
)

// Player is the symmetric reader for a Recorder's frame stream (spec
// §4.11 "Playback"). Grounded on the same allocator-wrapper shape as
// Recorder; the two are kept as separate types rather than one
// bidirectional Recorder because a playback tool and a recording tool
// are never the same process in this spec's intended usage.
type Player struct {
	r     io.Reader
	world *ecs.World
	codec codec.ReflectiveCodec
	log   *zap.Logger
}

// NewPlayer returns a Player reading frames from r into world, using rc
// to deserialize managed values.
func NewPlayer(r io.Reader, world *ecs.World, rc codec.ReflectiveCodec, log *zap.Logger) *Player {
	if log == nil {
		log = zap.NewNop()
	}
	return &Player{r: r, world: world, codec: rc, log: log}
}

// Start reads and validates the FDPREC file header, returning the
// recording's creation timestamp.
func (p *Player) Start() (time.Time, error) {
	return ReadFileHeader(p.r)
}

// ApplyNext reads and applies exactly one frame; returns io.EOF once
// the stream is exhausted.
func (p *Player) ApplyNext() error {
	f, err := ReadFrame(p.r)
	if err != nil {
		return err
	}
	return p.apply(f)
}

// PlayAll applies every remaining frame in the stream.
func (p *Player) PlayAll() error {
	for {
		if err := p.ApplyNext(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (p *Player) apply(f *Frame) error {
	// Step 1: pin the clock, clear on keyframe.
	p.world.SetGlobalVersion(uint32(f.Tick))
	if f.Kind == KindKeyframe {
		p.world.ResetAll()
	}

	// Step 2: destructions, before any new chunk data is applied.
	for _, d := range f.Destroyed {
		e := ecs.Entity{Index: uint32(d.Index), Generation: d.Generation}
		if p.world.IsAlive(e) {
			_ = p.world.DestroyEntity(e)
		}
	}

	// Step 3: inject events. Native streams are keyed by the stable,
	// app-declared EventTypeID embedded directly in the frame; managed
	// streams are re-resolved by name, since a dense registry ID is
	// only valid within the recording process's own run.
	for _, n := range f.Native {
		p.world.Bus().InjectNativeRaw(uint32(n.TypeID), int(n.ElementSize), n.Raw)
	}
	for _, m := range f.Managed {
		typeID, err := ecs.RegistryIDByName(m.TypeName)
		if err != nil {
			p.log.Warn("player: skipping managed event stream for unregistered type", zap.String("type", m.TypeName))
			continue
		}
		r := bytes.NewReader(m.Raw)
		for i := int32(0); i < m.Count; i++ {
			v, err := p.deserializeManaged(typeID, r)
			if err != nil {
				return err
			}
			if v != nil {
				p.world.Bus().InjectManagedIntoCurrent(m.TypeName, v)
			}
		}
	}

	// Step 4: restore singletons.
	for _, s := range f.Singletons {
		if err := p.restoreSingleton(s); err != nil {
			p.log.Warn("player: failed to restore singleton", zap.Int("type_id", int(s.TypeID)), zap.Error(err))
		}
	}

	// Step 5: apply chunk blobs; header chunks (type_id -1) restore
	// entity headers before any managed-component mask synchronization
	// the host performs afterward (order invariant, spec §4.11).
	idx := p.world.Index()
	for _, cb := range f.Chunks {
		for _, comp := range cb.Comps {
			if comp.TypeID == HeaderTypeID {
				hcap := idx.HeaderChunkCap()
				headers := make([]ecs.EntityHeader, hcap)
				dst := unsafe.Slice((*byte)(unsafe.Pointer(&headers[0])), hcap*headerSize)
				copy(dst, comp.Raw)
				idx.RestoreChunkFrom(int(cb.ChunkID), headers)
				continue
			}
			if err := p.restoreComponentChunk(int(cb.ChunkID), int(comp.TypeID), comp.Raw); err != nil {
				p.log.Warn("player: failed to restore component chunk", zap.Int("type_id", int(comp.TypeID)), zap.Error(err))
			}
		}
	}

	// Step 6: rebuild derived index metadata.
	idx.RebuildMetadata()
	return nil
}

func (p *Player) restoreComponentChunk(chunkID, typeID int, raw []byte) error {
	table, err := p.world.TableFor(typeID)
	if err != nil {
		return err
	}
	switch t := table.(type) {
	case ecs.RawChunkTable:
		return t.RestoreChunkRawFrom(chunkID, raw)
	case ecs.ManagedChunkTable:
		r := bytes.NewReader(raw)
		for o := 0; o < ecs.ManagedChunkCap; o++ {
			v, err := p.deserializeManaged(typeID, r)
			if err != nil {
				return err
			}
			t.SetSlotAt(chunkID, o, v)
		}
		return nil
	default:
		return ecs.UnknownTypeErr("table implements neither RawChunkTable nor ManagedChunkTable")
	}
}

func (p *Player) deserializeManaged(typeID int, r io.Reader) (any, error) {
	if p.codec == nil {
		return nil, ecs.UnknownTypeErr("no ReflectiveCodec configured for managed value")
	}
	return p.codec.DeserializeObject(typeID, r)
}

func (p *Player) restoreSingleton(s SingletonBlob) error {
	typeID := int(s.TypeID)
	t, err := ecs.GlobalRegistry().TypeOf(typeID)
	if err != nil {
		return err
	}
	if isRawCopyable(t) {
		ptr := reflect.New(t)
		dst := unsafe.Slice((*byte)(unsafe.Pointer(ptr.Pointer())), int(t.Size()))
		copy(dst, s.Raw)
		p.world.SetSingletonRaw(typeID, ptr.Elem().Interface())
		return nil
	}
	v, err := p.deserializeManaged(typeID, bytes.NewReader(s.Raw))
	if err != nil {
		return err
	}
	p.world.SetSingletonRaw(typeID, v)
	return nil
}
